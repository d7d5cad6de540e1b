// pkg/config/documents.go
package config

type DocumentsConfig struct {
	StorageMode string // "local" or "s3"
	LocalDir    string
	AWSRegion   string
	AWSBucket   string
}

func loadDocumentsConfig() DocumentsConfig {
	return DocumentsConfig{
		StorageMode: getEnv("STORAGE_MODE", "local"),
		LocalDir:    getEnv("UPLOAD_DIR", "./uploads"),
		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
		AWSBucket:   getEnv("AWS_BUCKET", "zero-agent-documents"),
	}
}
