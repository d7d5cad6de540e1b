// pkg/config/ai.go
package config

import "time"

type AIConfig struct {
	Embedding EmbeddingConfig
}

// EmbeddingConfig parameterizes the external embedding collaborator.
// Dimensions is fixed per deployment; stored vectors must match it.
type EmbeddingConfig struct {
	Enabled    bool
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

func loadAIConfig() AIConfig {
	return AIConfig{
		Embedding: EmbeddingConfig{
			Enabled:    getEnvBool("EMBEDDING_ENABLED", false),
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
			Timeout:    getEnvDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
	}
}
