// Package fsxs3 implementa fsx.FileSystem sobre Amazon S3.
package fsxs3

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/fsx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3FileSystem struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3FileSystem crea el adaptador; prefix puede ser vacío
func NewS3FileSystem(client *s3.Client, bucket, prefix string) *S3FileSystem {
	return &S3FileSystem{
		client: client,
		bucket: bucket,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

func (s *S3FileSystem) key(path string) string {
	path = strings.TrimPrefix(path, "/")
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}

func (s *S3FileSystem) WriteFile(ctx context.Context, path string, r io.Reader, contentType string) (*fsx.FileInfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fsx.ErrStorageError(err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
		Body:   strings.NewReader(string(body)),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fsx.ErrStorageError(err)
	}

	return &fsx.FileInfo{
		Path:        path,
		Size:        int64(len(body)),
		ContentType: contentType,
	}, nil
}

func (s *S3FileSystem) ReadFile(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, fsx.ErrFileNotFound(path)
		}
		return nil, fsx.ErrStorageError(err)
	}
	return out.Body, nil
}

func (s *S3FileSystem) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fsx.ErrStorageError(err)
	}
	return true, nil
}

func (s *S3FileSystem) DeleteFile(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return fsx.ErrStorageError(err)
	}
	return nil
}

func (s *S3FileSystem) ListFiles(ctx context.Context, prefix string) ([]fsx.FileInfo, error) {
	var files []fsx.FileInfo

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fsx.ErrStorageError(err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			info := fsx.FileInfo{
				Path: key,
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.ModifiedAt = obj.LastModified.UnixMilli()
			}
			files = append(files, info)
		}
	}
	return files, nil
}
