// Package fsx abstrae el almacenamiento de archivos. Las implementaciones
// concretas viven en fsxlocal y fsxs3.
package fsx

import (
	"context"
	"io"
	"net/http"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
)

// FileInfo describe un archivo almacenado
type FileInfo struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
	ModifiedAt  int64  `json:"modifiedAt"`
}

// FileReader lee archivos
type FileReader interface {
	ReadFile(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// FileWriter escribe y borra archivos
type FileWriter interface {
	WriteFile(ctx context.Context, path string, r io.Reader, contentType string) (*FileInfo, error)
	DeleteFile(ctx context.Context, path string) error
}

// FileLister enumera archivos bajo un prefijo
type FileLister interface {
	ListFiles(ctx context.Context, prefix string) ([]FileInfo, error)
}

// FileSystem es la capacidad completa de almacenamiento
type FileSystem interface {
	FileReader
	FileWriter
	FileLister
}

var ErrRegistry = errx.NewRegistry("FSX")

var (
	CodeFileNotFound = ErrRegistry.Register("FILE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "File not found")
	CodeStorageError = ErrRegistry.Register("STORAGE_ERROR", errx.TypeInternal, http.StatusInternalServerError, "Storage operation failed")
	CodeInvalidPath  = ErrRegistry.Register("INVALID_PATH", errx.TypeValidation, http.StatusBadRequest, "Invalid file path")
)

func ErrFileNotFound(path string) *errx.Error {
	return ErrRegistry.New(CodeFileNotFound).WithDetail("path", path)
}

func ErrStorageError(err error) *errx.Error {
	return ErrRegistry.New(CodeStorageError).WithError(err)
}

func ErrInvalidPath(path string) *errx.Error {
	return ErrRegistry.New(CodeInvalidPath).WithDetail("path", path)
}
