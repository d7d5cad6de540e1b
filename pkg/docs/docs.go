// Package docs guarda los documentos contables que el usuario adjunta en
// la conversación (recibos, facturas). Cada usuario solo ve sus propios
// archivos; la ruta física siempre incluye el userId.
package docs

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/fsx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/logx"
)

var ErrRegistry = errx.NewRegistry("DOCS")

var (
	CodeInvalidName = ErrRegistry.Register("INVALID_NAME", errx.TypeValidation, http.StatusBadRequest, "Invalid document name")
	CodeNotFound    = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Document not found")
)

func ErrInvalidName(name string) *errx.Error {
	return ErrRegistry.New(CodeInvalidName).WithDetail("name", name)
}

func ErrNotFound(name string) *errx.Error {
	return ErrRegistry.New(CodeNotFound).WithDetail("name", name)
}

// Service expone las operaciones de documentos sobre un FileSystem
type Service struct {
	fs fsx.FileSystem
}

func NewService(fs fsx.FileSystem) *Service {
	return &Service{fs: fs}
}

func userPrefix(userID kernel.UserID) string {
	return "users/" + userID.String() + "/documents"
}

// validName rechaza nombres vacíos o con separadores de ruta
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

func (s *Service) Upload(ctx context.Context, userID kernel.UserID, name string, r io.Reader, contentType string) (*fsx.FileInfo, error) {
	if !validName(name) {
		return nil, ErrInvalidName(name)
	}

	info, err := s.fs.WriteFile(ctx, path.Join(userPrefix(userID), name), r, contentType)
	if err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"user_id": userID.String(),
		"name":    name,
		"size":    info.Size,
	}).Infof("📎 Document uploaded")
	return info, nil
}

func (s *Service) Download(ctx context.Context, userID kernel.UserID, name string) (io.ReadCloser, error) {
	if !validName(name) {
		return nil, ErrInvalidName(name)
	}
	return s.fs.ReadFile(ctx, path.Join(userPrefix(userID), name))
}

func (s *Service) List(ctx context.Context, userID kernel.UserID) ([]fsx.FileInfo, error) {
	files, err := s.fs.ListFiles(ctx, userPrefix(userID))
	if err != nil {
		return nil, err
	}

	// Devolver solo el nombre, no la ruta interna
	prefix := userPrefix(userID) + "/"
	for i := range files {
		files[i].Path = strings.TrimPrefix(files[i].Path, prefix)
	}
	return files, nil
}

func (s *Service) Delete(ctx context.Context, userID kernel.UserID, name string) error {
	if !validName(name) {
		return ErrInvalidName(name)
	}
	return s.fs.DeleteFile(ctx, path.Join(userPrefix(userID), name))
}
