// Package fsxlocal implementa fsx.FileSystem sobre el disco local.
package fsxlocal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/fsx"
)

type LocalFileSystem struct {
	basePath string
}

// NewLocalFileSystem crea el directorio base si no existe
func NewLocalFileSystem(basePath string) (*LocalFileSystem, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fsx.ErrStorageError(err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fsx.ErrStorageError(err)
	}
	return &LocalFileSystem{basePath: abs}, nil
}

func (l *LocalFileSystem) GetBasePath() string {
	return l.basePath
}

// resolve valida que la ruta quede dentro del directorio base
func (l *LocalFileSystem) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(l.basePath, clean)
	if !strings.HasPrefix(full, l.basePath) {
		return "", fsx.ErrInvalidPath(path)
	}
	return full, nil
}

func (l *LocalFileSystem) WriteFile(ctx context.Context, path string, r io.Reader, contentType string) (*fsx.FileInfo, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fsx.ErrStorageError(err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fsx.ErrStorageError(err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		return nil, fsx.ErrStorageError(err)
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, fsx.ErrStorageError(err)
	}

	return &fsx.FileInfo{
		Path:        path,
		Size:        size,
		ContentType: contentType,
		ModifiedAt:  info.ModTime().UnixMilli(),
	}, nil
}

func (l *LocalFileSystem) ReadFile(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fsx.ErrFileNotFound(path)
		}
		return nil, fsx.ErrStorageError(err)
	}
	return f, nil
}

func (l *LocalFileSystem) Exists(ctx context.Context, path string) (bool, error) {
	full, err := l.resolve(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fsx.ErrStorageError(err)
	}
	return true, nil
}

func (l *LocalFileSystem) DeleteFile(ctx context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fsx.ErrStorageError(err)
	}
	return nil
}

func (l *LocalFileSystem) ListFiles(ctx context.Context, prefix string) ([]fsx.FileInfo, error) {
	root, err := l.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var files []fsx.FileInfo
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		files = append(files, fsx.FileInfo{
			Path:       filepath.ToSlash(rel),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, fsx.ErrStorageError(err)
	}
	return files, nil
}
