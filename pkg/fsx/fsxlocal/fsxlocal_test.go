package fsxlocal

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/fsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *LocalFileSystem {
	t.Helper()
	l, err := NewLocalFileSystem(t.TempDir())
	require.NoError(t, err)
	return l
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestFS(t)

	info, err := l.WriteFile(ctx, "users/u1/documents/receipt.pdf", strings.NewReader("pdf bytes"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.NotZero(t, info.ModifiedAt)

	rc, err := l.ReadFile(ctx, "users/u1/documents/receipt.pdf")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))

	exists, err := l.Exists(ctx, "users/u1/documents/receipt.pdf")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReadMissingFile(t *testing.T) {
	ctx := context.Background()
	l := newTestFS(t)

	_, err := l.ReadFile(ctx, "nope.txt")
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, fsx.CodeFileNotFound))

	exists, err := l.Exists(ctx, "nope.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestFS(t)

	_, err := l.WriteFile(ctx, "a.txt", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)

	require.NoError(t, l.DeleteFile(ctx, "a.txt"))
	require.NoError(t, l.DeleteFile(ctx, "a.txt"))
}

func TestListFilesUnderPrefix(t *testing.T) {
	ctx := context.Background()
	l := newTestFS(t)

	for _, p := range []string{
		"users/u1/documents/a.txt",
		"users/u1/documents/b.txt",
		"users/u2/documents/c.txt",
	} {
		_, err := l.WriteFile(ctx, p, strings.NewReader("x"), "text/plain")
		require.NoError(t, err)
	}

	files, err := l.ListFiles(ctx, "users/u1/documents")
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f.Path, "users/u1/documents/"), f.Path)
	}

	// A prefix that was never written lists as empty
	empty, err := l.ListFiles(ctx, "users/u3/documents")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPathTraversalContained(t *testing.T) {
	ctx := context.Background()
	l := newTestFS(t)

	// Dot segments are cleaned relative to the base; nothing outside
	// the base directory is ever touched
	_, err := l.WriteFile(ctx, "../../etc/passwd", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)

	exists, err := l.Exists(ctx, "etc/passwd")
	require.NoError(t, err)
	assert.True(t, exists)
}
