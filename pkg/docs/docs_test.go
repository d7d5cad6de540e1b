package docs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/fsx/fsxlocal"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	fs, err := fsxlocal.NewLocalFileSystem(t.TempDir())
	require.NoError(t, err)
	return NewService(fs)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	userID := kernel.NewUserID("u1")

	info, err := svc.Upload(ctx, userID, "receipt.pdf", strings.NewReader("pdf bytes"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size)

	rc, err := svc.Download(ctx, userID, "receipt.pdf")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
}

func TestDocumentsAreScopedPerUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Upload(ctx, kernel.NewUserID("u1"), "mine.txt", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)

	// Another user cannot read it
	_, err = svc.Download(ctx, kernel.NewUserID("u2"), "mine.txt")
	require.Error(t, err)

	// And their listing stays empty
	files, err := svc.List(ctx, kernel.NewUserID("u2"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListReturnsBareNames(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	userID := kernel.NewUserID("u1")

	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := svc.Upload(ctx, userID, name, strings.NewReader("x"), "text/plain")
		require.NoError(t, err)
	}

	files, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.NotContains(t, f.Path, "/", "listing must not leak internal paths")
	}
}

func TestInvalidNamesRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	userID := kernel.NewUserID("u1")

	for _, name := range []string{"", ".", "..", "a/b.txt", `a\b.txt`} {
		_, err := svc.Upload(ctx, userID, name, strings.NewReader("x"), "text/plain")
		require.Error(t, err, "name %q", name)
		assert.True(t, errx.IsCode(err, CodeInvalidName), "name %q", name)
	}
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	userID := kernel.NewUserID("u1")

	_, err := svc.Upload(ctx, userID, "gone.txt", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, userID, "gone.txt"))
	require.NoError(t, svc.Delete(ctx, userID, "gone.txt"))

	_, err = svc.Download(ctx, userID, "gone.txt")
	assert.Error(t, err)
}
