package cloudstorage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/internal/cloudstorage"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/testhelpers"
)

var errDenied = errors.NewSentinel("permission denied")

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	err     error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]string{}, types: map[string]string{}}
}

func (b *fakeBucket) Upload(_ context.Context, key string, r io.Reader, contentType string) error {
	if b.err != nil {
		return b.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = string(data)
	b.types[key] = contentType
	return nil
}

func (b *fakeBucket) List(_ context.Context, prefix string) ([]cloudstorage.Object, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []cloudstorage.Object
	for key, data := range b.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, cloudstorage.Object{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (b *fakeBucket) Close() error { return nil }

func TestObjectKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		folder   string
		fileName string
		want     string
	}{
		{folder: "tests_connexion", fileName: "rapport.docx", want: "tests_connexion/rapport.docx"},
		{folder: "/tests_connexion/", fileName: "/tmp/out/rapport.docx", want: "tests_connexion/rapport.docx"},
		{folder: "a/b", fileName: "photo.jpg", want: "a/b/photo.jpg"},
		{folder: "", fileName: "photo.jpg", want: "photo.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, cloudstorage.ObjectKey(tt.folder, tt.fileName))
		})
	}
}

func TestUploadFileAndListFolder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	local := filepath.Join(dir, "test_upload.txt")
	require.NoError(t, os.WriteFile(local, []byte("bonjour"), 0o600))

	bucket := newFakeBucket()
	bucket.objects["autre/x.txt"] = "x"
	key, err := cloudstorage.UploadFile(ctx, bucket, "tests_connexion", local, testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	require.Equal(t, "tests_connexion/test_upload.txt", key)
	require.Equal(t, "bonjour", bucket.objects[key])
	require.True(t, strings.HasPrefix(bucket.types[key], "text/plain"))

	objects, err := cloudstorage.ListFolder(ctx, bucket, "tests_connexion")
	require.NoError(t, err)
	require.Equal(t, []cloudstorage.Object{{Key: "tests_connexion/test_upload.txt", Size: 7}}, objects)
}

func TestUploadFile_errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := testhelpers.NewLogger(io.Discard)

	_, err := cloudstorage.UploadFile(ctx, newFakeBucket(), "f", filepath.Join(t.TempDir(), "missing"), logger)
	require.ErrorIs(t, err, os.ErrNotExist)

	local := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(local, []byte{1}, 0o600))
	bucket := newFakeBucket()
	bucket.err = errDenied
	_, err = cloudstorage.UploadFile(ctx, bucket, "f", local, logger)
	require.ErrorIs(t, err, errDenied)

	_, err = cloudstorage.ListFolder(ctx, bucket, "f")
	require.ErrorIs(t, err, errDenied)
}
