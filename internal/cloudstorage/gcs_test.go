package cloudstorage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/internal/cloudstorage"
	"github.com/yusco/siteaudit/internal/errors"
	"google.golang.org/api/option"
)

var errDiskRead = errors.NewSentinel("disk read failed")

func TestGCSBucket_Upload_failedReadCreatesNoObject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var completed atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			return
		}
		completed.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bucket":"audits-bucket","name":"audits/rapport.docx","size":"7"}`)
	}))
	t.Cleanup(server.Close)

	bucket, err := cloudstorage.NewGCSBucket(ctx, "audits-bucket", "",
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bucket.Close() })

	body := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errDiskRead))
	err = bucket.Upload(ctx, "audits/rapport.docx", body, "application/octet-stream")
	require.ErrorIs(t, err, errDiskRead)
	require.Zero(t, completed.Load())
}
