package cloudstorage

import (
	"context"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/yusco/siteaudit/internal/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBucket is a Google Cloud Storage bucket authenticated with a service account key file.
type GCSBucket struct {
	client *storage.Client
	name   string
}

// NewGCSBucket authenticates with the service account key in credentialsFile, or with the application default
// credentials when it is empty. Extra options are passed to the storage client.
func NewGCSBucket(
	ctx context.Context,
	name, credentialsFile string,
	opts ...option.ClientOption,
) (*GCSBucket, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create gcs client", slog.String("bucket", name))
	}
	return &GCSBucket{client: client, name: name}, nil
}

// Upload stores the object only when r is read to the end. A failed read cancels the write so that no partial
// object is created.
func (b *GCSBucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := b.client.Bucket(b.name).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return errors.Wrap(err, "gcs write", slog.String("key", key))
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "gcs close", slog.String("key", key))
	}
	return nil
}

func (b *GCSBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	it := b.client.Bucket(b.name).Objects(ctx, &storage.Query{Prefix: prefix})
	var objects []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "gcs list", slog.String("prefix", prefix))
		}
		objects = append(objects, Object{Key: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return objects, nil
}

func (b *GCSBucket) Close() error {
	return errors.Wrap(b.client.Close(), "close gcs client")
}
