// Package cloudstorage uploads files to and lists one folder of a cloud bucket. It backs the storage connectivity
// commands of the CLI.
package cloudstorage

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/yusco/siteaudit/internal/errors"
)

// Object describes one stored file.
type Object struct {
	Key     string
	Size    int64
	Updated time.Time
}

type Bucket interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Close() error
}

// FolderPrefix returns the listing prefix of a folder, "" for the bucket root.
func FolderPrefix(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return ""
	}
	return folder + "/"
}

// ObjectKey places a local file in a folder. Only the base name of the file is kept.
func ObjectKey(folder, fileName string) string {
	return FolderPrefix(folder) + path.Base(filepath.ToSlash(fileName))
}

// UploadFile copies a local file into the folder and returns its object key.
func UploadFile(ctx context.Context, bucket Bucket, folder, localPath string, logger *slog.Logger) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrap(err, "open file", slog.String("path", localPath))
	}
	defer func() { _ = f.Close() }()

	key := ObjectKey(folder, localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err = bucket.Upload(ctx, key, f, contentType); err != nil {
		return "", errors.Wrap(err, "upload", slog.String("key", key))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "uploaded file", slog.String("key", key), slog.String("type", contentType))
	return key, nil
}

// ListFolder lists the objects of a folder.
func ListFolder(ctx context.Context, bucket Bucket, folder string) ([]Object, error) {
	objects, err := bucket.List(ctx, FolderPrefix(folder))
	if err != nil {
		return nil, errors.Wrap(err, "list folder", slog.String("folder", folder))
	}
	return objects, nil
}
