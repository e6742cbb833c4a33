package cloudstorage

import (
	"context"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/yusco/siteaudit/internal/errors"
)

type S3Config struct {
	Bucket string
	Region string
	// Endpoint is set for S3 compatible services such as MinIO.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type S3Bucket struct {
	client *s3.Client
	name   string
}

// NewS3Bucket uses the static keys of cfg when given, otherwise the default AWS credential chain.
func NewS3Bucket(ctx context.Context, cfg S3Config) (*S3Bucket, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Bucket{client: client, name: cfg.Bucket}, nil
}

func (b *S3Bucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.Wrap(err, "s3 put", slog.String("key", key))
	}
	return nil
}

func (b *S3Bucket) List(ctx context.Context, prefix string) ([]Object, error) {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
		Prefix: aws.String(prefix),
	})
	var objects []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "s3 list", slog.String("prefix", prefix))
		}
		for _, o := range page.Contents {
			objects = append(objects, Object{
				Key:     aws.ToString(o.Key),
				Size:    aws.ToInt64(o.Size),
				Updated: aws.ToTime(o.LastModified),
			})
		}
	}
	return objects, nil
}

// Close is a no-op, the S3 client holds no connection of its own.
func (b *S3Bucket) Close() error {
	return nil
}
