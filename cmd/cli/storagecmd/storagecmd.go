package storagecmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/yusco/siteaudit/cmd/cli/clienv"
	"github.com/yusco/siteaudit/internal/cloudstorage"
	"github.com/yusco/siteaudit/internal/errors"
)

var ErrUnknownProvider = errors.NewSentinel("unknown storage provider")

// folder is where the exports are shared with the project owners.
const folder = "audits"

var Group = &cobra.Group{
	ID:    "storage",
	Title: "Cloud storage",
}

var (
	provider        string
	bucketName      string
	credentialsFile string
	s3Config        cloudstorage.S3Config
)

func init() {
	flags := Storage.PersistentFlags()
	flags.StringVar(&provider, "provider", clienv.Getenv("AUDIT_STORAGE_PROVIDER", "gcs"), "gcs or s3")
	flags.StringVar(&bucketName, "bucket", clienv.Getenv("AUDIT_STORAGE_BUCKET", ""), "bucket name")
	flags.StringVar(&credentialsFile, "credentials", clienv.Getenv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		"GCS service account key file")
	flags.StringVar(&s3Config.Region, "region", clienv.Getenv("AWS_REGION", "eu-west-3"), "S3 region")
	flags.StringVar(&s3Config.Endpoint, "endpoint", clienv.Getenv("AUDIT_S3_ENDPOINT", ""),
		"S3 compatible endpoint")
	flags.StringVar(&s3Config.AccessKeyID, "access-key-id", clienv.Getenv("AWS_ACCESS_KEY_ID", ""), "S3 access key")
	flags.StringVar(&s3Config.SecretAccessKey, "secret-access-key", clienv.Getenv("AWS_SECRET_ACCESS_KEY", ""),
		"S3 secret key")
	Storage.AddCommand(upload, list)
}

var Storage = &cobra.Command{
	Use:     "storage",
	GroupID: "storage",
	Short:   "Share exported files through a cloud bucket",
}

var upload = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files to the shared folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := clienv.Logger()
		bucket, err := openBucket(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = bucket.Close() }()
		for _, path := range args {
			key, uploadErr := cloudstorage.UploadFile(ctx, bucket, folder, path, logger)
			if uploadErr != nil {
				return uploadErr
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

var list = &cobra.Command{
	Use:   "list",
	Short: "List the files of the shared folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		bucket, err := openBucket(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = bucket.Close() }()
		objects, err := cloudstorage.ListFolder(ctx, bucket, folder)
		if err != nil {
			return err
		}
		return PrintObjects(cmd.OutOrStdout(), objects)
	},
}

func openBucket(ctx context.Context) (cloudstorage.Bucket, error) {
	if bucketName == "" {
		return nil, errors.New("bucket name not set")
	}
	switch provider {
	case "gcs":
		bucket, err := cloudstorage.NewGCSBucket(ctx, bucketName, credentialsFile)
		if err != nil {
			return nil, errors.Wrap(err, "open GCS bucket", slog.String("bucket", bucketName))
		}
		return bucket, nil
	case "s3":
		cfg := s3Config
		cfg.Bucket = bucketName
		bucket, err := cloudstorage.NewS3Bucket(ctx, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "open S3 bucket", slog.String("bucket", bucketName))
		}
		return bucket, nil
	default:
		return nil, errors.Wrap(ErrUnknownProvider, "open bucket", slog.String("provider", provider))
	}
}

// PrintObjects writes one line per object: key, size in bytes and last update.
func PrintObjects(w io.Writer, objects []cloudstorage.Object) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd // column padding
	for _, o := range objects {
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.Updated.Format(time.DateTime)); err != nil {
			return errors.Wrap(err, "print object")
		}
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	return nil
}
