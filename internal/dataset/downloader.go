package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dlmbl/labsetup/internal/config"
	"github.com/dlmbl/labsetup/internal/logger"
)

// localDirPermissions is used when recreating the remote folder tree locally.
const localDirPermissions os.FileMode = 0o755

// ObjectClient is the object storage API subset the downloader relies on.
type ObjectClient interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Summary reports what a completed fetch transferred.
type Summary struct {
	// Objects is the number of objects written locally.
	Objects int `json:"objects"`
	// Bytes is the total number of bytes transferred.
	Bytes int64 `json:"bytes"`
}

// Downloader copies every object under a bucket prefix into a local directory,
// preserving the key structure relative to the prefix.
type Downloader struct {
	// client talks to object storage.
	client ObjectClient
	// bucket and prefix locate the remote dataset folder.
	bucket, prefix string
	// destination is the local directory receiving the objects.
	destination string
}

// Option customizes Downloader construction.
type Option func(*Downloader)

// WithClient overrides the object storage client. Used by tests.
func WithClient(client ObjectClient) Option {
	return func(d *Downloader) {
		d.client = client
	}
}

// NewDownloader creates a Downloader for the configured dataset location.
// Requests are unsigned unless static credentials are configured, so the
// default works against publicly readable buckets without any AWS setup.
func NewDownloader(cfg *config.DatasetConfig, opts ...Option) *Downloader {
	var provider aws.CredentialsProvider = aws.AnonymousCredentials{}
	if cfg.AccessKeyID != "" {
		provider = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	d := &Downloader{
		client: s3.New(s3.Options{
			Region:      cfg.Region,
			Credentials: provider,
		}),
		bucket:      cfg.Bucket,
		prefix:      strings.TrimSuffix(cfg.Prefix, "/"),
		destination: cfg.Destination,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Fetch lists the prefix and downloads every object, returning a transfer summary.
func (d *Downloader) Fetch(ctx context.Context) (*Summary, error) {
	logger.InfoKV(ctx, "Fetching dataset", "bucket", d.bucket, "prefix", d.prefix, "destination", d.destination)

	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(d.prefix),
	})

	summary := new(Summary)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", d.bucket, d.prefix, err)
		}

		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if strings.HasSuffix(key, "/") {
				// Directory placeholder, nothing to write.
				continue
			}

			written, err := d.downloadObject(ctx, key)
			if err != nil {
				return nil, err
			}

			summary.Objects++
			summary.Bytes += written
		}
	}

	logger.InfoKV(ctx, "Dataset fetched", "objects", summary.Objects, "bytes", summary.Bytes)

	return summary, nil
}

// downloadObject writes a single object under the destination directory.
func (d *Downloader) downloadObject(ctx context.Context, key string) (int64, error) {
	output, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}

	defer func() {
		_ = output.Body.Close()
	}()

	localPath := filepath.Join(d.destination, filepath.FromSlash(d.relativeKey(key)))
	if err = os.MkdirAll(filepath.Dir(localPath), localDirPermissions); err != nil {
		return 0, fmt.Errorf("create local folder: %w", err)
	}

	file, err := os.Create(filepath.Clean(localPath))
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", localPath, err)
	}

	written, err := io.Copy(file, output.Body)
	if err != nil {
		_ = file.Close()

		return 0, fmt.Errorf("write %s: %w", localPath, err)
	}

	if err = file.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", localPath, err)
	}

	logger.DebugKV(ctx, "Downloaded object", "key", key, "path", localPath, "bytes", written)

	return written, nil
}

// relativeKey strips the prefix from a key so the local tree mirrors the
// remote folder rather than the whole bucket path.
func (d *Downloader) relativeKey(key string) string {
	relative := strings.TrimPrefix(key, d.prefix)
	relative = strings.TrimPrefix(relative, "/")

	if relative == "" {
		// The prefix itself names a single object.
		return path.Base(key)
	}

	return relative
}
