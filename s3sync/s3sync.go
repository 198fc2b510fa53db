// Package s3sync implements a rollsync.SyncHandler that uploads log files to
// S3-compatible object storage and deletes the local copy of finished files.
//
// The handler does not retry: the sink's worker logs a failed upload and
// moves on, so retention of a failed file falls back to the local disk.
package s3sync

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rollsync/rollsync"
)

const contentType = "application/zstd"

// Config configures the uploader. AccessKeyID and SecretAccessKey are
// optional; when empty the default AWS credential chain is used.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool

	// KeyPrefix is prepended to every object key, e.g. "logs/my-service".
	KeyPrefix string
}

// Uploader uploads log files to an S3 bucket.
type Uploader struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

var _ rollsync.SyncHandler = (*Uploader)(nil)

// NewUploader builds an Uploader from cfg. The context is only used for
// loading the AWS configuration.
func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if strings.TrimSpace(cfg.Region) != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if strings.TrimSpace(cfg.Endpoint) != "" {
			endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
			options.BaseEndpoint = &endpoint
		}
		options.UsePathStyle = cfg.UsePathStyle
	})

	return &Uploader{
		client:    client,
		bucket:    strings.TrimSpace(cfg.Bucket),
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
	}, nil
}

// Sync uploads the file at the given path and, if deleteFile is set and the
// upload succeeded, removes the local copy. It is called from the sink's
// single sync worker goroutine, one request at a time.
func (u *Uploader) Sync(filePath string, deleteFile bool) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open log file for upload: %w", err)
	}
	defer f.Close()

	key := u.objectKey(filePath)
	ct := contentType
	_, err = u.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        f,
		ContentType: &ct,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	if deleteFile {
		f.Close()
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove synced log file: %w", err)
		}
	}
	return nil
}

// objectKey maps a local file path to its object key: the key prefix, if
// any, followed by the file's base name.
func (u *Uploader) objectKey(filePath string) string {
	name := filepath.Base(filePath)
	if u.keyPrefix == "" {
		return name
	}
	return path.Join(u.keyPrefix, name)
}
