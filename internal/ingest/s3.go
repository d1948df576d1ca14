package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures access to an S3-compatible object store.
type S3Config struct {
	Region string
	// Endpoint overrides the service endpoint for S3-compatible stores.
	Endpoint string
	// PathStyle forces path-style addressing, required by most local stores.
	PathStyle bool
}

// S3Source downloads objects into memory for ingestion.
type S3Source struct {
	client manager.DownloadAPIClient
	logger *slog.Logger
}

// NewS3Source builds a client from the default AWS credential chain.
func NewS3Source(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Source, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewS3SourceFromClient(client, logger), nil
}

// NewS3SourceFromClient wraps an existing client.
func NewS3SourceFromClient(client manager.DownloadAPIClient, logger *slog.Logger) *S3Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &S3Source{client: client, logger: logger}
}

// Fetch downloads the object at an s3://bucket/key URI. The returned file is
// named after the key's base name.
func (s *S3Source) Fetch(ctx context.Context, uri string) (*BufferFile, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	buf := manager.NewWriteAtBuffer(nil)
	n, err := manager.NewDownloader(s.client).Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", uri, err)
	}
	s.logger.Debug("downloaded object", "bucket", bucket, "key", key, "bytes", n)

	return &BufferFile{name: path.Base(key), data: buf.Bytes(), source: "s3"}, nil
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URI %q: %w", uri, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: expected s3://bucket/key", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("invalid S3 URI %q: missing object key", uri)
	}
	return u.Host, key, nil
}

// IsS3URI reports whether s looks like an S3 object URI.
func IsS3URI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}
