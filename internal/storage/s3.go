package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/domain"
)

// S3Config holds settings for the S3-compatible blob backend.
// Endpoint and static credentials support MinIO and other S3-compatible
// stores alongside AWS itself.
type S3Config struct {
	// Bucket is the bucket holding certificate blobs.
	Bucket string

	// Region is the bucket region.
	Region string

	// Endpoint overrides the AWS endpoint (MinIO etc.). Empty uses AWS.
	Endpoint string

	// AccessKeyID and SecretAccessKey are static credentials. When both
	// are empty the default provider chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle forces path-style addressing, required by MinIO.
	UsePathStyle bool
}

// S3Backend stores blobs in an S3-compatible object store.
type S3Backend struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Backend creates an S3 backend for the configured bucket.
func NewS3Backend(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Backend{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("storage", "s3").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// Save stores content under the given path.
// The reader is buffered through the SDK; the returned size comes from
// counting the bytes actually sent.
func (b *S3Backend) Save(ctx context.Context, blobPath string, reader io.Reader) (int64, error) {
	counted := &countingReader{r: reader}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(blobPath),
		Body:   counted,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put object: %w", err)
	}

	b.logger.Debug().Str("path", blobPath).Int64("size", counted.n).Msg("blob stored")

	return counted.n, nil
}

// Load retrieves content by path.
func (b *S3Backend) Load(ctx context.Context, blobPath string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(blobPath),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return out.Body, nil
}

// Delete removes content by path. Missing objects are ignored; S3 delete
// is already idempotent.
func (b *S3Backend) Delete(ctx context.Context, blobPath string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(blobPath),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// Exists checks whether content is stored under the path.
func (b *S3Backend) Exists(ctx context.Context, blobPath string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(blobPath),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}

	return true, nil
}

func isNoSuchKey(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

// countingReader counts bytes as they stream through.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
