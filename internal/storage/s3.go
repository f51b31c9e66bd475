package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/washu-tag/scout-kate/internal/config"
	"github.com/washu-tag/scout-kate/internal/observability"
)

// S3Store implements ObjectStore for AWS S3 and S3-compatible stores
// (MinIO, LocalStack).
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger observability.Logger
}

// NewS3Store creates an S3 client from config and verifies the default bucket
// is reachable.
func NewS3Store(cfg *config.S3Config, logger observability.Logger) (*S3Store, error) {
	awsCfg, err := buildAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	store := &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("verify bucket %s: %w", cfg.Bucket, err)
	}

	logger.Info("S3 store initialized", "bucket", cfg.Bucket, "region", cfg.Region)
	return store, nil
}

func buildAWSConfig(cfg *config.S3Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(context.Background(), opts...)
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, body io.Reader) (string, error) {
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, body); err != nil {
		return "", fmt.Errorf("read content for %s: %w", key, err)
	}

	fullKey := key
	prefix := ""
	if bucket == "" {
		bucket = s.bucket
		prefix = s.prefix
		if prefix != "" {
			fullKey = strings.TrimSuffix(prefix, "/") + "/" + key
		}
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/hl7-v2"),
	})
	if err != nil {
		s.logger.Error("Failed to put object", "error", err, "bucket", bucket, "key", fullKey)
		return "", fmt.Errorf("put object %s: %w", fullKey, err)
	}

	return URL(bucket, prefix, key), nil
}

func (s *S3Store) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	bucket, key, err := SplitURL(url)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to get object", "error", err, "bucket", bucket, "key", key)
		return nil, fmt.Errorf("get object %s: %w", url, err)
	}
	return out.Body, nil
}
