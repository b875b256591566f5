package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mosajjal/whatthela/pkg/storage"
)

// Storage implements the S3 backend for parking failed batch payloads
type Storage struct {
	config    storage.Config
	client    *s3.Client
	bucket    string
	keyPrefix string
	log       *zap.Logger
}

// NewStorage creates a new S3 storage backend
func NewStorage(cfg storage.Config, awsCfg aws.Config, logger *zap.Logger) (*Storage, error) {
	client := s3.NewFromConfig(awsCfg)
	if logger == nil {
		logger = zap.NewNop()
	}

	bucket, keyPrefix, err := parseBucketURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	return &Storage{
		config:    cfg,
		client:    client,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		log:       logger,
	}, nil
}

// parseBucketURL extracts the bucket name and key prefix from a
// virtual-hosted-style URL (bucket.s3.region.amazonaws.com/prefix) or a
// path-style URL (s3.region.amazonaws.com/bucket/prefix).
func parseBucketURL(rawURL string) (bucket, keyPrefix string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URL: %w", err)
	}

	if strings.Contains(u.Host, ".s3.") || strings.Contains(u.Host, ".s3-") {
		parts := strings.Split(u.Host, ".")
		if len(parts) > 0 {
			bucket = parts[0]
		}
		keyPrefix = strings.Trim(u.Path, "/")
	} else {
		pathParts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		if len(pathParts) > 0 {
			bucket = pathParts[0]
		}
		if len(pathParts) > 1 {
			keyPrefix = pathParts[1]
		}
	}

	if bucket == "" {
		return "", "", fmt.Errorf("could not parse bucket name from URL: %s", rawURL)
	}
	return bucket, keyPrefix, nil
}

// Store gzips the payload and uploads it under a time-partitioned key
// so parked batches can be replayed per log type later.
func (s *Storage) Store(ctx context.Context, logType string, payload []byte) error {
	var buf bytes.Buffer
	gz, _ := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("failed to compress payload: %w", err)
	}
	gz.Close()

	now := time.Now().UTC()
	key := fmt.Sprintf("%s/%s/%d/%02d/%02d/%02d/%s-%s.json.gz",
		s.keyPrefix,
		logType,
		now.Year(),
		now.Month(),
		now.Day(),
		now.Hour(),
		now.Format("2006-01-02T15:04:05.000Z"),
		uuid.New().String(),
	)
	key = strings.TrimPrefix(key, "/")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	s.log.Info("parked failed batch in S3",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(payload)))
	return nil
}

// Close cleans up resources
func (s *Storage) Close() error {
	return nil
}
