package assets

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint  string
	PublicURL string // base URL assets are served from; falls back to Endpoint
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Object describes a stored asset.
type Object struct {
	Key       string
	PublicURL string
}

// Store uploads generated media to S3-compatible storage.
type Store struct {
	cfg    Config
	client s3Client
	logger *slog.Logger
}

func NewStore(cfg Config, logger *slog.Logger) *Store {
	return &Store{
		cfg:    cfg,
		client: newS3Client(cfg),
		logger: logger,
	}
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Upload stores data under a generated key inside the given prefix and
// returns the key plus the public URL.
func (s *Store) Upload(ctx context.Context, prefix string, data []byte, contentType string) (*Object, error) {
	key := fmt.Sprintf("%s/%s%s", strings.Trim(prefix, "/"), uuid.NewString(), extensionFor(contentType))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	s.logger.Info("asset uploaded", "key", key, "bytes", len(data))
	return &Object{Key: key, PublicURL: s.publicURL(key)}, nil
}

func (s *Store) publicURL(key string) string {
	base := s.cfg.PublicURL
	if base == "" {
		base = s.cfg.Endpoint
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(base, "/"), s.cfg.Bucket, key)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	}
	return ""
}
