// Package storage uploads item photos to an S3-compatible bucket and returns
// their public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotConfigured is returned when no bucket credentials were supplied.
var ErrNotConfigured = errors.New("image storage not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// PublicBaseURL is the prefix under which uploaded keys are publicly served.
	PublicBaseURL string `yaml:"public_base_url"`
}

func (c Config) configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Object is an uploaded file.
type Object struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Bucket stores item images.
type Bucket struct {
	cfg    Config
	client s3Client
	logger *slog.Logger
	now    func() time.Time
}

// New creates a bucket. Without credentials every upload fails with
// ErrNotConfigured.
func New(cfg Config, logger *slog.Logger) *Bucket {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bucket{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	if cfg.configured() {
		b.client = newS3Client(cfg)
	}
	return b
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

// Configured reports whether uploads can succeed.
func (b *Bucket) Configured() bool {
	return b.client != nil
}

var whitespace = regexp.MustCompile(`\s+`)

// ObjectKey builds "{itemID}/{unixMillis}-{name}" with whitespace runs in the
// file name replaced by underscores.
func ObjectKey(itemID string, at time.Time, filename string) string {
	return fmt.Sprintf("%s/%d-%s", itemID, at.UnixMilli(), whitespace.ReplaceAllString(filename, "_"))
}

// PublicURL returns the public address of key.
func (b *Bucket) PublicURL(key string) string {
	return strings.TrimRight(b.cfg.PublicBaseURL, "/") + "/" + key
}

// KeyFromURL reverses PublicURL. ok is false for URLs outside this bucket.
func (b *Bucket) KeyFromURL(url string) (string, bool) {
	prefix := strings.TrimRight(b.cfg.PublicBaseURL, "/") + "/"
	if b.cfg.PublicBaseURL == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// Upload stores an item photo and returns its key and public URL.
func (b *Bucket) Upload(ctx context.Context, itemID, filename, contentType string, body io.Reader, size int64) (Object, error) {
	if b.client == nil {
		return Object{}, ErrNotConfigured
	}
	key := ObjectKey(itemID, b.now(), filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("upload to s3: %w", err)
	}

	b.logger.Info("image uploaded", "item_id", itemID, "key", key, "size", size)
	return Object{Key: key, URL: b.PublicURL(key)}, nil
}

// Delete removes an object. Failures are returned but callers usually only log
// them: a leftover object is harmless.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if b.client == nil {
		return ErrNotConfigured
	}
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete s3 object %s: %w", key, err)
	}
	return nil
}
