// Package s3 implements an S3-backed incremental cache.
//
// Entries are stored msgpack-encoded as objects under an optional key
// prefix. Works with S3-compatible providers (Cloudflare R2, MinIO) via a
// custom endpoint and path-style addressing.
//
// Tag invalidation is best-effort: S3 has no secondary index, so the tag
// index lives in process memory and only covers entries written by this
// process since startup.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pithecene-io/kiln/cache"
	"github.com/pithecene-io/kiln/iox"
)

// Config configures the S3 cache backend.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3 cache requires a bucket")
	}
	return nil
}

// ParseBucketPath parses a path in format "bucket/prefix" or "bucket".
func ParseBucketPath(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// api is the subset of the S3 client used by the backend.
type api interface {
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Cache is an S3-backed incremental cache.
type Cache struct {
	config Config
	client api

	mu    sync.Mutex
	byTag map[string]map[string]struct{}
}

// New creates an S3 cache backend using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 cache: load AWS config: %w", err)
	}

	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	return newWithClient(cfg, awss3.NewFromConfig(awsCfg, s3Opts...)), nil
}

// newWithClient creates a backend with an injected client (for testing).
func newWithClient(cfg Config, client api) *Cache {
	return &Cache{
		config: cfg,
		client: client,
		byTag:  make(map[string]map[string]struct{}),
	}
}

// Read fetches and decodes the object stored under key, or nil when absent.
func (c *Cache) Read(ctx context.Context, key string) (*cache.Entry, error) {
	out, err := c.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(c.objectKey(key)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 cache: read %q: %w", key, err)
	}
	defer iox.DiscardClose(out.Body)

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 cache: read body %q: %w", key, err)
	}
	return cache.DecodeEntry(data)
}

// Write stores the entry as an object and indexes its tags in memory.
func (c *Cache) Write(ctx context.Context, key string, entry *cache.Entry) error {
	stored := *entry
	stored.Key = key

	data, err := cache.EncodeEntry(&stored)
	if err != nil {
		return err
	}

	_, err = c.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(c.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 cache: write %q: %w", key, err)
	}

	c.mu.Lock()
	for _, tag := range stored.Tags {
		if c.byTag[tag] == nil {
			c.byTag[tag] = make(map[string]struct{})
		}
		c.byTag[tag][key] = struct{}{}
	}
	c.mu.Unlock()
	return nil
}

// Delete removes the object stored under key. Absent keys are not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(c.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 cache: delete %q: %w", key, err)
	}
	return nil
}

// InvalidateTag removes every locally-indexed entry carrying tag, returning
// the number of entries removed.
func (c *Cache) InvalidateTag(ctx context.Context, tag string) (int, error) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.byTag[tag]))
	for key := range c.byTag[tag] {
		keys = append(keys, key)
	}
	delete(c.byTag, tag)
	c.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if err := c.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Close is a no-op; the AWS SDK client holds no closable resources.
func (c *Cache) Close() error { return nil }

func (c *Cache) objectKey(key string) string {
	if c.config.Prefix == "" {
		return key
	}
	return strings.TrimSuffix(c.config.Prefix, "/") + "/" + key
}

// Verify Cache implements the incremental cache boundary.
var _ cache.Incremental = (*Cache)(nil)
