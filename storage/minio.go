package storage

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the object-store connection settings.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Validate checks the fields a connection cannot be made without.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("storage: endpoint is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("storage: bucket is required")
	}
	return nil
}

// NewClient connects to the S3-compatible object store holding staged
// artifacts.
func NewClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	return minio.New(cfg.Endpoint, opts)
}

// EnsureBucket creates the artifact bucket when it does not exist yet.
func EnsureBucket(ctx context.Context, client *minio.Client, cfg Config) error {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("storage: bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region})
}

// ObjectRemover adapts a minio client to the Remover interface for one
// bucket.
type ObjectRemover struct {
	client *minio.Client
	bucket string
}

// Compile-time interface check.
var _ Remover = (*ObjectRemover)(nil)

// NewObjectRemover wraps client for deletions within bucket.
func NewObjectRemover(client *minio.Client, bucket string) *ObjectRemover {
	return &ObjectRemover{client: client, bucket: bucket}
}

// Remove deletes one object by key.
func (r *ObjectRemover) Remove(ctx context.Context, path string) error {
	return r.client.RemoveObject(ctx, r.bucket, path, minio.RemoveObjectOptions{})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
