package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned when no object exists at the requested key
var ErrObjectNotFound = errors.New("object not found")

// Config holds object storage connection configuration
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	PresignExpiry   time.Duration
}

// Client wraps a MinIO/S3-compatible client bound to a single bucket.
// It is the only component that holds storage credentials.
type Client struct {
	mc     *minio.Client
	bucket string
	region string
	expiry time.Duration
	logger *slog.Logger
}

// NewClient creates an object storage client and ensures the bucket exists
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", config.Bucket, err)
	}

	if !exists {
		if err := mc.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", config.Bucket, err)
		}
		logger.Info("Created bucket", slog.String("bucket", config.Bucket))
	}

	logger.Info("Object storage client initialized",
		slog.String("endpoint", config.Endpoint),
		slog.String("bucket", config.Bucket),
		slog.Duration("presign_expiry", config.PresignExpiry),
	)

	return &Client{
		mc:     mc,
		bucket: config.Bucket,
		region: config.Region,
		expiry: config.PresignExpiry,
		logger: logger,
	}, nil
}

// PresignedUpload returns a time-bounded URL for a direct PUT to the given key
func (c *Client) PresignedUpload(ctx context.Context, key string) (string, error) {
	u, err := c.mc.PresignedPutObject(ctx, c.bucket, key, c.expiry)
	if err != nil {
		return "", fmt.Errorf("presigned put object: %w", err)
	}
	return u.String(), nil
}

// PresignedDownload returns a time-bounded URL for a GET of the given key.
// fileName, when non-empty, is advertised via Content-Disposition so browsers
// save the object under a friendly name.
func (c *Client) PresignedDownload(ctx context.Context, key, fileName string) (string, error) {
	reqParams := url.Values{}
	if fileName != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	}

	u, err := c.mc.PresignedGetObject(ctx, c.bucket, key, c.expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presigned get object: %w", err)
	}
	return u.String(), nil
}

// StatObject returns the size of the object at key.
// Returns ErrObjectNotFound when no object exists there; this is the single
// source of truth for "this file exists and is usable".
func (c *Client) StatObject(ctx context.Context, key string) (int64, error) {
	info, err := c.mc.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return 0, ErrObjectNotFound
		}
		return 0, fmt.Errorf("stat object %q: %w", key, err)
	}
	return info.Size, nil
}

// RemoveObject deletes the object at key. Removing a missing key is not an
// error, which makes cleanup idempotent.
func (c *Client) RemoveObject(ctx context.Context, key string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// GetObject downloads the full object at key
func (c *Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return data, nil
}

// PutObject uploads data to key with the given content type
func (c *Client) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.mc.PutObject(
		ctx,
		c.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}

	c.logger.Debug("Uploaded object",
		slog.String("key", key),
		slog.Int("size", len(data)),
	)
	return nil
}

// Bucket returns the bucket this client is bound to
func (c *Client) Bucket() string {
	return c.bucket
}

// Region returns the configured storage region
func (c *Client) Region() string {
	return c.region
}

// Expiry returns the presigned URL lifetime
func (c *Client) Expiry() time.Duration {
	return c.expiry
}
