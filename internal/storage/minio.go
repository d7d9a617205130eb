package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

const defaultPresignExpiry = time.Hour

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint      string
	region        string
	bucket        string
	accessKey     string
	secretKey     string
	publicBaseURL string
	useSSL        bool
	presignExpiry time.Duration
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		useSSL:        true,
		presignExpiry: defaultPresignExpiry,
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// MinioGateway implements Gateway and Fetcher on any S3 compatible store.
type MinioGateway struct {
	cfg    *minioConfig
	client *minio.Client
}

var (
	_ Gateway = (*MinioGateway)(nil)
	_ Fetcher = (*MinioGateway)(nil)
)

func NewMinioGateway(opts ...MinioOpts) (*MinioGateway, error) {
	cfg := newConfig(opts...)
	if cfg.endpoint == "" || cfg.bucket == "" {
		return nil, fmt.Errorf("object store endpoint and bucket are required")
	}

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretKey, ""),
		Secure: cfg.useSSL,
		Region: cfg.region,
	})
	if err != nil {
		return nil, err
	}

	return &MinioGateway{cfg: cfg, client: client}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (g *MinioGateway) EnsureBucket(ctx context.Context) error {
	exists, err := g.client.BucketExists(ctx, g.cfg.bucket)
	if err != nil {
		return errors.Wrapf(err, "failed to check bucket %s", g.cfg.bucket)
	}
	if exists {
		return nil
	}
	if err := g.client.MakeBucket(ctx, g.cfg.bucket, minio.MakeBucketOptions{Region: g.cfg.region}); err != nil {
		return errors.Wrapf(err, "failed to create bucket %s", g.cfg.bucket)
	}
	return nil
}

func (g *MinioGateway) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if size < 0 {
		size = -1
	}
	if _, err := g.client.PutObject(ctx, g.cfg.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", errors.Wrapf(err, "failed to put object %s", key)
	}
	return g.PublicLocator(key), nil
}

func (g *MinioGateway) CreatePresignedUpload(ctx context.Context, key, contentType string, maxBytes int64) (*PresignedUpload, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(g.cfg.bucket); err != nil {
		return nil, err
	}
	if err := policy.SetKey(key); err != nil {
		return nil, err
	}
	if err := policy.SetExpires(time.Now().UTC().Add(g.cfg.presignExpiry)); err != nil {
		return nil, err
	}
	if contentType != "" {
		if err := policy.SetContentType(contentType); err != nil {
			return nil, err
		}
	}
	if err := policy.SetContentLengthRange(1, maxBytes); err != nil {
		return nil, err
	}

	endpoint, fields, err := g.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to presign upload for %s", key)
	}

	return &PresignedUpload{
		UploadEndpoint: endpoint.String(),
		FormFields:     fields,
		Expiry:         g.cfg.presignExpiry,
	}, nil
}

func (g *MinioGateway) PublicLocator(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if g.cfg.publicBaseURL != "" {
		return strings.TrimRight(g.cfg.publicBaseURL, "/") + "/" + escaped
	}
	scheme := "http"
	if g.cfg.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, g.cfg.endpoint, g.cfg.bucket, escaped)
}

func (g *MinioGateway) StatObject(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := g.client.StatObject(ctx, g.cfg.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrapf(err, "failed to stat object %s", key)
	}
	return toObjectInfo(info), nil
}

func (g *MinioGateway) GetObject(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	object, err := g.client.GetObject(ctx, g.cfg.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to get object %s", key)
	}

	// GetObject is lazy, Stat performs the request.
	info, err := object.Stat()
	if err != nil {
		_ = object.Close()
		if isNotFound(err) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, errors.Wrapf(err, "failed to read object %s", key)
	}
	return object, toObjectInfo(info), nil
}

func (g *MinioGateway) RemoveObject(ctx context.Context, key string) error {
	if err := g.client.RemoveObject(ctx, g.cfg.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to remove object %s", key)
	}
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func toObjectInfo(info minio.ObjectInfo) *ObjectInfo {
	return &ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithRegion(region string) MinioOpts {
	return func(c *minioConfig) {
		c.region = region
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) {
		c.secretKey = secretKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}

func WithPublicBaseURL(baseURL string) MinioOpts {
	return func(c *minioConfig) {
		c.publicBaseURL = baseURL
	}
}

func WithPresignExpiry(expiry time.Duration) MinioOpts {
	return func(c *minioConfig) {
		if expiry > 0 {
			c.presignExpiry = expiry
		}
	}
}
