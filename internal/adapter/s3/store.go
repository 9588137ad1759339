package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Object describes one listed object.
type Object struct {
	Key  string
	Size int64
}

// Store reads and writes objects on MinIO or any S3-compatible endpoint.
type Store struct {
	client *minio.Client
	region string
}

// NewStore connects to S3_ENDPOINT with static credentials. The endpoint
// scheme decides whether TLS is used.
func NewStore(cfg *config.Config) (*Store, error) {
	u, err := url.Parse(cfg.S3Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("parse S3 endpoint %q: invalid URL", cfg.S3Endpoint)
	}
	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: u.Scheme == "https",
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}
	return &Store{client: client, region: cfg.S3Region}, nil
}

// Put writes data under bucket/key.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get reads the whole object at bucket/key.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// List returns every object under prefix, recursively.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object
	for info := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, info.Err)
		}
		objects = append(objects, Object{Key: info.Key, Size: info.Size})
	}
	return objects, nil
}

// PrefixSize sums the sizes of all objects under prefix.
func (s *Store) PrefixSize(ctx context.Context, bucket, prefix string) (int64, error) {
	objects, err := s.List(ctx, bucket, prefix)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, o := range objects {
		total += o.Size
	}
	return total, nil
}

// EnsureBucket creates bucket if it does not exist and reports whether it did.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return false, nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return false, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return true, nil
}
