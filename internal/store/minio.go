package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore issues signed upload URLs against an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	scheme string
}

// NewMinioStore connects to the bucket. scheme prefixes object locators,
// e.g. "gs" gives gs://bucket/key.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket, scheme string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket %q does not exist", bucket)
	}

	return &MinioStore{client: client, bucket: bucket, scheme: scheme}, nil
}

// PresignPut returns a V4-signed URL that allows a single PUT of key
// until ttl elapses.
func (s *MinioStore) PresignPut(ctx context.Context, key string, ttl time.Duration) (*url.URL, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}
	return u, nil
}

// Locator returns the canonical storage path handed to the worker.
func (s *MinioStore) Locator(key string) string {
	return Locator(s.scheme, s.bucket, key)
}

// ObjectKey extracts the key from a locator of this bucket.
func (s *MinioStore) ObjectKey(locator string) (string, bool) {
	return ObjectKey(s.scheme, s.bucket, locator)
}

// Remove deletes an object.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func Locator(scheme, bucket, key string) string {
	return fmt.Sprintf("%s://%s/%s", scheme, bucket, key)
}

func ObjectKey(scheme, bucket, locator string) (string, bool) {
	key, ok := strings.CutPrefix(locator, fmt.Sprintf("%s://%s/", scheme, bucket))
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
