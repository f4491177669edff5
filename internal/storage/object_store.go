package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore holds protocol files out-of-band; samples keep only the
// original filename and the storage key.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// ProtocolStore implements ObjectStore on MinIO/S3 compatible storage.
type ProtocolStore struct {
	client *minio.Client
	bucket string
}

// NewProtocolStore connects to MinIO and ensures the bucket exists.
func NewProtocolStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*ProtocolStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})

	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)

	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &ProtocolStore{client: client, bucket: bucket}, nil
}

// ObjectKey builds a collision-free storage key for an uploaded protocol
// file, keeping the original extension.
func ObjectKey(filename string) string {
	return "protocols/" + uuid.NewString() + filepath.Ext(filename)
}

func (s *ProtocolStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})

	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	return nil
}

func (s *ProtocolStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)

	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}

	return url.String(), nil
}

func (s *ProtocolStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	return nil
}
