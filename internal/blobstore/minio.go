package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore implements Store for MinIO and S3-compatible storage.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// MinIOOptions configures a MinIO connection.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string // defaults to the endpoint URL
}

// NewMinIOStore connects to the endpoint and makes sure the bucket exists.
func NewMinIOStore(ctx context.Context, opts MinIOOptions) (*MinIOStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = client.EndpointURL().String() + "/" + opts.Bucket
	}

	return &MinIOStore{client: client, bucket: opts.Bucket, publicURL: publicURL}, nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Put uploads a blob.
func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	if !validKey(key) {
		return Object{}, fmt.Errorf("invalid blob key %q", key)
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("upload blob: %w", err)
	}
	return Object{Key: key, URL: joinURL(s.publicURL, key)}, nil
}

// Get downloads a whole blob.
func (s *MinIOStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get blob: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete removes a blob.
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil // Already gone
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
