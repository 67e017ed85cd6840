package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// MinIOStore stores attachments in an S3 compatible bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIOStore) Driver() Driver { return DriverMinIO }

func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (BlobInfo, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return BlobInfo{}, fmt.Errorf("upload object %s: %w", key, err)
	}
	return BlobInfo{
		Key:          key,
		Size:         info.Size,
		ContentType:  opts.ContentType,
		Metadata:     cloneMetadata(opts.Metadata),
		LastModified: info.LastModified,
	}, nil
}

func (s *MinIOStore) Get(ctx context.Context, key string) (BlobInfo, io.ReadCloser, error) {
	stat, err := s.stat(ctx, key)
	if err != nil {
		return BlobInfo{}, nil, err
	}
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return BlobInfo{}, nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return stat, object, nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.stat(ctx, key); err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("remove object %s: %w", key, err)
	}
	return true, nil
}

// List stats every object under prefix since plain listings carry no user metadata.
func (s *MinIOStore) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	var out []BlobInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, object.Err)
		}
		info, err := s.stat(ctx, object.Key)
		if err != nil {
			if errors.Is(err, ErrBlobNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *MinIOStore) PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *MinIOStore) stat(ctx context.Context, key string) (BlobInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return BlobInfo{}, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return BlobInfo{}, fmt.Errorf("stat object %s: %w", key, err)
	}
	return BlobInfo{
		Key:          key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		Metadata:     userMetadata(stat.UserMetadata),
		LastModified: stat.LastModified,
	}, nil
}

// userMetadata lower cases keys and drops the x-amz-meta- prefix MinIO may return.
func userMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.ToLower(k)
		key = strings.TrimPrefix(key, "x-amz-meta-")
		out[key] = v
	}
	return out
}
