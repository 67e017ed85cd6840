package attachments

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrUnsupported  = errors.New("blob store: unsupported operation")
)

type Driver string

const (
	DriverMemory Driver = "memory"
	DriverMinIO  Driver = "minio"
)

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// BlobInfo describes a stored object.
type BlobInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"contentType,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"lastModified"`
}

// BlobStore is the object storage the attachment backend writes to.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (BlobInfo, error)
	Get(ctx context.Context, key string) (BlobInfo, io.ReadCloser, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
