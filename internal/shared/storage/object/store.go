package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ErrPresignUnsupported is returned by stores that cannot issue download URLs.
var ErrPresignUnsupported = errors.New("presigned urls not supported by this store")

// ObjectStore defines the contract for saving and retrieving binary objects by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Presigner issues time-limited download URLs for stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// PresignGet issues a download URL when the store supports it.
func PresignGet(ctx context.Context, store ObjectStore, key string, ttl time.Duration) (string, error) {
	p, ok := store.(Presigner)
	if !ok {
		return "", ErrPresignUnsupported
	}
	return p.PresignGet(ctx, key, ttl)
}

// ReadAll loads an object fully, rejecting objects above maxBytes.
func ReadAll(ctx context.Context, store ObjectStore, key string, maxBytes int64) ([]byte, error) {
	body, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, errors.New("object exceeds size limit")
	}
	return data, nil
}
