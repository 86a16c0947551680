// Package gcs implements a Google Cloud Storage state backend.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/stackline-io/stackctl/pkg/state/backend"
)

func init() {
	backend.Register("gcs", New)
}

// Backend stores stack state as objects in a GCS bucket.
type Backend struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS backend. Settings: bucket (required), prefix,
// credentials or credentials_json, and endpoint for the emulator.
func New(settings map[string]string) (backend.Backend, error) {
	bucket := settings["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("gcs backend requires 'bucket' configuration")
	}

	var opts []option.ClientOption
	if file := settings["credentials"]; file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	if raw := settings["credentials_json"]; raw != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(raw)))
	}
	if endpoint := settings["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &Backend{
		client: client,
		bucket: bucket,
		prefix: settings["prefix"],
	}, nil
}

func (b *Backend) Type() string {
	return "gcs"
}

func (b *Backend) Read(ctx context.Context, statePath string) (io.ReadCloser, error) {
	object := b.object(statePath)

	reader, err := b.client.Bucket(b.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", b.bucket, object, err)
	}
	return reader, nil
}

func (b *Backend) Write(ctx context.Context, statePath string, data io.Reader) error {
	object := b.object(statePath)

	writer := b.client.Bucket(b.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", b.bucket, object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, statePath string) error {
	object := b.object(statePath)

	if err := b.client.Bucket(b.bucket).Object(object).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete gs://%s/%s: %w", b.bucket, object, err)
	}
	return nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{
		Prefix: b.object(prefix),
	})

	var paths []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		paths = append(paths, b.rel(attrs.Name))
	}
	return paths, nil
}

func (b *Backend) Exists(ctx context.Context, statePath string) (bool, error) {
	object := b.object(statePath)

	_, err := b.client.Bucket(b.bucket).Object(object).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return true, nil
}

func (b *Backend) Lock(ctx context.Context, statePath string, info backend.LockInfo) (backend.Lock, error) {
	lockObject := b.object(statePath + ".lock")

	if existing, err := b.readLock(ctx, lockObject); err == nil {
		if time.Since(existing.Created) < backend.StaleLockAge {
			return nil, &backend.LockError{Info: existing, Err: backend.ErrLocked}
		}
	}

	info.ID = uuid.New().String()
	info.Path = statePath
	info.Created = time.Now()

	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock info: %w", err)
	}

	writer := b.client.Bucket(b.bucket).Object(lockObject).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close lock writer: %w", err)
	}

	return &objectLock{backend: b, object: lockObject, info: info}, nil
}

func (b *Backend) readLock(ctx context.Context, lockObject string) (backend.LockInfo, error) {
	reader, err := b.client.Bucket(b.bucket).Object(lockObject).NewReader(ctx)
	if err != nil {
		return backend.LockInfo{}, err
	}
	defer reader.Close()

	var info backend.LockInfo
	if err := json.NewDecoder(reader).Decode(&info); err != nil {
		return backend.LockInfo{}, err
	}
	return info, nil
}

func (b *Backend) object(statePath string) string {
	if b.prefix == "" {
		return statePath
	}
	return path.Join(b.prefix, statePath)
}

func (b *Backend) rel(object string) string {
	if b.prefix == "" {
		return object
	}
	return strings.TrimPrefix(object, b.prefix+"/")
}

// Close releases the underlying GCS client.
func (b *Backend) Close() error {
	return b.client.Close()
}

type objectLock struct {
	backend *Backend
	object  string
	info    backend.LockInfo
}

func (l *objectLock) ID() string {
	return l.info.ID
}

func (l *objectLock) Info() backend.LockInfo {
	return l.info
}

func (l *objectLock) Unlock(ctx context.Context) error {
	err := l.backend.client.Bucket(l.backend.bucket).Object(l.object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

var _ backend.Backend = (*Backend)(nil)
