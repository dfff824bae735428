// Package filestore defines the object-store adapter: the listing models, the
// file/folder filters and the Adapter that applies a default bucket on top of
// a provider backend.
//
// Providers (MinIO, AWS S3) live in sub-packages and implement Store.
//
// Usage:
//
//	md := connection.Metadata{Host: "localhost", Port: 9000, Username: "minioadmin", Password: "minioadmin", Database: "reports"}
//	backend, err := minio.New(ctx, md, filestore.DefaultOptions())
//	if err != nil { ... }
//	store := filestore.NewAdapter(backend, md.Database)
//	defer store.Close()
//
//	files, err := store.ListFiles(ctx, filestore.ListOptions{})
package filestore

import (
	"context"

	"github.com/koustreak/roubi/internal/errs"
)

// Store is the contract every object-store provider implements. Each method
// is a single round trip to the backend.
type Store interface {
	// ListObjects lists every object of bucket.
	ListObjects(ctx context.Context, bucket string) (*ListObjectsResult, error)

	// ObjectExists reports whether key can be read from bucket. A
	// service-level refusal (missing key, missing bucket, access denied)
	// yields false with a nil error; transport failures are returned.
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)

	// Close releases the client handle.
	Close() error
}

// ListOptions controls ListFiles and ListFolders.
type ListOptions struct {
	// Bucket overrides the adapter's default bucket for this call.
	Bucket string

	// ExcludeFormats hides files with these formats. nil means
	// DefaultExcludeFormats; an empty non-nil slice excludes nothing.
	// Folder listings ignore it.
	ExcludeFormats []string
}

// Adapter exposes the object-store operations against a default bucket.
type Adapter struct {
	store  Store
	bucket string
}

// NewAdapter wraps store; bucket is used whenever a call does not name one.
func NewAdapter(store Store, bucket string) *Adapter {
	return &Adapter{store: store, bucket: bucket}
}

// Close releases the underlying provider.
func (a *Adapter) Close() error {
	if a.store == nil {
		return errs.ErrNotConnected
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// CheckAccessible reports whether key is readable.
func (a *Adapter) CheckAccessible(ctx context.Context, key, bucket string) (bool, error) {
	if a.store == nil {
		return false, errs.ErrNotConnected
	}
	return a.store.ObjectExists(ctx, a.bucketOr(bucket), key)
}

// ListFiles lists the non-folder entries of the bucket, minus excluded formats.
func (a *Adapter) ListFiles(ctx context.Context, opts ListOptions) ([]ObjectEntry, error) {
	res, err := a.list(ctx, opts.Bucket)
	if err != nil {
		return nil, err
	}
	exclude := opts.ExcludeFormats
	if exclude == nil {
		exclude = DefaultExcludeFormats
	}
	return res.Files(exclude), nil
}

// ListFolders lists the folder entries of the bucket.
func (a *Adapter) ListFolders(ctx context.Context, opts ListOptions) ([]ObjectEntry, error) {
	res, err := a.list(ctx, opts.Bucket)
	if err != nil {
		return nil, err
	}
	return res.Folders(), nil
}

func (a *Adapter) list(ctx context.Context, bucket string) (*ListObjectsResult, error) {
	if a.store == nil {
		return nil, errs.ErrNotConnected
	}
	return a.store.ListObjects(ctx, a.bucketOr(bucket))
}

func (a *Adapter) bucketOr(bucket string) string {
	if bucket != "" {
		return bucket
	}
	return a.bucket
}
