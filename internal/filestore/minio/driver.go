// Package minio provides a MinIO implementation of filestore.Store.
//
// Usage:
//
//	md := connection.Metadata{Host: "localhost", Port: 9000, Username: "minioadmin", Password: "minioadmin", Database: "reports"}
//	backend, err := minio.New(ctx, md, filestore.DefaultOptions())
//	if err != nil { ... }
//	store := filestore.NewAdapter(backend, md.Database)
//	defer store.Close()
package minio

import (
	"context"
	"fmt"

	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/filestore"
	"github.com/koustreak/roubi/internal/logger"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultPort = 9000

// Driver is a MinIO implementation of filestore.Store.
type Driver struct {
	client *miniogo.Client
	log    *logger.Logger
}

var _ filestore.Store = (*Driver)(nil)

// New builds a MinIO client from md and verifies the server is reachable
// before returning. md.Username/md.Password are the access/secret keys.
func New(ctx context.Context, md connection.Metadata, opts filestore.Options) (*Driver, error) {
	target, err := md.Resolve("http", defaultPort)
	if err != nil {
		return nil, err
	}

	endpoint, secure := endpointFor(target, opts)
	client, err := miniogo.New(endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(target.Username, target.Password, ""),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{
		client: client,
		log:    logger.FromContext(ctx).ForAdapter("minio", endpoint),
	}

	if err := d.ping(ctx, target.Database); err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "minio unreachable", err)
	}

	d.log.Debug("connected")
	return d, nil
}

// endpointFor returns the host[:port] and TLS flag for the client. An
// explicit URI decides both; a port-less URI uses its scheme's default.
func endpointFor(target connection.Target, opts filestore.Options) (string, bool) {
	if target.FromURI() {
		return target.Address(), target.Scheme == "https"
	}
	return target.Endpoint(), opts.UseSSL
}

// ping checks the default bucket when one is configured, otherwise lists
// buckets. A missing default bucket fails like any other ping error.
func (d *Driver) ping(ctx context.Context, bucket string) error {
	if bucket != "" {
		ok, err := d.client.BucketExists(ctx, bucket)
		if err != nil {
			return err
		}
		if !ok {
			return errs.New(errs.ErrKindNotFound, fmt.Sprintf("bucket %q does not exist", bucket))
		}
		return nil
	}
	_, err := d.client.ListBuckets(ctx)
	return err
}

// Close is a no-op for MinIO; the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	if d.client == nil {
		return errs.ErrNotConnected
	}
	d.client = nil
	d.log.Debug("closed")
	return nil
}

// ListObjects lists every object of bucket, recursively.
func (d *Driver) ListObjects(ctx context.Context, bucket string) (*filestore.ListObjectsResult, error) {
	if d.client == nil {
		return nil, errs.ErrNotConnected
	}

	res := &filestore.ListObjectsResult{BucketName: bucket}
	for obj := range d.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		res.Entries = append(res.Entries, toEntry(obj))
	}
	return res, nil
}

// ObjectExists stats key; any S3 error response counts as "not accessible".
func (d *Driver) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	if d.client == nil {
		return false, errs.ErrNotConnected
	}

	_, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if miniogo.ToErrorResponse(err).Code != "" {
		return false, nil
	}
	return false, mapError(err, "failed to stat object")
}

func toEntry(obj miniogo.ObjectInfo) filestore.ObjectEntry {
	var owner *filestore.Owner
	if obj.Owner.DisplayName != "" || obj.Owner.ID != "" {
		owner = &filestore.Owner{DisplayName: obj.Owner.DisplayName, ID: obj.Owner.ID}
	}
	return filestore.NewObjectEntry(obj.Key, obj.LastModified, obj.Size, obj.StorageClass, owner)
}
