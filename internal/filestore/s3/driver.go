// Package s3 provides an AWS S3 implementation of filestore.Store built on
// aws-sdk-go-v2. It also serves any S3-compatible endpoint.
package s3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/filestore"
	"github.com/koustreak/roubi/internal/logger"
)

const defaultPort = 443

// Driver is an S3 implementation of filestore.Store.
type Driver struct {
	client *s3.Client
	log    *logger.Logger
}

var _ filestore.Store = (*Driver)(nil)

// New builds an S3 client pointed at md's endpoint with static credentials
// (md.Username / md.Password) and verifies it before returning. SDK retries
// are disabled; every call is a single attempt.
func New(ctx context.Context, md connection.Metadata, opts filestore.Options) (*Driver, error) {
	target, err := md.Resolve("http", defaultPort)
	if err != nil {
		return nil, err
	}

	endpoint := endpointFor(target, opts)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithRetryMaxAttempts(1),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(target.Username, target.Password, ""),
		),
	)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to load aws config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = opts.ForcePathStyle
	})

	d := &Driver{
		client: client,
		log:    logger.FromContext(ctx).ForAdapter("s3", endpoint),
	}

	if err := d.ping(ctx, target.Database); err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "s3 unreachable", err)
	}

	d.log.Debug("connected")
	return d, nil
}

// endpointFor keeps an explicit URI as given; discrete fields pick the
// scheme from opts.UseSSL.
func endpointFor(target connection.Target, opts filestore.Options) string {
	if !target.FromURI() && opts.UseSSL {
		target.Scheme = "https"
	}
	return target.BaseURL()
}

func (d *Driver) ping(ctx context.Context, bucket string) error {
	if bucket != "" {
		_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
		return err
	}
	_, err := d.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err
}

// Close drops the client; the SDK keeps no connection state worth draining.
func (d *Driver) Close() error {
	if d.client == nil {
		return errs.ErrNotConnected
	}
	d.client = nil
	d.log.Debug("closed")
	return nil
}

// ListObjects issues one ListObjects call for bucket (at most one page).
func (d *Driver) ListObjects(ctx context.Context, bucket string) (*filestore.ListObjectsResult, error) {
	if d.client == nil {
		return nil, errs.ErrNotConnected
	}

	out, err := d.client.ListObjects(ctx, &s3.ListObjectsInput{Bucket: aws.String(bucket)})
	if err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	res := &filestore.ListObjectsResult{
		BucketName: aws.ToString(out.Name),
		Prefix:     aws.ToString(out.Prefix),
		Delimiter:  aws.ToString(out.Delimiter),
		Entries:    make([]filestore.ObjectEntry, 0, len(out.Contents)),
	}
	if res.BucketName == "" {
		res.BucketName = bucket
	}
	for _, obj := range out.Contents {
		res.Entries = append(res.Entries, toEntry(obj))
	}
	return res, nil
}

// ObjectExists issues a HeadObject; any S3 API error means "not accessible".
func (d *Driver) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	if d.client == nil {
		return false, errs.ErrNotConnected
	}

	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return false, nil
	}
	return false, mapError(err, "failed to head object")
}

func toEntry(obj types.Object) filestore.ObjectEntry {
	var owner *filestore.Owner
	if obj.Owner != nil {
		owner = &filestore.Owner{
			DisplayName: aws.ToString(obj.Owner.DisplayName),
			ID:          aws.ToString(obj.Owner.ID),
		}
	}
	return filestore.NewObjectEntry(
		aws.ToString(obj.Key),
		aws.ToTime(obj.LastModified),
		aws.ToInt64(obj.Size),
		string(obj.StorageClass),
		owner,
	)
}
