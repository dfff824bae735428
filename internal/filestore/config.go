package filestore

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
	ProviderS3    Provider = "s3"
)

// Options are the provider settings not carried by connection.Metadata.
// Host/Port form the endpoint, Username/Password are the access/secret key
// pair and Database is the default bucket.
type Options struct {
	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `mapstructure:"use_ssl"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `mapstructure:"region"`

	// ForcePathStyle addresses buckets as endpoint/bucket rather than
	// bucket.endpoint. Needed for S3-compatible servers.
	ForcePathStyle bool `mapstructure:"force_path_style"`
}

// DefaultOptions returns a sensible local-dev config.
func DefaultOptions() Options {
	return Options{
		UseSSL:         false,
		Region:         "us-east-1",
		ForcePathStyle: true,
	}
}
