package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"vrec-go/internal/config"
	"vrec-go/internal/vr"
)

// versionMetadataKey is the object metadata entry carrying a metadata version.
const versionMetadataKey = "version"

// S3API is the subset of the S3 client used by S3Vault.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Vault stores content and metadata as objects in an S3 bucket:
//
//	<prefix>content/<key>
//	<prefix>metadata/<scope>/<name>   (version in object metadata)
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   S3API
	uploader *manager.Uploader
}

// NewS3Vault creates a vault over an existing client.
func NewS3Vault(name, bucket, prefix string, client S3API) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

// NewS3VaultFromConfig builds an S3 client from the vault config. Static
// credentials are used when an access key is configured; otherwise the
// default AWS credential chain applies. A custom endpoint switches to
// path-style addressing for S3-compatible stores.
func NewS3VaultFromConfig(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Vault(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client), nil
}

func (v *S3Vault) contentKey(key string) string {
	return v.prefix + "content/" + key
}

func (v *S3Vault) metadataKey(scope, name string) string {
	return v.prefix + "metadata/" + scope + "/" + name
}

// PutContent uploads the payload for key, replacing any previous object.
func (v *S3Vault) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	return v.put(ctx, v.contentKey(key), r, size, nil)
}

// GetContent downloads the payload for key into w.
func (v *S3Vault) GetContent(ctx context.Context, key string, w io.Writer) error {
	return v.get(ctx, v.contentKey(key), w, "content "+key)
}

// DeleteContent removes the object for key. S3 treats absent keys as deleted.
func (v *S3Vault) DeleteContent(ctx context.Context, key string) error {
	_, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.contentKey(key)),
	})
	if err != nil {
		return fmt.Errorf("deleting s3 object: %w", err)
	}
	return nil
}

// PutMetadata uploads a named metadata item with its version in the
// object's user metadata.
func (v *S3Vault) PutMetadata(ctx context.Context, scope, name string, r io.Reader, size int64, version int64) error {
	meta := map[string]string{versionMetadataKey: strconv.FormatInt(version, 10)}
	return v.put(ctx, v.metadataKey(scope, name), r, size, meta)
}

// GetMetadata downloads a named metadata item into w.
func (v *S3Vault) GetMetadata(ctx context.Context, scope, name string, w io.Writer) error {
	return v.get(ctx, v.metadataKey(scope, name), w, fmt.Sprintf("metadata %q for %s", name, scope))
}

// GetMetadataVersion reads the version from the object's user metadata.
// Returns 0 if the object does not exist.
func (v *S3Vault) GetMetadataVersion(ctx context.Context, scope, name string) (int64, error) {
	out, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.metadataKey(scope, name)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading s3 object metadata: %w", err)
	}

	raw, ok := out.Metadata[versionMetadataKey]
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) put(ctx context.Context, key string, r io.Reader, size int64, meta map[string]string) error {
	counter := &countingReader{r: r}
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(key),
		Body:          counter,
		ContentLength: aws.Int64(size),
		Metadata:      meta,
	})
	if err != nil {
		return fmt.Errorf("uploading s3 object: %w", err)
	}
	if counter.n != size {
		// The object is already committed; do not leave a truncated copy behind.
		if _, derr := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(v.bucket),
			Key:    aws.String(key),
		}); derr != nil {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d (removing object: %v)", size, counter.n, derr)
		}
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return nil
}

func (v *S3Vault) get(ctx context.Context, key string, w io.Writer, what string) error {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%s: %w", what, vr.ErrNotFound)
		}
		return fmt.Errorf("downloading s3 object: %w", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading s3 object: %w", err)
	}
	return nil
}

// countingReader counts the bytes handed to the uploader.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Vault implements vr.Vault interface
var _ vr.Vault = (*S3Vault)(nil)
