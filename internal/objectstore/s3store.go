package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

// S3API is the subset of the S3 client S3Store depends on, narrowed so
// tests can substitute a stub without standing up a real client.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store is the production Store implementation: an S3-compatible
// bucket addressed by a key prefix, so multiple cores can share one
// bucket (design §6 "Environment inputs").
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// S3StoreConfig configures NewS3Store. Endpoint, AccessKey, SecretKey,
// and Region come straight from config.Config (design §10.3); an empty
// AccessKey/SecretKey falls back to the default AWS credential chain.
type S3StoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
}

// NewS3Store builds an S3Store from cfg, resolving credentials and
// constructing the underlying AWS SDK client.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.Endpoint != ""
	})

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// NewS3StoreWithClient builds an S3Store around an already-constructed
// client, used in tests with a stub S3API.
func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) fullKey(key string) string {
	return s.prefix + key
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   bytes.NewReader(data),
	}
	if opts.IfNoneMatch {
		input.IfNoneMatch = aws.String("*")
	}

	_, err := s.client.PutObject(ctx, input)
	if err == nil {
		return nil
	}

	var apiErr preconditionFailedError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
		return errPrecondition(key)
	}
	return coreerr.Transient(err, "put object %q", key)
}

func (s *S3Store) Get(ctx context.Context, key string, rng *ByteRange) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	}
	if rng != nil {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End))
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, errNotFound(key)
		}
		return nil, coreerr.Transient(err, "get object %q", key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, coreerr.Transient(err, "read object body %q", key)
	}
	return data, nil
}

func (s *S3Store) Head(ctx context.Context, key string) (ObjectMeta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return ObjectMeta{}, errNotFound(key)
		}
		return ObjectMeta{}, coreerr.Transient(err, "head object %q", key)
	}

	meta := ObjectMeta{Key: key}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	if out.LastModified != nil {
		meta.LastModified = out.LastModified.Unix()
	}
	return meta, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return coreerr.Transient(err, "delete object %q", key)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string, continuationToken string) (ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.fullKey(prefix)),
	}
	if continuationToken != "" {
		input.ContinuationToken = aws.String(continuationToken)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return ListPage{}, coreerr.Transient(err, "list objects %q", prefix)
	}

	page := ListPage{}
	stripLen := len(s.prefix)
	for _, obj := range out.Contents {
		meta := ObjectMeta{}
		if obj.Key != nil {
			meta.Key = (*obj.Key)[stripLen:]
		}
		if obj.Size != nil {
			meta.Size = *obj.Size
		}
		if obj.ETag != nil {
			meta.ETag = *obj.ETag
		}
		if obj.LastModified != nil {
			meta.LastModified = obj.LastModified.Unix()
		}
		page.Objects = append(page.Objects, meta)
	}
	if out.NextContinuationToken != nil {
		page.ContinuationToken = *out.NextContinuationToken
	}
	return page, nil
}

// preconditionFailedError matches the S3-compatible "PreconditionFailed"
// API error returned when an IfNoneMatch put loses the race; aws-sdk-go-v2
// surfaces it as a generic smithy API error rather than a typed one, so
// callers match on error code via errors.As against this adapter type.
type preconditionFailedError interface {
	error
	ErrorCode() string
}
