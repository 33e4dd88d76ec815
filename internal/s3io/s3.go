// Package s3io implements the certificate object store on Amazon S3.
package s3io

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kylejryan/course-certificate-generator/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// API is the subset of the S3 client used by Store.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Presigner defines the interface for presigning S3 GET requests.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configures a Store.
type Options struct {
	Bucket      string
	Generator   string                  // value of the "generator" metadata tag
	Credentials aws.CredentialsProvider // nil means no credentials are configured
	Logger      *zap.Logger
	Now         func() time.Time
}

// Store uploads certificates to a bucket and issues signed GET links.
type Store struct {
	api     API
	presign Presigner
	bucket  string
	gen     string
	creds   aws.CredentialsProvider
	log     *zap.Logger
	now     func() time.Time
}

// New wraps an S3 client and presigner.
func New(api API, presign Presigner, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		api:     api,
		presign: presign,
		bucket:  opts.Bucket,
		gen:     opts.Generator,
		creds:   opts.Credentials,
		log:     opts.Logger.With(zap.String("bucket", opts.Bucket)),
		now:     opts.Now,
	}
}

// NewFromConfig builds a Store from a loaded AWS config.
func NewFromConfig(cfg aws.Config, client *s3.Client, bucket, generator string, log *zap.Logger) *Store {
	return New(client, s3.NewPresignClient(client), Options{
		Bucket:      bucket,
		Generator:   generator,
		Credentials: cfg.Credentials,
		Logger:      log,
	})
}

// Bucket returns the target bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Upload writes body under key with SSE-S3 and generation metadata, then
// returns a GET link valid for storage.LinkTTL.
func (s *Store) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if err := s.checkCredentials(ctx); err != nil {
		return "", err
	}
	s.log.Info("uploading certificate", zap.String("key", key), zap.Int("size", len(body)))

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentLength:        aws.Int64(int64(len(body))),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata:             storage.Metadata(s.gen, s.now()),
	})
	if err != nil {
		return "", s.classify("put object", err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = storage.LinkTTL })
	if err != nil {
		return "", s.classify("presign", err)
	}
	return req.URL, nil
}

// TestConnection checks the bucket is reachable and writable by writing and
// deleting a throwaway object.
func (s *Store) TestConnection(ctx context.Context) error {
	if err := s.checkCredentials(ctx); err != nil {
		return err
	}
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return s.classify("head bucket", err)
	}

	key := storage.ConnectionTestPrefix + "connection-test-" + ulid.Make().String() + ".txt"
	body := []byte("Connection test at " + s.now().UTC().Format(time.RFC3339))
	if _, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("text/plain"),
	}); err != nil {
		return s.classify("put test object", err)
	}
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return s.classify("delete test object", err)
	}
	return nil
}

// List returns every object under prefix, following continuation tokens.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var out []storage.Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, s.classify("list objects", err)
		}
		for _, o := range page.Contents {
			out = append(out, storage.Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	return out, nil
}

// Stats summarises every object under the certificates prefix.
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	objs, err := s.List(ctx, storage.CertificatePrefix)
	if err != nil {
		s.log.Error("certificate stats failed", zap.Error(err))
		return storage.Stats{}, err
	}
	return storage.Summarize(s.bucket, objs), nil
}

func (s *Store) checkCredentials(ctx context.Context) error {
	if s.creds == nil {
		s.log.Error("AWS credentials not found")
		return &storage.Error{Kind: storage.ErrCredentialsMissing}
	}
	if _, err := s.creds.Retrieve(ctx); err != nil {
		s.log.Error("AWS credentials not found", zap.Error(err))
		return &storage.Error{Kind: storage.ErrCredentialsMissing, Err: err}
	}
	return nil
}

// classify maps a backend error onto a storage category.
func (s *Store) classify(op string, err error) error {
	kind := storage.ErrUploadFailed
	code := ""
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code = ae.ErrorCode()
		switch code {
		case "NoSuchBucket", "NotFound":
			kind = storage.ErrBucketMissing
		case "AccessDenied", "Forbidden", "AllAccessDisabled":
			kind = storage.ErrAccessDenied
		}
	}
	s.log.Error("S3 operation failed", zap.String("op", op), zap.String("code", code), zap.Error(err))
	return &storage.Error{Kind: kind, Bucket: s.bucket, Err: fmt.Errorf("%s: %w", op, err)}
}
