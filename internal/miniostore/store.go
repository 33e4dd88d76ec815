// Package miniostore implements the certificate object store on MinIO or any
// other S3-compatible server reachable through minio-go.
package miniostore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/kylejryan/course-certificate-generator/internal/storage"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// API is the subset of *minio.Client used by Store.
type API interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Config holds the connection settings for a MinIO endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Generator string
}

// Store wraps MinIO interactions for certificate artifacts.
type Store struct {
	client   API
	bucket   string
	gen      string
	hasCreds bool
	sse      encrypt.ServerSide
	log      *zap.Logger
	now      func() time.Time
}

// New creates a MinIO client from cfg.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	s := NewWithClient(client, cfg.Bucket, cfg.Generator, log)
	s.hasCreds = cfg.AccessKey != "" && cfg.SecretKey != ""
	return s, nil
}

// NewWithClient wraps an existing client. Credentials are assumed present.
func NewWithClient(client API, bucket, generator string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		client:   client,
		bucket:   bucket,
		gen:      generator,
		hasCreds: true,
		sse:      encrypt.NewSSE(),
		log:      log.With(zap.String("bucket", bucket)),
		now:      time.Now,
	}
}

// Bucket returns the target bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Upload stores body under key and returns a GET link valid for storage.LinkTTL.
func (s *Store) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if !s.hasCreds {
		s.log.Error("MinIO credentials not found")
		return "", &storage.Error{Kind: storage.ErrCredentialsMissing}
	}
	s.log.Info("uploading certificate", zap.String("key", key), zap.Int("size", len(body)))

	opts := minio.PutObjectOptions{
		ContentType:          contentType,
		UserMetadata:         storage.Metadata(s.gen, s.now()),
		ServerSideEncryption: s.sse,
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), opts); err != nil {
		return "", s.classify("put object", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, storage.LinkTTL, url.Values{})
	if err != nil {
		return "", s.classify("presign", err)
	}
	return u.String(), nil
}

// TestConnection checks the bucket exists and round-trips a throwaway object.
func (s *Store) TestConnection(ctx context.Context) error {
	if !s.hasCreds {
		return &storage.Error{Kind: storage.ErrCredentialsMissing}
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return s.classify("check bucket", err)
	}
	if !exists {
		return &storage.Error{Kind: storage.ErrBucketMissing, Bucket: s.bucket}
	}

	key := storage.ConnectionTestPrefix + "connection-test-" + ulid.Make().String() + ".txt"
	body := []byte("Connection test at " + s.now().UTC().Format(time.RFC3339))
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{ContentType: "text/plain"}); err != nil {
		return s.classify("put test object", err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.classify("delete test object", err)
	}
	return nil
}

// List returns every object under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	var out []storage.Object
	for o := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if o.Err != nil {
			return nil, s.classify("list objects", o.Err)
		}
		out = append(out, storage.Object{Key: o.Key, Size: o.Size, LastModified: o.LastModified})
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

func (s *Store) classify(op string, err error) error {
	code := minio.ToErrorResponse(err).Code
	kind := storage.ErrUploadFailed
	switch code {
	case "NoSuchBucket":
		kind = storage.ErrBucketMissing
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		kind = storage.ErrAccessDenied
	}
	s.log.Error("MinIO operation failed", zap.String("op", op), zap.String("code", code), zap.Error(err))
	return &storage.Error{Kind: kind, Bucket: s.bucket, Err: fmt.Errorf("%s: %w", op, err)}
}
