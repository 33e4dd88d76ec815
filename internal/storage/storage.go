// Package storage defines the object-store contract shared by the S3 and
// MinIO backends: key layout, upload metadata, stats and error categories.
package storage

import (
	"errors"
	"math"
	"time"
)

// LinkTTL is the lifetime of every signed certificate link.
const LinkTTL = 7 * 24 * time.Hour

// ConnectionTestPrefix holds the throwaway objects written by TestConnection.
const ConnectionTestPrefix = "test/"

// Error categories. Backends wrap these so callers can use errors.Is while
// the message carries the human-readable detail.
var (
	ErrCredentialsMissing = errors.New("AWS credentials not configured")
	ErrBucketMissing      = errors.New("bucket does not exist")
	ErrAccessDenied       = errors.New("Access denied to S3 bucket - check IAM permissions")
	ErrUploadFailed       = errors.New("S3 upload failed")
)

// Error is a categorised backend failure.
type Error struct {
	Kind   error // one of the Err* categories
	Bucket string
	Err    error // backend detail, may be nil
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrBucketMissing:
		return "S3 bucket '" + e.Bucket + "' does not exist"
	case ErrCredentialsMissing, ErrAccessDenied:
		return e.Kind.Error()
	}
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Is reports whether target is the error's category.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// Metadata returns the user metadata attached to every uploaded certificate.
func Metadata(generator string, now time.Time) map[string]string {
	return map[string]string{
		"generated_at": now.UTC().Format(time.RFC3339),
		"generator":    generator,
	}
}

// Object describes one stored object.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Stats summarises the stored certificates.
type Stats struct {
	TotalCertificates int     `json:"total_certificates"`
	TotalSizeMB       float64 `json:"total_size_mb"`
	Bucket            string  `json:"bucket,omitempty"`
}

// Summarize computes Stats over objs; sizes are reported in MiB rounded to two places.
func Summarize(bucket string, objs []Object) Stats {
	var total int64
	for _, o := range objs {
		total += o.Size
	}
	return Stats{
		TotalCertificates: len(objs),
		TotalSizeMB:       math.Round(float64(total)/(1024*1024)*100) / 100,
		Bucket:            bucket,
	}
}
