// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Storage drivers.
const (
	DriverS3    = "s3"
	DriverMinIO = "minio"
)

// Certificate output formats.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// Env holds the configuration values for the application.
type Env struct {
	Region        string
	Bucket        string
	StorageDriver string
	Format        string
	TemplateDir   string
	GeneratorTag  string
	LogLevel      string
	MinIO         MinIO
}

// MinIO holds the settings used when StorageDriver is "minio".
type MinIO struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Load reads the environment variables and returns an Env struct.
func Load() (Env, error) {
	e := Env{
		Region:        get("S3_REGION", get("AWS_REGION", "us-east-1")),
		Bucket:        get("S3_BUCKET", "course-certificates-storage"),
		StorageDriver: strings.ToLower(get("STORAGE_DRIVER", DriverS3)),
		Format:        strings.ToLower(get("CERTIFICATE_FORMAT", FormatHTML)),
		TemplateDir:   get("TEMPLATE_DIR", ""),
		GeneratorTag:  get("GENERATOR_TAG", "certificate-generator-lambda"),
		LogLevel:      get("LOG_LEVEL", "info"),
		MinIO: MinIO{
			Endpoint:  get("MINIO_ENDPOINT", ""),
			AccessKey: get("MINIO_ACCESS_KEY", ""),
			SecretKey: get("MINIO_SECRET_KEY", ""),
			UseSSL:    get("MINIO_USE_SSL", "") == "true",
		},
	}
	switch e.StorageDriver {
	case DriverS3:
	case DriverMinIO:
		if e.MinIO.Endpoint == "" {
			return e, fmt.Errorf("missing env MINIO_ENDPOINT for storage driver %q", DriverMinIO)
		}
	default:
		return e, fmt.Errorf("unknown STORAGE_DRIVER %q", e.StorageDriver)
	}
	if e.Format != FormatHTML && e.Format != FormatPDF {
		return e, fmt.Errorf("unknown CERTIFICATE_FORMAT %q", e.Format)
	}
	return e, nil
}

// MustLoad is Load that panics on invalid configuration.
func MustLoad() Env {
	e, err := Load()
	if err != nil {
		panic(err)
	}
	return e
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
