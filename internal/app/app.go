// Package app wires configuration into the storage backend and pipeline
// shared by the Lambda function and the certctl CLI.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/kylejryan/course-certificate-generator/internal/awsutil"
	"github.com/kylejryan/course-certificate-generator/internal/config"
	"github.com/kylejryan/course-certificate-generator/internal/miniostore"
	"github.com/kylejryan/course-certificate-generator/internal/pdfconv"
	"github.com/kylejryan/course-certificate-generator/internal/pipeline"
	"github.com/kylejryan/course-certificate-generator/internal/render"
	"github.com/kylejryan/course-certificate-generator/internal/s3io"
	"github.com/kylejryan/course-certificate-generator/internal/storage"

	"go.uber.org/zap"
)

// Store is the full object-store surface used by the Lambda and the CLI.
type Store interface {
	pipeline.Uploader
	TestConnection(ctx context.Context) error
	Stats(ctx context.Context) (storage.Stats, error)
	List(ctx context.Context, prefix string) ([]storage.Object, error)
	Bucket() string
}

var (
	_ Store = (*s3io.Store)(nil)
	_ Store = (*miniostore.Store)(nil)
)

// NewStore builds the storage backend selected by env.StorageDriver.
func NewStore(ctx context.Context, env config.Env, log *zap.Logger) (Store, error) {
	switch env.StorageDriver {
	case config.DriverMinIO:
		return miniostore.New(miniostore.Config{
			Endpoint:  env.MinIO.Endpoint,
			AccessKey: env.MinIO.AccessKey,
			SecretKey: env.MinIO.SecretKey,
			UseSSL:    env.MinIO.UseSSL,
			Region:    env.Region,
			Bucket:    env.Bucket,
			Generator: env.GeneratorTag,
		}, log)
	default:
		cfg, endpoint, err := awsutil.Load(ctx, env.Region)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3io.NewFromConfig(cfg, awsutil.NewS3Client(cfg, endpoint), env.Bucket, env.GeneratorTag, log), nil
	}
}

// NewPipeline builds the pipeline for env.Format: the naive renderer for
// HTML, the template engine plus PDF converter for PDF.
func NewPipeline(env config.Env, store pipeline.Uploader, log *zap.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if env.Format != config.FormatPDF {
		return pipeline.New(render.NewNaive(""), store, log, opts...), nil
	}
	var fsys fs.FS
	if env.TemplateDir != "" {
		fsys = os.DirFS(env.TemplateDir)
	}
	engine, err := render.NewEngine(fsys, render.DefaultTemplate)
	if err != nil {
		return nil, err
	}
	opts = append([]pipeline.Option{pipeline.WithConverter(pdfconv.PDF{Creator: env.GeneratorTag})}, opts...)
	return pipeline.New(engine, store, log, opts...), nil
}
