// Package main is the Lambda function that generates a course certificate,
// stores it and returns a signed link.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kylejryan/course-certificate-generator/internal/app"
	"github.com/kylejryan/course-certificate-generator/internal/config"
	"github.com/kylejryan/course-certificate-generator/internal/logging"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

func main() {
	env := config.MustLoad()
	log, err := logging.New(env.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	store, err := app.NewStore(context.Background(), env, log)
	if err != nil {
		log.Fatal("init storage", zap.Error(err))
	}
	p, err := app.NewPipeline(env, store, log)
	if err != nil {
		log.Fatal("init pipeline", zap.Error(err))
	}

	log.Info("certificate generator ready",
		zap.String("bucket", store.Bucket()),
		zap.String("driver", env.StorageDriver),
		zap.String("format", env.Format))
	lambda.Start(p.Handle)
}
