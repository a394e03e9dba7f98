// Package storage provides the S3-compatible object store adapter used for
// uploaded document files.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/techmigra/imigra-bfa-go/internal/config"
	"github.com/techmigra/imigra-bfa-go/internal/domain"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("storage")

// S3Storage implements port.FileStorage on any S3-compatible endpoint
// (AWS, MinIO, Supabase storage gateway).
type S3Storage struct {
	client *s3.S3
	bucket string
}

// NewS3Storage builds a path-style S3 client from config. Path-style
// addressing is required for MinIO and most self-hosted gateways.
func NewS3Storage(cfg *config.Config) (*S3Storage, error) {
	awsCfg := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Region:           aws.String(cfg.S3Region),
		DisableSSL:       aws.Bool(!cfg.S3UseSSL),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}

	return &S3Storage{
		client: s3.New(sess),
		bucket: cfg.S3Bucket,
	}, nil
}

// Upload writes content under key, overwriting any existing object.
func (s *S3Storage) Upload(ctx context.Context, key string, content []byte, contentType string) error {
	ctx, span := tracer.Start(ctx, "S3.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("s3.key", key),
		attribute.Int("s3.size", len(content)),
	)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "s3", Err: err}
	}
	return nil
}

// Download reads the full object under key.
func (s *S3Storage) Download(ctx context.Context, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "S3.Download")
	defer span.End()
	span.SetAttributes(attribute.String("s3.key", key))

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "s3", Err: err}
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "s3", Err: err}
	}
	return content, nil
}

// Delete removes the object under key. Deleting a missing key is not an
// error in S3, which keeps cleanup paths idempotent.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "S3.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("s3.key", key))

	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "s3", Err: err}
	}
	return nil
}
