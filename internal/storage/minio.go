package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

const (
	DefaultEndpoint = "minio:9000"
	DefaultBucket   = "extraction-traces"
)

// TraceArchive stores extraction traces as JSON objects in a MinIO bucket.
type TraceArchive struct {
	client *minio.Client
	bucket string
}

// NewTraceArchive connects to MinIO and verifies the bucket exists.
func NewTraceArchive(ctx context.Context, cfg models.StorageConfig) (*TraceArchive, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("no storage credentials configured")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	return &TraceArchive{client: client, bucket: bucket}, nil
}

// Bucket returns the bucket traces are written to.
func (a *TraceArchive) Bucket() string { return a.bucket }

// Record uploads trace as JSON at ObjectName(trace).
func (a *TraceArchive) Record(ctx context.Context, trace models.ExtractionTrace) error {
	body, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}

	_, err = a.client.PutObject(ctx, a.bucket, ObjectName(trace), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload trace: %w", err)
	}
	return nil
}

// ObjectName returns traces/YYYY/MM/<document>/<request id>.json.
func ObjectName(trace models.ExtractionTrace) string {
	t := trace.StartedAt.UTC()
	return fmt.Sprintf("traces/%d/%02d/%s/%s.json", t.Year(), t.Month(), trace.DocumentType, trace.RequestID)
}
