package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Sink saves an image under a name and returns where it ended up.
type Sink interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// FileName returns the download name used for generated images,
// NameYourInk_<unix millis>.png.
func FileName(t time.Time) string {
	return "NameYourInk_" + strconv.FormatInt(t.UnixMilli(), 10) + ".png"
}

// ObjectName returns a unique object name for an image rendered in styleID.
func ObjectName(styleID, ext string) string {
	if ext == "" {
		ext = ".png"
	}
	if styleID == "" {
		styleID = "unknown"
	}
	return path.Join("generated", styleID, uuid.NewString()+ext)
}

// FileSink stores images under a directory on the local filesystem.
type FileSink struct {
	dir string
}

// NewFileSink creates a FileSink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Save writes data to dir/name, creating dir if needed.
func (s *FileSink) Save(_ context.Context, name string, data []byte, _ string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	dst := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file %s: %w", dst, err)
	}
	return dst, nil
}

// MinioConfig holds the connection parameters of a MinIO/S3 bucket.
type MinioConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
}

// MinioSink stores images in a MinIO bucket.
type MinioSink struct {
	client     *minio.Client
	bucketName string
}

// NewMinioSink connects to the MinIO server and creates the bucket if it
// does not exist.
func NewMinioSink(ctx context.Context, cfg MinioConfig) (*MinioSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioSink{client: client, bucketName: cfg.BucketName}, nil
}

// Save uploads data as object name and returns the object name.
func (s *MinioSink) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save object %s: %w", name, err)
	}
	return name, nil
}

// Delete removes an object from the bucket.
func (s *MinioSink) Delete(ctx context.Context, name string) error {
	return s.client.RemoveObject(ctx, s.bucketName, name, minio.RemoveObjectOptions{})
}
