package minio

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
)

// Storage holds uploaded game videos in one bucket and per-session report artifacts in another.
type Storage struct {
	client         *miniogo.Client
	uploadBucket   string
	artifactBucket string
}

type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	UploadBucket   string
	ArtifactBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:         client,
		uploadBucket:   cfg.UploadBucket,
		artifactBucket: cfg.ArtifactBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.uploadBucket, s.artifactBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) UploadVideo(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.uploadBucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload video: %w", err)
	}
	return nil
}

// DownloadVideo reports a missing object as entity.ErrSourceUnavailable.
func (s *Storage) DownloadVideo(ctx context.Context, objectKey string, destPath string) error {
	err := s.client.FGetObject(ctx, s.uploadBucket, objectKey, destPath, miniogo.GetObjectOptions{})
	if isNotFound(err) {
		return fmt.Errorf("%w: video %s not found", entity.ErrSourceUnavailable, objectKey)
	}
	if err != nil {
		return fmt.Errorf("download video: %w", err)
	}
	return nil
}

func (s *Storage) DeleteVideo(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.uploadBucket, objectKey, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	return nil
}

func (s *Storage) UploadArtifact(ctx context.Context, objectKey string, srcPath string) error {
	_, err := s.client.FPutObject(ctx, s.artifactBucket, objectKey, srcPath, miniogo.PutObjectOptions{
		ContentType: contentTypeFor(srcPath),
	})
	if err != nil {
		return fmt.Errorf("upload artifact %s: %w", objectKey, err)
	}
	return nil
}

// OpenArtifact reports a missing object as entity.ErrSourceUnavailable.
func (s *Storage) OpenArtifact(ctx context.Context, objectKey string) (io.ReadCloser, *port.ArtifactInfo, error) {
	obj, err := s.client.GetObject(ctx, s.artifactBucket, objectKey, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get artifact: %w", err)
	}
	// GetObject is lazy; Stat is the first call that reaches the server.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("%w: artifact %s not found", entity.ErrSourceUnavailable, objectKey)
		}
		return nil, nil, fmt.Errorf("stat artifact: %w", err)
	}
	return obj, &port.ArtifactInfo{Size: info.Size, ContentType: info.ContentType}, nil
}

// DeletePrefix removes every artifact stored under prefix.
func (s *Storage) DeletePrefix(ctx context.Context, prefix string) error {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects := s.client.ListObjects(ctx, s.artifactBucket, miniogo.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for rmErr := range s.client.RemoveObjects(ctx, s.artifactBucket, objects, miniogo.RemoveObjectsOptions{}) {
		if rmErr.Err != nil {
			return fmt.Errorf("delete artifact %s: %w", rmErr.ObjectName, rmErr.Err)
		}
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.artifactBucket)
	return err
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return miniogo.ToErrorResponse(err).Code == "NoSuchKey"
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".zip":
		return "application/zip"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
