package port

import (
	"context"
	"io"
)

type ArtifactInfo struct {
	Size        int64
	ContentType string
}

type VideoStorage interface {
	UploadVideo(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	DeleteVideo(ctx context.Context, objectKey string) error
}

type ArtifactStorage interface {
	UploadArtifact(ctx context.Context, objectKey string, srcPath string) error
	OpenArtifact(ctx context.Context, objectKey string) (io.ReadCloser, *ArtifactInfo, error)
	DeletePrefix(ctx context.Context, prefix string) error
}
