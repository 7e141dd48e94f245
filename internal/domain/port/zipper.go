package port

import "context"

type Zipper interface {
	CreateZip(ctx context.Context, baseDir string, filePaths []string, outputPath string) error
}
