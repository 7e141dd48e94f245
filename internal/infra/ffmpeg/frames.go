package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
)

// ListFrames returns the frame images in dir with the given extension, in name order.
// Index is the position in that order.
func ListFrames(dir string, ext string) ([]entity.Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frames dir: %w", err)
	}

	suffix := "." + strings.TrimPrefix(strings.ToLower(ext), ".")
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	frames := make([]entity.Frame, len(names))
	for i, name := range names {
		frames[i] = entity.Frame{Index: i, ID: name, Path: filepath.Join(dir, name)}
	}
	return frames, nil
}
