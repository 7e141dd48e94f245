package entity

import "fmt"

// Frame is one still image sampled from the source video.
type Frame struct {
	Index int
	ID    string
	Path  string
}

// FrameID returns the zero-padded file name used for the frame at a sampled position.
func FrameID(index int, ext string) string {
	return fmt.Sprintf("frame_%04d.%s", index, ext)
}

// AnnotatedName is the file name of the overlay copy of a frame.
func AnnotatedName(frameID string) string {
	return "annotated_" + frameID
}
