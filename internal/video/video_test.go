package video

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"imgpress/internal/engine"
)

func TestCrfFor(t *testing.T) {
	tests := []struct {
		quality int
		want    int
	}{
		{100, 18},
		{1, 40},
		{50, 30},
	}
	for _, tt := range tests {
		if got := crfFor(tt.quality); got != tt.want {
			t.Errorf("crfFor(%d) = %d, want %d", tt.quality, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	e := New(ToolPaths{}, engine.Options{OutputDir: "/out"})
	got := e.outputPath("/media/clip.mkv")
	if got != filepath.Join("/out", "clip.mp4") {
		t.Errorf("outputPath = %q", got)
	}

	e = New(ToolPaths{}, engine.Options{})
	got = e.outputPath("/media/clip.mkv")
	if got != filepath.Join("/media", "clip.mp4") {
		t.Errorf("outputPath without OutputDir = %q", got)
	}

	// An mp4 input in place must not be overwritten while it is read.
	got = e.outputPath("/media/clip.mp4")
	if got != filepath.Join("/media", "clip.compressed.mp4") {
		t.Errorf("outputPath for in-place mp4 = %q", got)
	}
}

func TestCompressRejectsFragments(t *testing.T) {
	e := New(ToolPaths{}, engine.Options{})
	_, err := e.Compress(context.Background(), engine.Fragment{Origin: "clip.mkv"})
	if !errors.Is(err, engine.ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTail(t *testing.T) {
	if got := tail("a\nb\nc\nd\ne\n"); got != "c | d | e" {
		t.Errorf("tail = %q", got)
	}
	if got := tail("only"); got != "only" {
		t.Errorf("tail = %q", got)
	}
}
