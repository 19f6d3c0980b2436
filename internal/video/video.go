package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"imgpress/internal/engine"
	"imgpress/internal/logging"
	"imgpress/internal/metrics"
)

// ToolPaths carries pre-resolved encoder tool locations. Resolved once per
// batch and passed to workers by value so each worker skips PATH discovery.
type ToolPaths struct {
	FFmpeg  string
	FFprobe string
}

// DiscoverTools locates ffmpeg and ffprobe on PATH.
func DiscoverTools() (ToolPaths, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return ToolPaths{}, fmt.Errorf("ffmpeg not found: %w", err)
	}
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return ToolPaths{}, fmt.Errorf("ffprobe not found: %w", err)
	}
	return ToolPaths{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

// Engine compresses video files through ffmpeg. It satisfies the same
// Compress contract as the image engine so the worker runtime can drive both
// uniformly.
type Engine struct {
	tools ToolPaths
	opts  engine.Options
}

// New builds a video engine with resolved options.
func New(tools ToolPaths, opts engine.Options) *Engine {
	return &Engine{tools: tools, opts: opts.Resolve()}
}

// Compress re-encodes one video file. Only whole files are supported; the
// fragmenter never cuts videos.
func (e *Engine) Compress(ctx context.Context, unit engine.Unit) (*engine.Result, error) {
	file, ok := unit.(engine.WholeFile)
	if !ok {
		return nil, fmt.Errorf("%w: video engine requires a file path", engine.ErrUnsupportedFormat)
	}

	info, err := os.Stat(file.Path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", file.Path, err)
	}
	originalSize := info.Size()

	if e.opts.OutputDir != "" {
		if err := os.MkdirAll(e.opts.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	outPath := e.outputPath(file.Path)
	args := []string{"-y", "-i", file.Path, "-c:v", "libx264", "-preset", e.preset()}

	if e.opts.TargetSize > 0 {
		duration, err := e.probeDuration(ctx, file.Path)
		if err != nil || duration <= 0 {
			return nil, fmt.Errorf("%w: cannot derive bitrate without duration: %v", engine.ErrEncodeFailure, err)
		}
		// Leave ~5% headroom for container overhead and audio.
		bitrate := int64(float64(e.opts.TargetSize*8) / duration * 0.95)
		args = append(args, "-b:v", strconv.FormatInt(bitrate, 10), "-maxrate", strconv.FormatInt(bitrate, 10))
	} else {
		args = append(args, "-crf", strconv.Itoa(crfFor(e.opts.Quality)))
	}
	args = append(args, "-c:a", "aac", "-b:a", "128k", outPath)

	logging.Debug("ffmpeg %s", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, e.tools.FFmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(outPath)
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", engine.ErrEncodeFailure, err, tail(stderr.String()))
	}

	outInfo, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("stat output %s: %w", outPath, err)
	}
	compressedSize := outInfo.Size()

	// Outside budget mode, never ship a bigger file than we started with.
	kept := false
	if e.opts.TargetSize == 0 && compressedSize >= originalSize {
		if err := os.Remove(outPath); err != nil {
			logging.Warn("removing oversized output %s: %v", outPath, err)
		}
		outPath = file.Path
		compressedSize = originalSize
		kept = true
	}

	metrics.FilesProcessedTotal.WithLabelValues("video", "ok").Inc()
	if saved := originalSize - compressedSize; saved > 0 {
		metrics.BytesSavedTotal.Add(float64(saved))
	}

	return &engine.Result{
		InputFile:        file.Path,
		OutputFile:       outPath,
		OriginalSize:     originalSize,
		CompressedSize:   compressedSize,
		KeptOriginal:     kept,
		ReductionPercent: reductionPercent(originalSize, compressedSize),
	}, nil
}

func (e *Engine) outputPath(inputPath string) string {
	dir := e.opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := filepath.Join(dir, base+".mp4")
	if out == inputPath {
		// Never let ffmpeg write over the file it is reading.
		out = filepath.Join(dir, base+".compressed.mp4")
	}
	return out
}

func (e *Engine) preset() string {
	if e.opts.SpeedOptimized {
		return "veryfast"
	}
	return "medium"
}

// probeDuration reads the container duration in seconds via ffprobe.
func (e *Engine) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.tools.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

// crfFor maps the 1-100 quality knob onto x264's 0-51 CRF scale:
// quality 100 -> CRF 18 (visually lossless), quality 1 -> CRF 40.
func crfFor(quality int) int {
	return 40 - (quality-1)*22/99
}

func reductionPercent(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-compressed) * 100 / float64(original)
}

// tail returns the last few lines of ffmpeg's stderr for error messages.
func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.Join(lines, " | ")
}
