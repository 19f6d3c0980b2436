package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"imgpress/internal/engine"
	"imgpress/internal/mediatypes"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	// Decoders for the pure-Go fallback path and dimension probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Opener decodes units into engine Sources backed by libvips, falling back to
// pure-Go decoding when libvips is unavailable.
type Opener struct{}

// Open reads and classifies a unit. Inputs whose payload cannot be decoded as
// an image fail with engine.ErrUnsupportedFormat.
func (Opener) Open(_ context.Context, unit engine.Unit) (engine.Source, error) {
	var data []byte
	var name string

	switch u := unit.(type) {
	case engine.WholeFile:
		ext := strings.ToLower(filepath.Ext(u.Path))
		if mediatypes.GetFileType(ext) != mediatypes.FileTypeImage {
			return nil, fmt.Errorf("%w: %s", engine.ErrUnsupportedFormat, u.Path)
		}
		var err error
		data, err = os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", u.Path, err)
		}
		name = u.Path
	case engine.Fragment:
		data = u.Data
		name = u.Name()
	default:
		return nil, fmt.Errorf("%w: unknown unit %T", engine.ErrUnsupportedFormat, unit)
	}

	src := &source{data: data, name: name, useVips: IsVipsAvailable()}
	if err := src.probe(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", engine.ErrUnsupportedFormat, name, err)
	}
	return src, nil
}

// source holds one input payload. Each Encode call decodes its own image
// reference from the payload, so concurrent encodes never share codec state.
type source struct {
	data    []byte
	name    string
	useVips bool

	width  int
	height int
	alpha  bool
	format engine.Format

	// fallbackImg caches the decoded pixels on the pure-Go path, where
	// decoding is expensive relative to vips.
	fallbackImg image.Image
}

func (s *source) Width() int                     { return s.width }
func (s *source) Height() int                    { return s.height }
func (s *source) HasAlpha() bool                 { return s.alpha }
func (s *source) DetectedFormat() engine.Format  { return s.format }
func (s *source) OriginalSize() int64            { return int64(len(s.data)) }
func (s *source) OriginalBytes() ([]byte, error) { return s.data, nil }
func (s *source) Close()                         { s.fallbackImg = nil }

// probe reads intrinsic metadata without keeping a decode alive (vips path)
// or by decoding once and caching (fallback path).
func (s *source) probe() error {
	if s.useVips {
		ref, err := vips.LoadImageFromBuffer(s.data, vips.NewImportParams())
		if err != nil {
			return err
		}
		defer ref.Close()

		s.width = ref.Width()
		s.height = ref.Height()
		s.alpha = ref.HasAlpha()
		s.format = formatFromVips(ref.Format())
		return nil
	}

	img, err := imaging.Decode(bytes.NewReader(s.data), imaging.AutoOrientation(true))
	if err != nil {
		return err
	}
	_, formatName, err := image.DecodeConfig(bytes.NewReader(s.data))
	if err != nil {
		formatName = ""
	}
	bounds := img.Bounds()
	s.fallbackImg = img
	s.width = bounds.Dx()
	s.height = bounds.Dy()
	s.alpha = !isOpaque(img)
	s.format = formatFromName(formatName)
	return nil
}

// Encode renders the payload with the strategy's parameters.
func (s *source) Encode(_ context.Context, strat engine.Strategy) ([]byte, error) {
	if s.useVips {
		return s.encodeVips(strat)
	}
	return s.encodeFallback(strat)
}

func (s *source) encodeVips(strat engine.Strategy) ([]byte, error) {
	ref, err := vips.LoadImageFromBuffer(s.data, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.name, err)
	}
	defer ref.Close()

	// Bake orientation into pixels so it survives formats without EXIF.
	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("auto-rotate: %w", err)
	}

	if scale := scaleFor(ref.Width(), ref.Height(), strat); scale < 1 {
		if err := ref.Resize(scale, vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("resize: %w", err)
		}
	}

	var out []byte
	switch strat.Format {
	case engine.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = strat.Quality
		params.OptimizeCoding = !strat.SkipOptimizations
		out, _, err = ref.ExportJpeg(params)
	case engine.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = strat.Quality
		params.ReductionEffort = clampInt(strat.Effort, 0, 6)
		out, _, err = ref.ExportWebp(params)
	case engine.FormatAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = strat.Quality
		params.Effort = clampInt(strat.Effort, 0, 9)
		out, _, err = ref.ExportAvif(params)
	case engine.FormatPNG:
		params := vips.NewPngExportParams()
		if strat.Effort > 0 {
			params.Compression = clampInt(strat.Effort, 0, 9)
		}
		if strat.Palette {
			params.Palette = true
			params.Quality = strat.Quality
			if strat.Colors > 0 {
				params.Bitdepth = bitdepthFor(strat.Colors)
			}
		}
		out, _, err = ref.ExportPng(params)
	default:
		return nil, fmt.Errorf("%w: %q", engine.ErrUnsupportedFormat, strat.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", strat.Format, err)
	}
	return out, nil
}

// encodeFallback covers JPEG and PNG with pure-Go encoders when libvips is
// not present. WebP and AVIF have no Go encoder in this stack.
func (s *source) encodeFallback(strat engine.Strategy) ([]byte, error) {
	img := s.fallbackImg
	if img == nil {
		decoded, err := imaging.Decode(bytes.NewReader(s.data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.name, err)
		}
		img = decoded
	}

	bounds := img.Bounds()
	if scale := scaleFor(bounds.Dx(), bounds.Dy(), strat); scale < 1 {
		img = imaging.Resize(img,
			int(float64(bounds.Dx())*scale),
			int(float64(bounds.Dy())*scale),
			imaging.Lanczos)
	}

	var buf bytes.Buffer
	var err error
	switch strat.Format {
	case engine.FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(strat.Quality))
	case engine.FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	default:
		return nil, fmt.Errorf("format %s requires libvips", strat.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", strat.Format, err)
	}
	return buf.Bytes(), nil
}

// scaleFor combines the strategy's dimension bounds and resize factor into a
// single scale. Never upscales.
func scaleFor(width, height int, strat engine.Strategy) float64 {
	scale := 1.0
	if strat.MaxWidth > 0 && width > strat.MaxWidth {
		scale = float64(strat.MaxWidth) / float64(width)
	}
	if strat.MaxHeight > 0 && height > strat.MaxHeight {
		if s := float64(strat.MaxHeight) / float64(height); s < scale {
			scale = s
		}
	}
	if strat.ResizeFactor > 0 && strat.ResizeFactor < 1 {
		scale *= strat.ResizeFactor
	}
	if scale > 1 {
		scale = 1
	}
	return scale
}

// bitdepthFor maps a palette color count to a PNG bit depth.
func bitdepthFor(colors int) int {
	switch {
	case colors <= 2:
		return 1
	case colors <= 4:
		return 2
	case colors <= 16:
		return 4
	default:
		return 8
	}
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// isOpaque reports whether the decoded image carries no alpha information.
func isOpaque(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}
	return false
}

func formatFromVips(t vips.ImageType) engine.Format {
	switch t {
	case vips.ImageTypeJPEG:
		return engine.FormatJPEG
	case vips.ImageTypePNG:
		return engine.FormatPNG
	case vips.ImageTypeWEBP:
		return engine.FormatWebP
	case vips.ImageTypeAVIF:
		return engine.FormatAVIF
	default:
		return ""
	}
}

func formatFromName(name string) engine.Format {
	switch name {
	case "jpeg":
		return engine.FormatJPEG
	case "png":
		return engine.FormatPNG
	case "webp":
		return engine.FormatWebP
	default:
		return ""
	}
}
