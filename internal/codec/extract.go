package codec

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

// Dimensions reads an image's pixel dimensions from its header without a full
// decode.
func Dimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return config.Width, config.Height, nil
}

// ExtractBand cuts the horizontal band [y, y+height) out of the image at path
// and returns it losslessly encoded as PNG.
func ExtractBand(path string, y, height int) ([]byte, error) {
	if IsVipsAvailable() {
		return extractBandVips(path, y, height)
	}
	return extractBandFallback(path, y, height)
}

func extractBandVips(path string, y, height int) ([]byte, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	defer ref.Close()

	if err := ref.ExtractArea(0, y, ref.Width(), height); err != nil {
		return nil, fmt.Errorf("extract band y=%d h=%d: %w", y, height, err)
	}
	out, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("export band: %w", err)
	}
	return out, nil
}

func extractBandFallback(path string, y, height int) ([]byte, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	band := imaging.Crop(img, image.Rect(0, y, img.Bounds().Dx(), y+height))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, band, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode band: %w", err)
	}
	return buf.Bytes(), nil
}
