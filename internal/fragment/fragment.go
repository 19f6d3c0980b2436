package fragment

import (
	"os"
	"path/filepath"
	"strings"

	"imgpress/internal/codec"
	"imgpress/internal/engine"
	"imgpress/internal/logging"
	"imgpress/internal/mediatypes"
)

// SizeThreshold is the file size above which an image becomes a candidate for
// fragmentation.
const SizeThreshold = 100 << 20 // 100 MiB

// band is one horizontal slice of an image, [Y, Y+Height).
type band struct {
	Y      int
	Height int
}

// planBands cuts height rows into count bands of equal height; the last band
// absorbs the remainder so the union covers [0, height) exactly.
func planBands(height, count int) []band {
	if count < 1 {
		count = 1
	}
	if count > height {
		count = height
	}
	bandHeight := height / count
	bands := make([]band, count)
	for i := 0; i < count; i++ {
		bands[i] = band{Y: i * bandHeight, Height: bandHeight}
	}
	bands[count-1].Height = height - (count-1)*bandHeight
	return bands
}

// Split expands a file list into compressible units, cutting images above
// SizeThreshold into max(2, threadCount) horizontal bands. Files that are not
// oversized images, or whose metadata cannot be read, pass through unchanged
// rather than failing.
func Split(paths []string, threadCount int) []engine.Unit {
	units := make([]engine.Unit, 0, len(paths))
	for _, path := range paths {
		fragments, ok := splitOne(path, threadCount)
		if !ok {
			units = append(units, engine.WholeFile{Path: path})
			continue
		}
		units = append(units, fragments...)
	}
	return units
}

func splitOne(path string, threadCount int) ([]engine.Unit, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if mediatypes.GetFileType(ext) != mediatypes.FileTypeImage {
		return nil, false
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() <= SizeThreshold {
		return nil, false
	}

	_, height, err := codec.Dimensions(path)
	if err != nil {
		logging.Warn("cannot read dimensions of %s, compressing whole: %v", path, err)
		return nil, false
	}

	count := threadCount
	if count < 2 {
		count = 2
	}
	if height < count {
		// Too short to cut into that many bands.
		return nil, false
	}

	bands := planBands(height, count)
	units := make([]engine.Unit, 0, len(bands))
	for i, b := range bands {
		data, err := codec.ExtractBand(path, b.Y, b.Height)
		if err != nil {
			// A partial split would double-compress rows; fall back to
			// the whole file instead.
			logging.Warn("band %d/%d of %s failed, compressing whole: %v", i, len(bands), path, err)
			return nil, false
		}
		units = append(units, engine.Fragment{
			Data:   data,
			Index:  i,
			Total:  len(bands),
			Origin: path,
			Ext:    ext,
		})
	}
	logging.Info("split %s (%d bytes, height %d) into %d bands", path, info.Size(), height, len(bands))
	return units, true
}
