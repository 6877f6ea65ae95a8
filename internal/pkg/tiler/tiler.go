// Package tiler generates deep-zoom tile manifests and low-resolution
// previews for processed yearbook pages.
package tiler

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"github.com/AlumniConnect/YearbookConnect/app/models"
)

const (
	DefaultTileSize = 512
	DefaultOverlap  = 1
	TileFormat      = "webp"

	// MaxZoomLevels caps the pyramid depth for extreme scans
	MaxZoomLevels = 12

	// PreviewMaxWidth bounds the low-res preview rendition
	PreviewMaxWidth = 480

	previewQuality = 75
)

// ZoomLevels derives the pyramid depth from image dimensions:
// ceil(log2(maxDimension/tileSize)) + 1, at least 1, capped. Small scans
// get a shallow pyramid instead of empty levels.
func ZoomLevels(width, height, tileSize int) int {
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	if maxDim <= 0 || tileSize <= 0 {
		return 1
	}

	levels := 1
	if maxDim > tileSize {
		levels = int(math.Ceil(math.Log2(float64(maxDim)/float64(tileSize)))) + 1
	}
	if levels < 1 {
		levels = 1
	}
	if levels > MaxZoomLevels {
		levels = MaxZoomLevels
	}
	return levels
}

// BuildManifest constructs the tile descriptor for a page. The watermark
// text is applied only for publicly visible yearbooks.
func BuildManifest(width, height int, watermark string) (*models.TileManifest, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid page dimensions %dx%d", width, height)
	}

	return &models.TileManifest{
		TileSize:      DefaultTileSize,
		Overlap:       DefaultOverlap,
		Format:        TileFormat,
		Width:         width,
		Height:        height,
		Levels:        ZoomLevels(width, height, DefaultTileSize),
		WatermarkText: watermark,
	}, nil
}

// TileGrid returns the number of tile columns and rows at a zoom level.
// Level 0 is the most zoomed-out level (whole image in one tile span).
func TileGrid(m *models.TileManifest, level int) (cols, rows int) {
	if level < 0 || level >= m.Levels {
		return 0, 0
	}
	// scale halves for each level below the deepest
	scale := math.Pow(2, float64(m.Levels-1-level))
	w := int(math.Ceil(float64(m.Width) / scale))
	h := int(math.Ceil(float64(m.Height) / scale))

	cols = (w + m.TileSize - 1) / m.TileSize
	rows = (h + m.TileSize - 1) / m.TileSize
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// RenderPreview produces the low-res WebP preview for a page image.
func RenderPreview(src image.Image) ([]byte, error) {
	preview := src
	if src.Bounds().Dx() > PreviewMaxWidth {
		preview = imaging.Resize(src, PreviewMaxWidth, 0, imaging.Lanczos)
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, previewQuality)
	if err != nil {
		return nil, fmt.Errorf("error creating encoder options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, preview, options); err != nil {
		return nil, fmt.Errorf("error encoding preview: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePage decodes an original page scan held in memory.
func DecodePage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding page image: %w", err)
	}
	return img, nil
}
