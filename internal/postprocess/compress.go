// Package postprocess recompresses a rendered raster into the delivery
// envelope: bounded pixel dimensions and a bounded JPEG byte size.
package postprocess

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// MaxEdge caps the longest edge of the delivered poster.
	MaxEdge = 2048
	// MaxBytes is the target size envelope for the encoded JPEG.
	MaxBytes = 1536 * 1024

	startQuality = 85
	floorQuality = 60
	qualityStep  = 5
)

// Compressor recompresses rendered posters. The zero value uses the package
// defaults; fields exist so tests can tighten the envelope.
type Compressor struct {
	MaxEdge  int
	MaxBytes int
}

// Compress decodes the raster, scales it into the pixel envelope, and
// re-encodes JPEG, stepping quality down until the byte envelope is met or
// the quality floor is reached. At the floor the result is returned as-is;
// an oversized poster beats a failed job.
func (c Compressor) Compress(data []byte) ([]byte, error) {
	maxEdge := c.MaxEdge
	if maxEdge <= 0 {
		maxEdge = MaxEdge
	}
	maxBytes := c.MaxBytes
	if maxBytes <= 0 {
		maxBytes = MaxBytes
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("postprocess: decode raster: %w", err)
	}
	src = fitWithin(src, maxEdge)

	var out []byte
	for quality := startQuality; quality >= floorQuality; quality -= qualityStep {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("postprocess: encode jpeg: %w", err)
		}
		out = buf.Bytes()
		if len(out) <= maxBytes {
			return out, nil
		}
	}
	return out, nil
}

func fitWithin(src image.Image, maxEdge int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() <= maxEdge && bounds.Dy() <= maxEdge {
		return src
	}
	if bounds.Dx() >= bounds.Dy() {
		return imaging.Resize(src, maxEdge, 0, imaging.Lanczos)
	}
	return imaging.Resize(src, 0, maxEdge, imaging.Lanczos)
}
