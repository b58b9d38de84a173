package postprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderedFixture(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rng := rand.New(rand.NewSource(42))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressShrinksOversizedEdges(t *testing.T) {
	data := renderedFixture(t, 400, 200)

	out, err := Compressor{MaxEdge: 100}.Compress(data)
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
	assert.LessOrEqual(t, decoded.Bounds().Dy(), 100)
}

func TestCompressKeepsSmallImagesUnscaled(t *testing.T) {
	data := renderedFixture(t, 80, 60)

	out, err := Compressor{}.Compress(data)
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 80, decoded.Bounds().Dx())
	assert.Equal(t, 60, decoded.Bounds().Dy())
}

func TestCompressStepsQualityTowardEnvelope(t *testing.T) {
	data := renderedFixture(t, 300, 300)

	tight, err := Compressor{MaxBytes: 1}.Compress(data)
	require.NoError(t, err, "an unreachable envelope still returns the floor-quality encode")
	relaxed, err := Compressor{}.Compress(data)
	require.NoError(t, err)

	assert.Less(t, len(tight), len(relaxed), "floor quality must encode smaller than start quality")
}

func TestCompressRejectsGarbage(t *testing.T) {
	_, err := Compressor{}.Compress([]byte("not an image"))
	require.Error(t, err)
}
