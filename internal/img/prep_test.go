package img

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			im.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return im
}

func TestEnhanceDoublesDimensions(t *testing.T) {
	out := Enhance(testImage(40, 30))
	assert.Equal(t, 80, out.Bounds().Dx())
	assert.Equal(t, 60, out.Bounds().Dy())
}

func TestGrayscaleKeepsDimensions(t *testing.T) {
	out := Grayscale(testImage(17, 9))
	assert.Equal(t, 17, out.Bounds().Dx())
	assert.Equal(t, 9, out.Bounds().Dy())
}

func TestEncodePNGRoundTrip(t *testing.T) {
	b, err := EncodePNG(testImage(8, 8))
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
}

func TestCrop(t *testing.T) {
	out := Crop(testImage(100, 100), image.Rect(10, 10, 30, 40))
	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())
}
