package img

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSections_SingleWindow(t *testing.T) {
	secs := Sections(image.Rect(0, 0, 100, 50), 100, 0)
	require.Len(t, secs, 1)
	assert.Equal(t, image.Rect(0, 0, 100, 50), secs[0].Rect)
	assert.Equal(t, 0, secs[0].X)
	assert.Equal(t, 0, secs[0].Y)
}

func TestSections_OverlapGrid(t *testing.T) {
	// 70% window, 30% overlap -> 40% shift: offsets 0, 40, 80
	secs := Sections(image.Rect(0, 0, 100, 100), 70, 30)
	require.Len(t, secs, 9)

	assert.Equal(t, image.Rect(0, 0, 70, 70), secs[0].Rect)
	// edges clamp to the image
	last := secs[len(secs)-1]
	assert.Equal(t, 80, last.X)
	assert.Equal(t, 80, last.Y)
	assert.Equal(t, image.Rect(80, 80, 100, 100), last.Rect)
}

func TestSections_CoverWholeImage(t *testing.T) {
	bounds := image.Rect(0, 0, 317, 211)
	secs := Sections(bounds, 50, 20)
	covered := image.NewGray(bounds)
	for _, s := range secs {
		for y := s.Rect.Min.Y; y < s.Rect.Max.Y; y++ {
			for x := s.Rect.Min.X; x < s.Rect.Max.X; x++ {
				covered.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if covered.GrayAt(x, y).Y != 255 {
				t.Fatalf("pixel (%d,%d) not covered by any section", x, y)
			}
		}
	}
}

func TestSections_NonZeroOrigin(t *testing.T) {
	secs := Sections(image.Rect(10, 20, 110, 120), 100, 0)
	require.Len(t, secs, 1)
	assert.Equal(t, image.Rect(10, 20, 110, 120), secs[0].Rect)
}

func TestSections_DegenerateInputs(t *testing.T) {
	assert.Nil(t, Sections(image.Rect(0, 0, 0, 0), 70, 30))
	assert.Nil(t, Sections(image.Rect(5, 5, 5, 10), 70, 30))

	// 1x1 image must still terminate and produce a window
	secs := Sections(image.Rect(0, 0, 1, 1), 70, 30)
	require.NotEmpty(t, secs)
	assert.Equal(t, image.Rect(0, 0, 1, 1), secs[0].Rect)
}

func TestSections_OverlapClampedBelowSize(t *testing.T) {
	// overlap >= size would never advance; it must be clamped
	secs := Sections(image.Rect(0, 0, 200, 200), 50, 90)
	require.NotEmpty(t, secs)
	assert.Less(t, len(secs), 200*200, "window must make progress")
}
