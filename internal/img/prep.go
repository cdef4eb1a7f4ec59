package img

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	// Drawing scans arrive as TIFF; register the decoder.
	_ "golang.org/x/image/tiff"
)

// Open decodes a scan from disk, honoring EXIF orientation.
func Open(path string) (image.Image, error) {
	im, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return im, nil
}

// Grayscale is the first-pass OCR prep. Tesseract does its own
// binarization, dropping color up front just denoises it.
func Grayscale(src image.Image) image.Image {
	return imaging.Grayscale(src)
}

// Enhance is the retry-pass chain for scans that yielded nothing on
// the first pass: upscale 2x with cubic interpolation, sharpen, then
// push brightness and contrast.
func Enhance(src image.Image) image.Image {
	b := src.Bounds()
	out := imaging.Resize(src, b.Dx()*2, b.Dy()*2, imaging.CatmullRom)
	out = imaging.Sharpen(out, 1.0)
	out = imaging.AdjustBrightness(out, 15)
	out = imaging.AdjustContrast(out, 30)
	return imaging.Grayscale(out)
}

// EncodePNG renders an image (or a cropped section) to bytes for the
// OCR engine and report artifacts. PNG keeps the text edges lossless.
func EncodePNG(src image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Crop cuts one section window out of the scan.
func Crop(src image.Image, r image.Rectangle) image.Image {
	return imaging.Crop(src, r)
}
