package img

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

type SaveResult struct {
	Path          string
	Hash          string
	Width, Height int
}

// SaveArchivalJPEG stores a browse copy of an uploaded scan, resized
// down for the dashboard, and returns its content hash. The hash keys
// the doc-ID cache: the same card scanned twice should not OCR twice.
func SaveArchivalJPEG(srcPath, dstDir string, maxW int) (SaveResult, error) {
	im, err := Open(srcPath)
	if err != nil {
		return SaveResult{}, err
	}
	var out image.Image = im
	if im.Bounds().Dx() > maxW && maxW > 0 {
		out = imaging.Resize(im, maxW, 0, imaging.Lanczos)
	}
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return SaveResult{}, fmt.Errorf("mkdir %s: %w", dstDir, err)
	}
	dst := filepath.Join(dstDir, filepath.Base(srcPath)+".jpg")
	if err := imaging.Save(out, dst, imaging.JPEGQuality(85)); err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", dst, err)
	}

	b, err := os.ReadFile(srcPath)
	if err != nil {
		return SaveResult{}, err
	}
	h := sha256.Sum256(b)
	return SaveResult{
		Path:   dst,
		Hash:   hex.EncodeToString(h[:]),
		Width:  out.Bounds().Dx(),
		Height: out.Bounds().Dy(),
	}, nil
}
