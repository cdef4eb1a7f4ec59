package middleware

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidMagic(t *testing.T) {
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...)
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...)
	tiffLE := append([]byte{0x49, 0x49, 0x2A, 0x00}, make([]byte, 32)...)
	tiffBE := append([]byte{0x4D, 0x4D, 0x00, 0x2A}, make([]byte, 32)...)

	tests := []struct {
		name string
		ext  string
		head []byte
		want bool
	}{
		{"jpeg ok", ".jpg", jpeg, true},
		{"jpeg wrong magic", ".jpg", png, false},
		{"png ok", ".png", png, true},
		{"tiff little endian", ".tif", tiffLE, true},
		{"tiff big endian", ".tiff", tiffBE, true},
		{"tiff wrong magic", ".tif", jpeg, false},
		{"unknown ext", ".gif", png, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime := http.DetectContentType(tt.head)
			assert.Equal(t, tt.want, isValidMagic(tt.ext, mime, tt.head))
		})
	}
}
