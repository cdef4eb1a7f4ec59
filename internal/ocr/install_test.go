package ocr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallHint(t *testing.T) {
	for _, goos := range []string{"windows", "linux", "darwin"} {
		hint, err := InstallHint(goos)
		require.NoError(t, err, goos)
		assert.NotEmpty(t, hint, goos)
	}

	_, err := InstallHint("plan9")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestLocateConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "tesseract")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\n"), 0755))

	p, err := Locate(fake)
	require.NoError(t, err)
	assert.Equal(t, fake, p)
}

func TestLocateConfiguredPathMissing(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrNoTesseract)
}

func TestCheckMissingBinary(t *testing.T) {
	st := Check(filepath.Join(t.TempDir(), "nope"))
	assert.False(t, st.OK)
	assert.Empty(t, st.Path)
}
