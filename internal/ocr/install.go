package ocr

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var (
	ErrNoTesseract         = errors.New("tesseract not found")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	errNoVersionFromBinary = errors.New("tesseract did not report a version")
)

// windowsDefault is where the UB-Mannheim installer puts the binary.
const windowsDefault = `C:\Program Files\Tesseract-OCR\tesseract.exe`

var darwinDefaults = []string{
	"/opt/homebrew/bin/tesseract", // apple silicon brew prefix
	"/usr/local/bin/tesseract",
}

// Locate resolves the tesseract binary: an explicit configured path
// wins, then PATH, then the platform's conventional install location.
func Locate(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", ErrNoTesseract
		}
		return configured, nil
	}
	if p, err := exec.LookPath("tesseract"); err == nil {
		return p, nil
	}
	switch runtime.GOOS {
	case "windows":
		if _, err := os.Stat(windowsDefault); err == nil {
			return windowsDefault, nil
		}
	case "darwin":
		for _, p := range darwinDefaults {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	case "linux":
		// nothing beyond PATH on linux
	default:
		return "", ErrUnsupportedPlatform
	}
	return "", ErrNoTesseract
}

// InstallHint returns the installation instruction for a platform.
// Only 64-bit Windows 10+, Linux and macOS are supported.
func InstallHint(goos string) (string, error) {
	switch goos {
	case "windows":
		return "download and run the Tesseract installer from https://github.com/UB-Mannheim/tesseract/wiki (installs to " + windowsDefault + ")", nil
	case "linux":
		return "sudo apt-get install tesseract-ocr", nil
	case "darwin":
		return "brew install tesseract", nil
	default:
		return "", ErrUnsupportedPlatform
	}
}

// Status describes the local Tesseract installation for the doctor.
type Status struct {
	Path    string
	Version string
	OK      bool
}

// Check probes the environment. A missing binary is reported in the
// Status, not as an error; errors mean the probe itself failed.
func Check(configured string) Status {
	path, err := Locate(configured)
	if err != nil {
		return Status{}
	}
	ver, err := binaryVersion(path)
	if err != nil {
		return Status{Path: path}
	}
	return Status{Path: path, Version: ver, OK: true}
}

func binaryVersion(path string) (string, error) {
	out, err := exec.Command(path, "--version").CombinedOutput()
	if err != nil {
		return "", err
	}
	// first line looks like "tesseract 5.3.4"
	line := strings.SplitN(string(out), "\n", 2)[0]
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", errNoVersionFromBinary
	}
	return fields[len(fields)-1], nil
}
