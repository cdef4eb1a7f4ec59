// Package ocr wraps Tesseract for the scan pipeline: a configured
// engine for section OCR, environment discovery with per-platform
// install guidance, and an optional vision-API fallback reader.
package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/ffeai/docid_service/internal/hocr"
)

// Result is what any reader hands back to the pipeline.
type Result struct {
	Text       string
	Confidence float64
	Raw        string
}

// Reader abstracts the fallback OCR path (vision API) behind the same
// shape the pipeline consumes.
type Reader interface {
	Read(ctx context.Context, img []byte, mime string) (Result, error)
}

// Engine runs Tesseract over section crops. A gosseract client is not
// safe for concurrent use, so Engine opens one per call; calls may
// fan out freely.
type Engine struct {
	Lang        string
	Whitelist   string
	PageSegMode int
	EngineMode  int
}

type EngineOpts struct {
	Lang        string
	Whitelist   string
	PageSegMode int
	EngineMode  int
}

func NewEngine(o EngineOpts) *Engine {
	if o.Lang == "" {
		o.Lang = "eng"
	}
	if o.PageSegMode == 0 {
		o.PageSegMode = 6 // assume a single uniform block of text
	}
	if o.EngineMode == 0 {
		o.EngineMode = 3
	}
	return &Engine{
		Lang:        o.Lang,
		Whitelist:   o.Whitelist,
		PageSegMode: o.PageSegMode,
		EngineMode:  o.EngineMode,
	}
}

func (e *Engine) newClient(img []byte) (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(strings.Split(e.Lang, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set language %q: %w", e.Lang, err)
	}
	if e.Whitelist != "" {
		if err := client.SetWhitelist(e.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(e.PageSegMode)); err != nil {
		client.Close()
		return nil, fmt.Errorf("set psm: %w", err)
	}
	_ = client.SetVariable(gosseract.SettableVariable("tessedit_ocr_engine_mode"), strconv.Itoa(e.EngineMode))
	if err := client.SetImageFromBytes(img); err != nil {
		client.Close()
		return nil, fmt.Errorf("set image: %w", err)
	}
	return client, nil
}

// Text OCRs one section image and returns the raw text.
func (e *Engine) Text(img []byte) (string, error) {
	client, err := e.newClient(img)
	if err != nil {
		return "", err
	}
	defer client.Close()

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract text: %w", err)
	}
	return text, nil
}

// Words OCRs one section and returns per-word confidence from the
// hOCR output alongside the plain text.
func (e *Engine) Words(img []byte) (string, []hocr.Word, error) {
	client, err := e.newClient(img)
	if err != nil {
		return "", nil, err
	}
	defer client.Close()

	out, err := client.HOCRText()
	if err != nil {
		return "", nil, fmt.Errorf("tesseract hocr: %w", err)
	}
	words, err := hocr.Parse(strings.NewReader(out))
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.Text)
	}
	return b.String(), words, nil
}
