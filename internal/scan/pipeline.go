// Package scan runs the sliding-window OCR pipeline over drawing
// scans and, in the service, persists and broadcasts the results.
package scan

import (
	"context"
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ffeai/docid_service/internal/extract"
	"github.com/ffeai/docid_service/internal/hocr"
	"github.com/ffeai/docid_service/internal/img"
	"github.com/ffeai/docid_service/internal/ocr"
	"github.com/ffeai/docid_service/internal/telemetry"
)

// Engine names recorded on outcomes.
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
	EngineCache     = "cache"
)

// SectionReader is what the pipeline needs from Tesseract; tests
// substitute a canned reader.
type SectionReader interface {
	Words(img []byte) (string, []hocr.Word, error)
}

type SectionResult struct {
	X, Y, W, H int
	Text       string
	DocID      string
	Confidence float64
	PNG        []byte `json:"-"`
}

type Outcome struct {
	DocID      string
	Engine     string
	Confidence float64
	Enhanced   bool
	Sections   []SectionResult
}

// Pipeline is the scanner core, independent of the service: the CLI
// drives it directly without a database or redis.
type Pipeline struct {
	Engine    SectionReader
	Fallback  ocr.Reader // optional vision reader, may be nil
	Extractor *extract.Extractor

	SectionSizePct int
	OverlapPct     int
	Workers        int
	EnhanceRetry   bool

	Reports *ReportWriter // optional artifact writer, may be nil

	// OnSection fires after each section finishes; the service uses
	// it for live progress. May be nil.
	OnSection func(SectionResult)
}

// Run extracts the document ID from the scan at path. A run that
// finds nothing returns an empty DocID and no error.
func (p *Pipeline) Run(ctx context.Context, path string) (Outcome, error) {
	log := telemetry.L().With().Str("scan", path).Logger()

	src, err := img.Open(path)
	if err != nil {
		return Outcome{}, err
	}

	log.Debug().Int("w", src.Bounds().Dx()).Int("h", src.Bounds().Dy()).Msg("sliding_window_start")

	out := Outcome{Engine: EngineTesseract}
	out.Sections, err = p.pass(ctx, img.Grayscale(src))
	if err != nil {
		return Outcome{}, err
	}
	out.DocID = p.vote(out.Sections)

	if out.DocID == "" && p.EnhanceRetry {
		log.Info().Msg("no_result_retry_enhanced")
		out.Enhanced = true
		out.Sections, err = p.pass(ctx, img.Enhance(src))
		if err != nil {
			return Outcome{}, err
		}
		out.DocID = p.vote(out.Sections)
	}

	if out.DocID == "" && p.Fallback != nil {
		id, err := p.fallback(ctx, src)
		if err != nil {
			// the fallback is best effort on top of a clean tesseract
			// run; its failure downgrades to unmatched
			log.Warn().Err(err).Msg("fallback_read_failed")
		} else if id != "" {
			out.DocID = id
			out.Engine = EngineVision
		}
	}

	out.Confidence = p.confidence(out)

	if p.Reports != nil {
		if err := p.Reports.Write(path, out); err != nil {
			log.Warn().Err(err).Msg("report_write_failed")
		}
	}
	return out, nil
}

// pass OCRs every window of one image variant concurrently.
func (p *Pipeline) pass(ctx context.Context, im image.Image) ([]SectionResult, error) {
	sections := img.Sections(im.Bounds(), p.SectionSizePct, p.OverlapPct)
	results := make([]SectionResult, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Workers, 1))

	var mu sync.Mutex
	for i, sec := range sections {
		i, sec := i, sec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.section(im, sec)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			if p.OnSection != nil {
				p.OnSection(res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) section(im image.Image, sec img.Section) (SectionResult, error) {
	crop := img.Crop(im, sec.Rect)
	png, err := img.EncodePNG(crop)
	if err != nil {
		return SectionResult{}, err
	}
	text, words, err := p.Engine.Words(png)
	if err != nil {
		return SectionResult{}, fmt.Errorf("section %d_%d: %w", sec.X, sec.Y, err)
	}
	return SectionResult{
		X:          sec.X,
		Y:          sec.Y,
		W:          sec.Rect.Dx(),
		H:          sec.Rect.Dy(),
		Text:       text,
		DocID:      p.Extractor.Extract(text),
		Confidence: hocr.MeanConfidence(words),
		PNG:        png,
	}, nil
}

func (p *Pipeline) vote(sections []SectionResult) string {
	ids := make([]string, len(sections))
	for i, s := range sections {
		ids[i] = s.DocID
	}
	return extract.MostCommon(ids)
}

func (p *Pipeline) fallback(ctx context.Context, src image.Image) (string, error) {
	png, err := img.EncodePNG(img.Grayscale(src))
	if err != nil {
		return "", err
	}
	res, err := p.Fallback.Read(ctx, png, "image/png")
	if err != nil {
		return "", err
	}
	return p.Extractor.Extract(res.Text), nil
}

// confidence is the best section confidence among the windows that
// voted for the winning ID; vision results carry no word confidence.
func (p *Pipeline) confidence(out Outcome) float64 {
	if out.DocID == "" || out.Engine != EngineTesseract {
		return 0
	}
	var best float64
	for _, s := range out.Sections {
		if s.DocID == out.DocID && s.Confidence > best {
			best = s.Confidence
		}
	}
	return best
}
