package scan

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffeai/docid_service/internal/extract"
	"github.com/ffeai/docid_service/internal/hocr"
	"github.com/ffeai/docid_service/internal/ocr"
)

// fakeEngine scripts what Tesseract "reads" per call.
type fakeEngine struct {
	calls   atomic.Int64
	texts   []string // indexed by call order, last entry repeats
	words   []hocr.Word
	failErr error
}

func (f *fakeEngine) Words(_ []byte) (string, []hocr.Word, error) {
	if f.failErr != nil {
		return "", nil, f.failErr
	}
	n := int(f.calls.Add(1)) - 1
	if n >= len(f.texts) {
		n = len(f.texts) - 1
	}
	return f.texts[n], f.words, nil
}

type fakeReader struct {
	text string
	err  error
}

func (f *fakeReader) Read(_ context.Context, _ []byte, _ string) (ocr.Result, error) {
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	return ocr.Result{Text: f.text}, nil
}

func writeTestScan(t *testing.T) string {
	t.Helper()
	im := image.NewGray(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			im.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	path := filepath.Join(t.TempDir(), "scan_0002.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, im))
	return path
}

func newTestPipeline(engine SectionReader) *Pipeline {
	return &Pipeline{
		Engine:         engine,
		Extractor:      extract.MustNew(nil),
		SectionSizePct: 100,
		OverlapPct:     0,
		Workers:        2,
	}
}

func TestPipelineRun_Match(t *testing.T) {
	eng := &fakeEngine{
		texts: []string{"REV 3\n11-005000-02-1\nSCALE"},
		words: []hocr.Word{{Text: "11-005000-02-1", Confidence: 88}},
	}
	p := newTestPipeline(eng)

	var sections int64
	p.OnSection = func(SectionResult) { atomic.AddInt64(&sections, 1) }

	out, err := p.Run(context.Background(), writeTestScan(t))
	require.NoError(t, err)

	assert.Equal(t, "11-005000-02-1", out.DocID)
	assert.Equal(t, EngineTesseract, out.Engine)
	assert.False(t, out.Enhanced)
	assert.InDelta(t, 88.0, out.Confidence, 0.001)
	assert.EqualValues(t, 1, sections)
}

func TestPipelineRun_EnhancedRetry(t *testing.T) {
	// first pass reads nothing, the enhanced pass finds the ID
	eng := &fakeEngine{texts: []string{"smudge", "11-005000-02-1"}}
	p := newTestPipeline(eng)
	p.EnhanceRetry = true

	out, err := p.Run(context.Background(), writeTestScan(t))
	require.NoError(t, err)

	assert.Equal(t, "11-005000-02-1", out.DocID)
	assert.True(t, out.Enhanced)
	assert.EqualValues(t, 2, eng.calls.Load())
}

func TestPipelineRun_Unmatched(t *testing.T) {
	eng := &fakeEngine{texts: []string{"nothing here"}}
	p := newTestPipeline(eng)
	p.EnhanceRetry = true

	out, err := p.Run(context.Background(), writeTestScan(t))
	require.NoError(t, err)
	assert.Empty(t, out.DocID)
	assert.Zero(t, out.Confidence)
}

func TestPipelineRun_VisionFallback(t *testing.T) {
	eng := &fakeEngine{texts: []string{"smudge"}}
	p := newTestPipeline(eng)
	p.Fallback = &fakeReader{text: "11-005000-02-1"}

	out, err := p.Run(context.Background(), writeTestScan(t))
	require.NoError(t, err)
	assert.Equal(t, "11-005000-02-1", out.DocID)
	assert.Equal(t, EngineVision, out.Engine)
	assert.Zero(t, out.Confidence, "vision results carry no word confidence")
}

func TestPipelineRun_FallbackErrorIsUnmatched(t *testing.T) {
	eng := &fakeEngine{texts: []string{"smudge"}}
	p := newTestPipeline(eng)
	p.Fallback = &fakeReader{err: assert.AnError}

	out, err := p.Run(context.Background(), writeTestScan(t))
	require.NoError(t, err, "fallback failure must not fail the run")
	assert.Empty(t, out.DocID)
}

func TestPipelineRun_EngineErrorFails(t *testing.T) {
	eng := &fakeEngine{failErr: assert.AnError}
	p := newTestPipeline(eng)

	_, err := p.Run(context.Background(), writeTestScan(t))
	require.Error(t, err)
}

func TestPipelineRun_MissingFile(t *testing.T) {
	p := newTestPipeline(&fakeEngine{texts: []string{""}})
	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	require.Error(t, err)
}

func TestPipelineRun_Votes(t *testing.T) {
	// overlapping grid; most windows read one ID, a lone window misreads
	eng := &fakeEngine{texts: []string{
		"11-005000-02-1", "11-005000-02-1", "77-999999-99-9",
		"11-005000-02-1", "noise", "11-005000-02-1",
	}}
	p := newTestPipeline(eng)
	p.SectionSizePct = 70
	p.OverlapPct = 30

	out, err := p.Run(context.Background(), writeTestScan(t))
	require.NoError(t, err)
	assert.Equal(t, "11-005000-02-1", out.DocID)
}

func TestPipelineRun_WritesReport(t *testing.T) {
	dir := t.TempDir()
	eng := &fakeEngine{texts: []string{"11-005000-02-1"}}
	p := newTestPipeline(eng)
	p.Reports = &ReportWriter{Dir: dir}

	src := writeTestScan(t)
	_, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	base := filepath.Join(dir, "scan_0002")
	assert.FileExists(t, filepath.Join(base, "OCR_Results.md"))
	assert.FileExists(t, filepath.Join(base, "extracted_data.csv"))
	assert.FileExists(t, filepath.Join(base, "sections", "section_0_0.png"))
	assert.FileExists(t, filepath.Join(base, "sections", "section_0_0.txt"))
}
