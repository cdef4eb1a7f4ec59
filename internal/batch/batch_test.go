package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffeai/docid_service/internal/scan"
)

// fakeRunner maps file base names to outcomes.
type fakeRunner struct {
	ids  map[string]string
	errs map[string]error
}

func (f *fakeRunner) Run(_ context.Context, path string) (scan.Outcome, error) {
	base := filepath.Base(path)
	if err, ok := f.errs[base]; ok {
		return scan.Outcome{}, err
	}
	id := f.ids[base]
	out := scan.Outcome{DocID: id, Engine: scan.EngineTesseract}
	return out, nil
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func TestProcessorRun_RenamesMatches(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "Scan_0001.tif")
	touch(t, dir, "Scan_0002.tif")
	touch(t, dir, "notes.txt") // ignored

	p := &Processor{
		Pipeline: &fakeRunner{ids: map[string]string{
			"Scan_0001.tif": "11-005000-02-1",
			"Scan_0002.tif": "",
		}},
		Workers: 2,
	}

	sum, err := p.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Matched)
	assert.Equal(t, 2, sum.Renamed)
	assert.Equal(t, 0, sum.Failed)

	assert.FileExists(t, filepath.Join(dir, "11-005000-02-1.tif"))
	assert.FileExists(t, filepath.Join(dir, "_Error_Scan_0002.tif"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "Scan_0001.tif"))
}

func TestProcessorRun_CollisionSuffix(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.tif")
	touch(t, dir, "b.tif")

	p := &Processor{
		Pipeline: &fakeRunner{ids: map[string]string{
			"a.tif": "11-005000-02-1",
			"b.tif": "11-005000-02-1",
		}},
		Workers: 2,
	}

	sum, err := p.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Matched)

	assert.FileExists(t, filepath.Join(dir, "11-005000-02-1.tif"))
	assert.FileExists(t, filepath.Join(dir, "11-005000-02-1_2.tif"))
}

func TestProcessorRun_FileErrorRecorded(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "bad.tif")
	touch(t, dir, "good.tif")

	p := &Processor{
		Pipeline: &fakeRunner{
			ids:  map[string]string{"good.tif": "11-005000-02-1"},
			errs: map[string]error{"bad.tif": assert.AnError},
		},
		Workers: 1,
	}

	sum, err := p.Run(context.Background(), dir)
	require.NoError(t, err, "one broken file must not abort the batch")
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Matched)
	// the failed file keeps its name for a retry
	assert.FileExists(t, filepath.Join(dir, "bad.tif"))
}

func TestProcessorRun_MissingDir(t *testing.T) {
	p := &Processor{Pipeline: &fakeRunner{}}
	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestProcessorRun_OnFileSerialized(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.tif", "b.tif", "c.tif"} {
		touch(t, dir, n)
	}

	var seen []string
	p := &Processor{
		Pipeline: &fakeRunner{ids: map[string]string{}},
		Workers:  3,
	}
	p.OnFile = func(fr FileResult) { seen = append(seen, fr.Path) }

	_, err := p.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, seen, 3)
}

func TestEligible(t *testing.T) {
	p := &Processor{}
	assert.True(t, p.Eligible("Scan_0001.tif"))
	assert.True(t, p.Eligible("SCAN.TIFF"))
	assert.False(t, p.Eligible("photo.jpg"))
	assert.False(t, p.Eligible("_Error_Scan_0001.tif"), "already-failed files are skipped")

	p.Exts = []string{".png"}
	assert.True(t, p.Eligible("x.png"))
	assert.False(t, p.Eligible("x.tif"))
}
