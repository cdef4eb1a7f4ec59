// Package batch processes a directory of scans the way the archive
// stations do: OCR every eligible file and rename it to its document
// ID, or to an error marker when nothing was found.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ffeai/docid_service/internal/scan"
	"github.com/ffeai/docid_service/internal/telemetry"
)

// Runner is the piece of the scan pipeline the processor needs.
type Runner interface {
	Run(ctx context.Context, path string) (scan.Outcome, error)
}

type FileResult struct {
	Path    string
	NewPath string
	DocID   string
	Engine  string
	Err     error
}

type Summary struct {
	Total   int
	Matched int
	Renamed int
	Failed  int
	Files   []FileResult
}

type Processor struct {
	Pipeline Runner
	Exts     []string // defaults to .tif/.tiff
	Workers  int

	// OnFile fires after each file completes, in completion order.
	OnFile func(FileResult)

	renameMu sync.Mutex
}

func (p *Processor) exts() []string {
	if len(p.Exts) > 0 {
		return p.Exts
	}
	return []string{".tif", ".tiff"}
}

// Eligible reports whether a file name is one the batch would pick up.
func (p *Processor) Eligible(name string) bool {
	if strings.HasPrefix(filepath.Base(name), "_Error_") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range p.exts() {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Run processes every eligible file under dir. Individual file
// failures are recorded in the summary, not fatal; only a missing
// directory or a canceled context aborts.
func (p *Processor) Run(ctx context.Context, dir string) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !p.Eligible(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	sum := Summary{Total: len(files)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Workers, 1))

	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := p.processFile(gctx, f)
			mu.Lock()
			sum.Files = append(sum.Files, res)
			if res.Err != nil {
				sum.Failed++
			} else if res.DocID != "" {
				sum.Matched++
			}
			if res.NewPath != "" {
				sum.Renamed++
			}
			// OnFile runs under the lock so observers see files one
			// at a time
			if p.OnFile != nil {
				p.OnFile(res)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, nil
}

// ProcessFile runs one file through the pipeline and renames it
// according to the outcome. The watcher feeds single files through
// here as they land.
func (p *Processor) ProcessFile(ctx context.Context, path string) FileResult {
	return p.processFile(ctx, path)
}

func (p *Processor) processFile(ctx context.Context, path string) FileResult {
	log := telemetry.L().With().Str("file", path).Logger()
	log.Info().Msg("batch_file_start")

	res := FileResult{Path: path}
	out, err := p.Pipeline.Run(ctx, path)
	if err != nil {
		log.Error().Err(err).Msg("batch_file_fail")
		res.Err = err
		return res
	}

	res.DocID = out.DocID
	res.Engine = out.Engine
	if out.DocID != "" {
		res.NewPath, err = p.rename(path, out.DocID)
		log.Info().Str("doc_id", out.DocID).Str("renamed", res.NewPath).Msg("batch_file_matched")
	} else {
		res.NewPath, err = p.markError(path)
		log.Info().Msg("batch_file_unmatched")
	}
	if err != nil {
		res.Err = err
	}
	return res
}

// rename moves the file to <docid><ext>; two cards can share an ID
// when a scan was duplicated, so collisions get a numeric suffix.
func (p *Processor) rename(path, docID string) (string, error) {
	p.renameMu.Lock()
	defer p.renameMu.Unlock()

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	dst := filepath.Join(dir, docID+ext)
	for n := 2; ; n++ {
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			break
		}
		dst = filepath.Join(dir, fmt.Sprintf("%s_%d%s", docID, n, ext))
	}
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return dst, nil
}

func (p *Processor) markError(path string) (string, error) {
	dst := filepath.Join(filepath.Dir(path), "_Error_"+filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return dst, nil
}
