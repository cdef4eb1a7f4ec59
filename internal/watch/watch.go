// Package watch tails a hot folder: scans dropped in by the scanner
// stations are picked up and run through the batch processor as they
// arrive.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ffeai/docid_service/internal/batch"
	"github.com/ffeai/docid_service/internal/telemetry"
)

type Watcher struct {
	Proc *batch.Processor

	// SettleInterval is how long a file's size must hold still before
	// we trust the scanner finished writing it.
	SettleInterval time.Duration
	// SettleTimeout caps how long we wait for a file to stop growing.
	SettleTimeout time.Duration
}

func (w *Watcher) settleInterval() time.Duration {
	if w.SettleInterval > 0 {
		return w.SettleInterval
	}
	return 500 * time.Millisecond
}

func (w *Watcher) settleTimeout() time.Duration {
	if w.SettleTimeout > 0 {
		return w.SettleTimeout
	}
	return 2 * time.Minute
}

// Run watches dir until the context is canceled. Files present before
// the watch starts are processed first, so a restart never strands
// scans.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	log := telemetry.L().With().Str("module", "watch").Str("dir", dir).Logger()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// names this watcher produced by renaming; their create events
	// must not be picked up again
	produced := map[string]struct{}{}

	// catch up on whatever is already sitting in the folder
	sum, err := w.Proc.Run(ctx, dir)
	if err != nil {
		return err
	}
	for _, f := range sum.Files {
		if f.NewPath != "" {
			produced[f.NewPath] = struct{}{}
		}
	}
	if sum.Total > 0 {
		log.Info().Int("total", sum.Total).Int("matched", sum.Matched).Msg("watch_backlog_done")
	}

	log.Info().Msg("watch_started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if _, ok := produced[ev.Name]; ok {
				delete(produced, ev.Name)
				continue
			}
			if !w.Proc.Eligible(ev.Name) {
				continue
			}
			if err := w.settle(ctx, ev.Name); err != nil {
				log.Warn().Err(err).Str("file", ev.Name).Msg("watch_settle_failed")
				continue
			}
			log.Info().Str("file", ev.Name).Msg("watch_pickup")
			if np := w.processOne(ctx, ev.Name); np != "" {
				produced[np] = struct{}{}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch_error")
		}
	}
}

// settle waits until the file size stops changing.
func (w *Watcher) settle(ctx context.Context, path string) error {
	deadline := time.Now().Add(w.settleTimeout())
	var last int64 = -1
	for {
		st, err := os.Stat(path)
		if err != nil {
			return err
		}
		if st.Size() == last {
			return nil
		}
		last = st.Size()
		if time.Now().After(deadline) {
			return fmt.Errorf("file %s still growing", path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.settleInterval()):
		}
	}
}

func (w *Watcher) processOne(ctx context.Context, path string) string {
	log := telemetry.L().With().Str("file", path).Logger()
	res := w.Proc.ProcessFile(ctx, path)
	if res.Err != nil {
		log.Error().Err(res.Err).Msg("watch_file_fail")
		return res.NewPath
	}
	log.Info().Str("doc_id", res.DocID).Str("renamed", filepath.Base(res.NewPath)).Msg("watch_file_done")
	return res.NewPath
}
