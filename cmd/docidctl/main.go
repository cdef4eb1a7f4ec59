// Package main provides the docidctl CLI for running the document
// number scanner without the HTTP service.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ffeai/docid_service/internal/batch"
	"github.com/ffeai/docid_service/internal/config"
	"github.com/ffeai/docid_service/internal/extract"
	"github.com/ffeai/docid_service/internal/ocr"
	"github.com/ffeai/docid_service/internal/scan"
	"github.com/ffeai/docid_service/internal/telemetry"
	"github.com/ffeai/docid_service/internal/watch"
)

const version = "0.3.0"

// Command represents a CLI command.
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
}

var (
	// Global flags
	lang       string
	whitelist  string
	psm        int
	oem        int
	sectionPct int
	overlapPct int
	workers    int
	reportsDir string
	enhance    bool
	verbose    bool
)

func main() {
	commands := map[string]*Command{
		"scan": {
			Name:        "scan",
			Description: "Extract the document number from one or more images",
			Run:         scanCmd,
		},
		"batch": {
			Name:        "batch",
			Description: "Process a directory of scans and rename them by document number",
			Run:         batchCmd,
		},
		"watch": {
			Name:        "watch",
			Description: "Watch a hot folder and process scans as they arrive",
			Run:         watchCmd,
		},
		"verify": {
			Name:        "verify",
			Description: "Check document number patterns against a text file of OCR output",
			Run:         verifyCmd,
		},
		"doctor": {
			Name:        "doctor",
			Description: "Check the Tesseract installation",
			Run:         doctorCmd,
		},
		"version": {
			Name:        "version",
			Description: "Show version information",
			Run:         versionCmd,
		},
	}

	if len(os.Args) < 2 {
		printUsage(commands)
		os.Exit(0)
	}

	cmdName := os.Args[1]

	if cmdName == "help" || cmdName == "-h" || cmdName == "--help" {
		printUsage(commands)
		os.Exit(0)
	}

	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
		printUsage(commands)
		os.Exit(1)
	}

	if err := cmd.Run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(commands map[string]*Command) {
	fmt.Println("docidctl - Hollerith document number scanner")
	fmt.Println()
	fmt.Println("Usage: docidctl <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, cmd := range []string{"scan", "batch", "watch", "verify", "doctor", "version"} {
		if c, ok := commands[cmd]; ok {
			fmt.Printf("  %-12s %s\n", c.Name, c.Description)
		}
	}
	fmt.Println()
	fmt.Println("Run 'docidctl <command> -h' for help on a specific command.")
}

func setupFlags(fs *flag.FlagSet) {
	fs.StringVar(&lang, "lang", "eng", "Tesseract language")
	fs.StringVar(&whitelist, "whitelist", config.DefaultWhitelist, "Character whitelist")
	fs.IntVar(&psm, "psm", 6, "Tesseract page segmentation mode")
	fs.IntVar(&oem, "oem", 3, "Tesseract OCR engine mode")
	fs.IntVar(&sectionPct, "section", 70, "Window size as percent of image dimensions")
	fs.IntVar(&overlapPct, "overlap", 30, "Window overlap as percent of image dimensions")
	fs.IntVar(&workers, "workers", 4, "Concurrent OCR workers")
	fs.StringVar(&reportsDir, "reports", "", "Write OCR_Results.md and extracted_data.csv under this directory")
	fs.BoolVar(&enhance, "enhance", true, "Retry with an enhanced image when the first pass misses")
	fs.BoolVar(&verbose, "v", false, "Verbose output")
}

func initLog() {
	cfg := telemetry.FromEnv(config.GetEnv)
	if !verbose {
		cfg.Level = "warn"
	}
	telemetry.Init(cfg)
}

func buildPipeline() *scan.Pipeline {
	p := &scan.Pipeline{
		Engine: ocr.NewEngine(ocr.EngineOpts{
			Lang:        lang,
			Whitelist:   whitelist,
			PageSegMode: psm,
			EngineMode:  oem,
		}),
		Extractor:      extract.MustNew(nil),
		SectionSizePct: sectionPct,
		OverlapPct:     overlapPct,
		Workers:        workers,
		EnhanceRetry:   enhance,
	}
	if reportsDir != "" {
		p.Reports = &scan.ReportWriter{Dir: reportsDir}
	}
	return p
}

// scanCmd extracts the document number from the given images.
func scanCmd(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	setupFlags(fs)
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("usage: docidctl scan [options] <image>...")
	}

	initLog()
	p := buildPipeline()
	ctx := context.Background()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Doc ID", "Engine", "Confidence", "Enhanced"})

	start := time.Now()
	failed := 0
	for _, path := range fs.Args() {
		out, err := p.Run(ctx, path)
		if err != nil {
			failed++
			t.AppendRow(table.Row{path, "", "", "", ""})
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		docID := out.DocID
		if docID == "" {
			docID = "(not found)"
		}
		t.AppendRow(table.Row{path, docID, out.Engine, fmt.Sprintf("%.1f", out.Confidence), out.Enhanced})

		if verbose {
			for _, sec := range out.Sections {
				fmt.Printf("  section (%d,%d) %dx%d conf=%.1f id=%q\n",
					sec.X, sec.Y, sec.W, sec.H, sec.Confidence, sec.DocID)
			}
		}
	}
	t.Render()
	fmt.Printf("Completed in %s\n", time.Since(start).Round(time.Millisecond))

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, fs.NArg())
	}
	return nil
}

// batchCmd processes a directory and renames each scan by its number.
func batchCmd(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	setupFlags(fs)
	dir := fs.String("dir", ".", "Directory of scans to process")
	fs.Parse(args)

	initLog()
	proc := &batch.Processor{
		Pipeline: buildPipeline(),
		Workers:  workers,
	}

	start := time.Now()
	sum, err := proc.Run(context.Background(), *dir)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Doc ID", "Engine", "Renamed To", "Error"})
	for _, f := range sum.Files {
		errStr := ""
		if f.Err != nil {
			errStr = f.Err.Error()
		}
		t.AppendRow(table.Row{f.Path, f.DocID, f.Engine, f.NewPath, errStr})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d files", sum.Total),
		fmt.Sprintf("%d matched", sum.Matched),
		"",
		fmt.Sprintf("%d renamed", sum.Renamed),
		fmt.Sprintf("%d failed", sum.Failed),
	})
	t.Render()
	fmt.Printf("Completed in %s\n", time.Since(start).Round(time.Millisecond))

	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", sum.Failed, sum.Total)
	}
	return nil
}

// watchCmd tails a hot folder until interrupted.
func watchCmd(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	setupFlags(fs)
	dir := fs.String("dir", ".", "Directory to watch")
	settle := fs.Duration("settle", 500*time.Millisecond, "How long a file size must hold still before pickup")
	fs.Parse(args)

	initLog()
	w := &watch.Watcher{
		Proc: &batch.Processor{
			Pipeline: buildPipeline(),
			Workers:  workers,
		},
		SettleInterval: *settle,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", *dir)
	err := w.Run(ctx, *dir)
	if err == context.Canceled {
		fmt.Println("Stopped")
		return nil
	}
	return err
}

// verifyCmd runs the extractor over a text file, one line per OCR
// sample, and reports which lines yield a document number.
func verifyCmd(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	setupFlags(fs)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: docidctl verify [options] <textfile>")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	ex := extract.MustNew(nil)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Line", "Sample", "Doc ID"})

	total, matched := 0, 0
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		sample := sc.Text()
		if sample == "" {
			continue
		}
		total++
		id := ex.Extract(sample)
		if id != "" {
			matched++
		}
		t.AppendRow(table.Row{line, sample, id})
	}
	if err := sc.Err(); err != nil {
		return err
	}
	t.Render()
	fmt.Printf("%d of %d samples matched\n", matched, total)
	return nil
}

// doctorCmd checks the Tesseract installation.
func doctorCmd(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	tessPath := fs.String("tesseract", os.Getenv("TESSERACT_PATH"), "Tesseract binary path (blank for auto-detect)")
	fs.Parse(args)

	st := ocr.Check(*tessPath)
	if st.OK {
		fmt.Printf("tesseract %s at %s\n", st.Version, st.Path)
		return nil
	}

	fmt.Println("tesseract not found")
	if hint, err := ocr.InstallHint(runtime.GOOS); err == nil {
		fmt.Printf("install it with: %s\n", hint)
	}
	return fmt.Errorf("tesseract is not installed or not on a known path")
}

// versionCmd shows version information.
func versionCmd(args []string) error {
	fmt.Printf("docidctl v%s\n", version)
	fmt.Println("Hollerith document number scanner built on Tesseract")
	return nil
}
