package scan

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReportWriter drops the per-scan artifacts the archive team reviews
// by hand: every section crop with its raw OCR text, a markdown
// summary, and a CSV of extracted IDs.
type ReportWriter struct {
	Dir string
}

// Write lays out results under Dir/<scan base name>/:
//
//	sections/section_<x>_<y>.png
//	sections/section_<x>_<y>.txt
//	OCR_Results.md
//	extracted_data.csv
func (r *ReportWriter) Write(srcPath string, out Outcome) error {
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	dir := filepath.Join(r.Dir, base)
	secDir := filepath.Join(dir, "sections")
	if err := os.MkdirAll(secDir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", secDir, err)
	}

	var md strings.Builder
	md.WriteString("# OCR Results\n\n")
	md.WriteString("Source: `" + srcPath + "`\n\n")
	if out.DocID != "" {
		fmt.Fprintf(&md, "Document ID: **%s** (engine %s, confidence %.1f)\n\n", out.DocID, out.Engine, out.Confidence)
	} else {
		md.WriteString("Document ID: _not found_\n\n")
	}
	if out.Enhanced {
		md.WriteString("Sections below are from the enhanced retry pass.\n\n")
	}

	rows := [][]string{{"Input File", "Output File", "Extracted Text"}}

	for _, s := range out.Sections {
		name := fmt.Sprintf("section_%d_%d", s.X, s.Y)
		if err := os.WriteFile(filepath.Join(secDir, name+".png"), s.PNG, 0644); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(secDir, name+".txt"), []byte(s.Text), 0644); err != nil {
			return err
		}
		if s.DocID == "" {
			continue
		}
		fmt.Fprintf(&md, "![Section Image](./sections/%s.png)\n\n", name)
		fmt.Fprintf(&md, "```\n%s\n```\n\n", s.DocID)
		rows = append(rows, []string{srcPath, name + ".png", s.DocID})
	}

	if err := os.WriteFile(filepath.Join(dir, "OCR_Results.md"), []byte(md.String()), 0644); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "extracted_data.csv"))
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
