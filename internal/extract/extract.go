// Package extract turns raw OCR text into a normalized document ID.
//
// The scanned cards carry a Hollerith number in one of a few layouts,
// e.g. 11-005000-02-1 or 11-005000|02|1x where the column separators
// come out of Tesseract as any of |lLI{}[]()<>/\!1. Extraction is a
// fixed chain: character replacement, pattern match, positional pipe
// restore, separator strip, reformat.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPatterns is the union of the dashed and piped card layouts.
var DefaultPatterns = []string{
	`\d{2}-\w{10}`,
	`\d{2}-\d+-\d{2}-\d`,
	`\d{2}-\d{6}\|\w{2}\|\w{2}`,
	`\d{2}-\d{6}\|\-\w{2}\|\-\w`,
	`\d{2}-\d{6}1\w{2}1\w{2}`,
	`\d{2}-\d{6}1\-\w{2}1\-\w`,
}

// replacements maps the characters Tesseract habitually confuses on
// these cards onto the canonical digit or column separator.
var replacements = map[rune]rune{
	'O': '0', 'o': '0',
	'l': '|', 'L': '|', 'I': '|',
	'{': '|', '}': '|',
	'!': '|',
	'[': '|', ']': '|',
	'(': '|', ')': '|',
	'<': '|', '>': '|',
	'/': '|', '\\': '|',
}

type Extractor struct {
	patterns []*regexp.Regexp
}

// New compiles the given patterns, or DefaultPatterns when none are
// supplied. Invalid patterns fail construction rather than silently
// matching nothing.
func New(patterns []string) (*Extractor, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	e := &Extractor{}
	for _, p := range patterns {
		rx, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, rx)
	}
	return e, nil
}

func MustNew(patterns []string) *Extractor {
	e, err := New(patterns)
	if err != nil {
		panic(err)
	}
	return e
}

// Normalize applies the replacement table and drops whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == ' ' || r == '\t' {
			continue
		}
		if rep, ok := replacements[r]; ok {
			r = rep
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Match returns the longest pattern hit in the text. Longest wins
// because the dashed layout is a prefix of the piped one and must not
// truncate it; ties go to the earlier pattern.
func (e *Extractor) Match(text string) string {
	best := ""
	for _, rx := range e.patterns {
		if m := rx.FindString(text); len(m) > len(best) {
			best = m
		}
	}
	return best
}

// restorePipes fixes the piped layout where both separators were read
// as the digit 1. In that layout offsets 9 and 12 are always the
// separators, so when no dash follows the leading xx- group and both
// offsets hold a separator candidate, they are restored to pipes.
func restorePipes(s string) string {
	if len(s) < 13 {
		return s
	}
	if strings.ContainsRune(s[3:], '-') {
		return s
	}
	sep := func(c byte) bool { return c == '1' || c == '|' }
	if !sep(s[9]) || !sep(s[12]) {
		return s
	}
	b := []byte(s)
	b[9], b[12] = '|', '|'
	return string(b)
}

// Format reflows a 13-character match into the canonical
// xx-xxxxxx-xx-x shape. Anything else passes through untouched.
func Format(id string) string {
	if len(id) != 13 {
		return id
	}
	raw := strings.ReplaceAll(id, "-", "")
	if len(raw) < 11 {
		return id
	}
	return raw[:2] + "-" + raw[2:8] + "-" + raw[8:10] + "-" + raw[10:]
}

// Extract runs the full chain on raw OCR output. It never fails; text
// with no recognizable ID yields "".
func (e *Extractor) Extract(text string) string {
	m := e.Match(Normalize(text))
	if m == "" {
		return ""
	}
	m = restorePipes(m)
	m = strings.ReplaceAll(m, "|", "")
	return Format(m)
}

// MostCommon is the majority vote across section results. Empty
// results do not vote; ties break to the earliest seen.
func MostCommon(results []string) string {
	counts := map[string]int{}
	order := []string{}
	for _, r := range results {
		if r == "" {
			continue
		}
		if _, seen := counts[r]; !seen {
			order = append(order, r)
		}
		counts[r]++
	}
	best, bestN := "", 0
	for _, r := range order {
		if counts[r] > bestN {
			best, bestN = r, counts[r]
		}
	}
	return best
}
