// Package hocr parses the hOCR HTML that Tesseract emits, enough to
// pull per-word text, bounding boxes and confidence out of a page.
package hocr

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

type BoundingBox struct {
	X1, Y1, X2, Y2 int
}

// Word is one ocrx_word span. Confidence is Tesseract's x_wconf in
// the 0-100 range.
type Word struct {
	Text       string
	Box        BoundingBox
	Confidence float64
}

// Parse extracts all ocrx_word entries from an hOCR document. Words
// with malformed title attributes are skipped, not fatal: one bad
// span must not sink a whole page.
func Parse(r io.Reader) ([]Word, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse hocr: %w", err)
	}

	var words []Word
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocrx_word") {
			if w, ok := wordFrom(n); ok {
				words = append(words, w)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return words, nil
}

// MeanConfidence averages word confidences; empty input yields 0.
func MeanConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func wordFrom(n *html.Node) (Word, bool) {
	w := Word{Text: strings.TrimSpace(textContent(n))}
	title := attr(n, "title")
	if title == "" {
		return Word{}, false
	}
	// title is semicolon-separated, e.g. "bbox 36 92 96 116; x_wconf 91"
	for _, part := range strings.Split(title, ";") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "bbox":
			if len(fields) != 5 {
				return Word{}, false
			}
			coords := make([]int, 4)
			for i, f := range fields[1:] {
				v, err := strconv.Atoi(f)
				if err != nil {
					return Word{}, false
				}
				coords[i] = v
			}
			w.Box = BoundingBox{coords[0], coords[1], coords[2], coords[3]}
		case "x_wconf":
			if len(fields) != 2 {
				return Word{}, false
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return Word{}, false
			}
			w.Confidence = v
		}
	}
	return w, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
