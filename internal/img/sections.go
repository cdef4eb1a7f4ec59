package img

import "image"

// Section is one sliding-window crop position. X and Y are the offsets
// of the window inside the full scan, used to name artifacts.
type Section struct {
	X, Y int
	Rect image.Rectangle
}

// Sections computes the sliding-window grid over an image. Window size
// and overlap are percentages of the full dimensions, as on the
// scanning stations: a 70% window with 30% overlap steps by 40% per
// move. The last column and row clamp to the image edge.
func Sections(bounds image.Rectangle, sizePct, overlapPct int) []Section {
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}

	sizePct = clamp(sizePct, 1, 100)
	if overlapPct < 0 {
		overlapPct = 0
	}
	if overlapPct >= sizePct {
		overlapPct = sizePct - 1
	}

	secW := w * sizePct / 100
	secH := h * sizePct / 100
	// tiny images can round window and shift to zero
	if secW < 1 {
		secW = 1
	}
	if secH < 1 {
		secH = 1
	}
	shiftW := secW - w*overlapPct/100
	shiftH := secH - h*overlapPct/100
	if shiftW < 1 {
		shiftW = 1
	}
	if shiftH < 1 {
		shiftH = 1
	}

	var out []Section
	for y := 0; y < h; y += shiftH {
		for x := 0; x < w; x += shiftW {
			right := min(x+secW, w)
			bottom := min(y+secH, h)
			out = append(out, Section{
				X:    x,
				Y:    y,
				Rect: image.Rect(bounds.Min.X+x, bounds.Min.Y+y, bounds.Min.X+right, bounds.Min.Y+bottom),
			})
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
