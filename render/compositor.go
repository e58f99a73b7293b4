package render

import (
	"sort"
	"strings"

	"github.com/lixenwraith/csf-player/score"
)

// Flatten composites items into a single frame. Items must be sorted ascending by Z
// Space is transparent: a later item only replaces cells where it has a non-space rune
func Flatten(items []score.DisplayItem) string {
	if len(items) == 0 {
		return ""
	}

	buf := OffsetBlock(items[0])
	for _, item := range items[1:] {
		for i, line := range OffsetBlock(item) {
			if i >= len(buf) {
				buf = append(buf, line)
				continue
			}
			buf[i] = OverlayLine(buf[i], line)
		}
	}

	return strings.Join(buf, "\n")
}

// OffsetBlock places an item in frame coordinates: Y blank rows, then each line indented by X
// Negative offsets are treated as zero
func OffsetBlock(item score.DisplayItem) []string {
	x, y := max(item.X, 0), max(item.Y, 0)
	lines := score.Lines(item.Content)

	block := make([]string, y, y+len(lines))
	pad := strings.Repeat(" ", x)
	for _, l := range lines {
		block = append(block, pad+l)
	}
	return block
}

// OverlayLine draws over on top of base with space transparency
func OverlayLine(base, over string) string {
	if isBlank(over) {
		return base
	}
	// Avoids carrying the shorter line's leading spaces into an empty row
	if isBlank(base) {
		return over
	}

	b, o := []rune(base), []rune(over)
	out := make([]rune, max(len(b), len(o)))
	for i := range out {
		switch {
		case i >= len(o):
			out[i] = b[i]
		case i >= len(b):
			out[i] = o[i]
		case o[i] == ' ':
			out[i] = b[i]
		default:
			out[i] = o[i]
		}
	}
	return string(out)
}

// SortByZ orders items ascending by Z, keeping the given order among equal Z
func SortByZ(items []score.DisplayItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Z < items[j].Z
	})
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
