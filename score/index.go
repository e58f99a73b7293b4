package score

import "strings"

// AssetResolver looks up named text assets
type AssetResolver interface {
	Lookup(name string) (string, bool)
}

// AssetMap is an in-memory AssetResolver
type AssetMap map[string]string

// Lookup returns the asset text for name
func (m AssetMap) Lookup(name string) (string, bool) {
	s, ok := m[name]
	return s, ok
}

// Layout is the ambient state carried through a score
// It persists across measure boundaries until a command overrides a field
type Layout struct {
	X, Y         int
	Z            int
	FlipVertical bool
}

// Apply returns the layout updated by cmd
func (l Layout) Apply(cmd Command) Layout {
	switch c := cmd.(type) {
	case MoveTo:
		l.X, l.Y = c.X, c.Y
	case ZIndex:
		l.Z = c.Z
	case FlipVertical:
		l.FlipVertical = c.On
	}
	return l
}

// Item resolves d against the current layout
func (l Layout) Item(d DisplayCommand, assets AssetResolver) DisplayItem {
	content := resolve(d, assets)
	if l.FlipVertical {
		content = ReverseLines(content)
	}
	return DisplayItem{X: l.X, Y: l.Y, Z: l.Z, Content: content}
}

// Index resolves a score into positioned display items in a single pass
func Index(s Score, assets AssetResolver) IndexedScore {
	indexed, _ := IndexFrom(s, assets, Layout{})
	return indexed
}

// IndexFrom folds the score starting from the given layout and returns the final layout
func IndexFrom(s Score, assets AssetResolver, start Layout) (IndexedScore, Layout) {
	layout := start
	measures := make([]DisplayMeasure, len(s.Measures))

	for i, m := range s.Measures {
		var items []DisplayItem
		for _, mc := range m.Commands {
			switch c := mc.(type) {
			case Command:
				layout = layout.Apply(c)
			case DisplayCommand:
				items = append(items, layout.Item(c, assets))
			}
		}
		measures[i] = DisplayMeasure{Items: items}
	}

	return IndexedScore{Measures: measures}, layout
}

// resolve never fails: a missing asset displays its own name
func resolve(d DisplayCommand, assets AssetResolver) string {
	switch c := d.(type) {
	case InlineDisplay:
		return c.Text
	case DataDisplay:
		if assets != nil {
			if text, ok := assets.Lookup(c.Name); ok {
				return text
			}
		}
		return c.Name
	}
	return ""
}

// Lines splits text into lines, ignoring a single trailing newline
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// ReverseLines reverses line order, leaving each line's characters intact
func ReverseLines(text string) string {
	lines := Lines(text)
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}
