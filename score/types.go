package score

// Score is one parsed notation document; it plays as a single track
type Score struct {
	Measures []Measure
}

// Measure is one bar of a score. Layout state set inside a measure carries into the next one
type Measure struct {
	Commands []MeasureCommand
}

// MeasureCommand is either a Command or a DisplayCommand
type MeasureCommand interface {
	measureCommand()
}

// Command is a layout directive: MoveTo, ZIndex or FlipVertical
type Command interface {
	MeasureCommand
	command()
}

// DisplayCommand is a renderable fragment: DataDisplay or InlineDisplay
type DisplayCommand interface {
	MeasureCommand
	displayCommand()
}

// MoveTo sets the absolute cursor position in character cells
type MoveTo struct {
	X, Y int
}

// ZIndex sets the stacking order, higher is drawn on top
type ZIndex struct {
	Z int
}

// FlipVertical toggles line reversal for content resolved afterwards
type FlipVertical struct {
	On bool
}

// DataDisplay references a named asset from the score root's data directory
type DataDisplay struct {
	Name string
}

// InlineDisplay is literal text written in the score
type InlineDisplay struct {
	Text string
}

func (MoveTo) measureCommand()       {}
func (ZIndex) measureCommand()       {}
func (FlipVertical) measureCommand() {}
func (MoveTo) command()              {}
func (ZIndex) command()              {}
func (FlipVertical) command()        {}

func (DataDisplay) measureCommand()   {}
func (InlineDisplay) measureCommand() {}
func (DataDisplay) displayCommand()   {}
func (InlineDisplay) displayCommand() {}

// DisplayItem is a resolved fragment ready for compositing
// Content already has flip applied and asset lookups resolved
type DisplayItem struct {
	X, Y, Z int
	Content string
}

// DisplayMeasure holds the items of one measure in score order
type DisplayMeasure struct {
	Items []DisplayItem
}

// IndexedScore is the render-ready form of a Score, one DisplayMeasure per Measure
type IndexedScore struct {
	Measures []DisplayMeasure
}

// MaxMeasures returns the largest measure count across tracks
func MaxMeasures(tracks []IndexedScore) int {
	n := 0
	for _, t := range tracks {
		if len(t.Measures) > n {
			n = len(t.Measures)
		}
	}
	return n
}
