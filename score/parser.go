package score

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MeasureSeparator splits a score into measures
	MeasureSeparator = "---"

	commentPrefix = "/"
	commandPrefix = "#"
	quote         = `"`
)

// Command keywords
const (
	KeywordMoveTo = "MOVETO"
	KeywordZIndex = "ZINDEX"
	KeywordFlip   = "FLIP"
)

var (
	ErrEmptyCommand    = errors.New("empty command")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ParseError reports the score line that could not be parsed
type ParseError struct {
	Measure int    // 0-based measure index
	Line    int    // 1-based line number in the score text
	Text    string // offending line
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("score line %d (measure %d): %q: %v", e.Line, e.Measure, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// inlineUnescaper expands escapes inside quoted literals
var inlineUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\"`, `"`)

// Parser turns score text into a Score
// The asset name set decides whether a bare line is an asset reference
type Parser struct {
	assets map[string]struct{}
}

// NewParser creates a parser that recognizes the given asset names
func NewParser(assetNames []string) *Parser {
	p := &Parser{assets: make(map[string]struct{}, len(assetNames))}
	for _, name := range assetNames {
		p.assets[name] = struct{}{}
	}
	return p
}

// Parse is a convenience wrapper around NewParser(assetNames).Parse(text)
func Parse(text string, assetNames []string) (Score, error) {
	return NewParser(assetNames).Parse(text)
}

// Parse converts the full score text. Any malformed line aborts the whole score
func (p *Parser) Parse(text string) (Score, error) {
	blocks := strings.Split(text, MeasureSeparator)
	measures := make([]Measure, 0, len(blocks))

	line := 1
	for i, block := range blocks {
		m, err := p.parseMeasure(block, i, line)
		if err != nil {
			return Score{}, err
		}
		measures = append(measures, m)
		line += strings.Count(block, "\n")
	}

	return Score{Measures: measures}, nil
}

func (p *Parser) parseMeasure(block string, index, firstLine int) (Measure, error) {
	var cmds []MeasureCommand

	for n, raw := range strings.Split(block, "\n") {
		line := strings.TrimSuffix(raw, "\r")

		switch {
		case strings.TrimSpace(line) == "" || strings.HasPrefix(line, commentPrefix):
			continue

		case strings.HasPrefix(line, commandPrefix):
			cmd, err := parseCommand(line[len(commandPrefix):])
			if err != nil {
				return Measure{}, &ParseError{Measure: index, Line: firstLine + n, Text: line, Err: err}
			}
			cmds = append(cmds, cmd)

		default:
			cmds = append(cmds, p.parseDisplay(line))
		}
	}

	return Measure{Commands: cmds}, nil
}

func (p *Parser) parseDisplay(line string) DisplayCommand {
	if len(line) >= 2*len(quote) && strings.HasPrefix(line, quote) && strings.HasSuffix(line, quote) {
		return InlineDisplay{Text: inlineUnescaper.Replace(line[len(quote) : len(line)-len(quote)])}
	}
	if _, ok := p.assets[line]; ok {
		return DataDisplay{Name: line}
	}
	return InlineDisplay{Text: line}
}

func parseCommand(body string) (Command, error) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}
	args := fields[1:]

	switch fields[0] {
	case KeywordMoveTo:
		x, err := intArg(args, 0, "x position")
		if err != nil {
			return nil, err
		}
		y, err := intArg(args, 1, "y position")
		if err != nil {
			return nil, err
		}
		return MoveTo{X: x, Y: y}, nil

	case KeywordZIndex:
		z, err := intArg(args, 0, "z index")
		if err != nil {
			return nil, err
		}
		return ZIndex{Z: z}, nil

	case KeywordFlip:
		if len(args) < 1 {
			return nil, fmt.Errorf("%w: flip direction", ErrMissingArgument)
		}
		if args[0] != "vertical" {
			return nil, fmt.Errorf("%w: flip direction %q", ErrInvalidArgument, args[0])
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: flip value", ErrMissingArgument)
		}
		switch args[1] {
		case "on":
			return FlipVertical{On: true}, nil
		case "off":
			return FlipVertical{On: false}, nil
		default:
			return nil, fmt.Errorf("%w: flip value %q", ErrInvalidArgument, args[1])
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
}

func intArg(args []string, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidArgument, name, args[i])
	}
	return v, nil
}
