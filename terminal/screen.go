package terminal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/lixenwraith/csf-player/constants"
)

var ErrNotTerminal = errors.New("stdout is not a terminal")

// Screen is the playback terminal: it paints frames and reports key presses
type Screen struct {
	newScreen  func() (tcell.Screen, error)
	requireTTY bool
	style      tcell.Style
	log        *slog.Logger

	mu      sync.Mutex
	screen  tcell.Screen
	events  chan tcell.Event
	entered bool
}

// ScreenOption customizes a Screen
type ScreenOption func(*Screen)

// WithTcellScreen uses an existing tcell screen, e.g. a simulation screen in tests
// The TTY check is skipped
func WithTcellScreen(s tcell.Screen) ScreenOption {
	return func(sc *Screen) {
		sc.newScreen = func() (tcell.Screen, error) { return s, nil }
		sc.requireTTY = false
	}
}

// WithLogger sets the screen logger
func WithLogger(l *slog.Logger) ScreenOption {
	return func(sc *Screen) { sc.log = l }
}

// NewScreen creates a screen bound to the process terminal
func NewScreen(opts ...ScreenOption) *Screen {
	s := &Screen{
		newScreen:  tcell.NewScreen,
		requireTTY: true,
		style:      tcell.StyleDefault,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "terminal"))
	return s
}

// Enter switches to the alternate screen in raw mode and starts the event pump
func (s *Screen) Enter() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entered {
		return nil
	}

	if s.requireTTY && !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNotTerminal
	}

	scr, err := s.newScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := scr.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	scr.SetStyle(s.style)
	scr.HideCursor()
	scr.Clear()
	scr.Show()

	s.screen = scr
	s.events = make(chan tcell.Event, constants.InputEventBuffer)
	s.entered = true

	w, h := scr.Size()
	s.log.Debug("terminal entered", slog.Int("width", w), slog.Int("height", h))

	go s.pump(scr, s.events)
	return nil
}

// pump forwards tcell events until the screen is finalized
func (s *Screen) pump(scr tcell.Screen, events chan<- tcell.Event) {
	// Panic recovery for input polling goroutine to ensure terminal cleanup
	defer func() {
		if r := recover(); r != nil {
			scr.Fini()
			fmt.Fprintf(os.Stderr, "\r\nEVENT POLLER CRASHED: %v\r\n%s\r\n", r, debug.Stack())
			os.Exit(1)
		}
	}()

	for {
		ev := scr.PollEvent()
		if ev == nil {
			return
		}
		select {
		case events <- ev:
		default:
			// Queue full, drop; the next key still stops playback
		}
	}
}

// Leave restores the terminal. Safe to call multiple times or without Enter
func (s *Screen) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.entered {
		return
	}
	s.screen.Fini()
	s.entered = false
	s.log.Debug("terminal left")
}

// PollKey drains pending events without blocking and reports whether any was a key press
func (s *Screen) PollKey() bool {
	if !s.entered {
		return false
	}

	for {
		select {
		case ev := <-s.events:
			switch ev.(type) {
			case *tcell.EventKey:
				return true
			case *tcell.EventResize:
				s.screen.Sync()
			}
		default:
			return false
		}
	}
}

// Render replaces the screen content with frame, anchored at the top-left corner
func (s *Screen) Render(frame string) {
	if !s.entered {
		return
	}

	s.screen.Clear()
	width, height := s.screen.Size()

	for y, line := range strings.Split(frame, "\n") {
		if y >= height {
			break
		}
		x := 0
		for _, r := range line {
			if x >= width {
				break
			}
			rw := runewidth.RuneWidth(r)
			if rw == 0 {
				continue
			}
			if r != ' ' {
				s.screen.SetContent(x, y, r, nil, s.style)
			}
			x += rw
		}
	}

	s.screen.Show()
}
