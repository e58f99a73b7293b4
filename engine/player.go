package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/lixenwraith/csf-player/constants"
	"github.com/lixenwraith/csf-player/render"
	"github.com/lixenwraith/csf-player/score"
)

var ErrInvalidBPM = errors.New("BPM must be positive")

// State is the playback loop phase
type State int

const (
	StateWaitingForDelay State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWaitingForDelay:
		return "waiting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Screen is the terminal backend the player draws into
type Screen interface {
	// Enter sets up the terminal session
	Enter() error
	// Leave restores the terminal. Must be safe to call after a failed Enter
	Leave()
	// Render replaces the visible frame
	Render(frame string)
	// PollKey reports whether a key was pressed since the last poll, without blocking
	PollKey() bool
}

// AudioStarter begins playback of an audio file and returns a handle that stops it
type AudioStarter func(path string) (io.Closer, error)

// PlayerConfig holds the session parameters from the score root metadata
type PlayerConfig struct {
	BPM       int
	AudioPath string
	// AudioOffset delays the animation relative to audio start; negative starts it early
	AudioOffset time.Duration
}

// Option customizes a Player
type Option func(*Player)

// WithTimeProvider replaces the monotonic clock
func WithTimeProvider(tp TimeProvider) Option {
	return func(p *Player) { p.clock = tp }
}

// WithAudio sets the audio backend. Without it the player runs silent
func WithAudio(start AudioStarter) Option {
	return func(p *Player) { p.audio = start }
}

// WithLogger sets the player logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) { p.log = l }
}

// Player drives the real-time score playback
// Tracks are read-only once the player is created
type Player struct {
	cfg    PlayerConfig
	tracks []score.IndexedScore
	screen Screen
	audio  AudioStarter
	clock  TimeProvider
	log    *slog.Logger

	secPerMeasure float64
	maxMeasures   int

	start  time.Time
	state  State
	frames uint64
}

// NewPlayer creates a player for the given tracks, all sharing one timeline
func NewPlayer(cfg PlayerConfig, tracks []score.IndexedScore, screen Screen, opts ...Option) (*Player, error) {
	if cfg.BPM <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBPM, cfg.BPM)
	}

	p := &Player{
		cfg:           cfg,
		tracks:        tracks,
		screen:        screen,
		clock:         NewMonotonicTimeProvider(),
		log:           slog.Default(),
		secPerMeasure: SecondsPerMeasure(cfg.BPM),
		maxMeasures:   score.MaxMeasures(tracks),
		state:         StateWaitingForDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(slog.String("component", "player"))

	return p, nil
}

// SecondsPerMeasure returns the duration of one measure at the given tempo
func SecondsPerMeasure(bpm int) float64 {
	return 60 / float64(bpm) * constants.BeatsPerMeasure
}

// State returns the current playback phase
func (p *Player) State() State {
	return p.state
}

// Frames returns the number of frames handed to the screen
func (p *Player) Frames() uint64 {
	return p.frames
}

// Run plays the session until all measures are exhausted, a key is pressed or ctx is cancelled
// The terminal is always restored before Run returns
func (p *Player) Run(ctx context.Context) error {
	if err := p.screen.Enter(); err != nil {
		p.screen.Leave()
		return fmt.Errorf("enter terminal: %w", err)
	}
	defer p.screen.Leave()

	if p.audio != nil {
		handle, err := p.audio(p.cfg.AudioPath)
		if err != nil {
			return fmt.Errorf("start audio: %w", err)
		}
		defer handle.Close()
	}

	p.Begin(p.clock.Now())

	ticker := time.NewTicker(constants.FrameUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.stop("cancelled")
			return nil
		case <-ticker.C:
			if p.Tick(p.clock.Now()) == StateStopped {
				return nil
			}
		}
	}
}

// Begin anchors the score timeline at now plus the audio offset
func (p *Player) Begin(now time.Time) {
	p.start = now.Add(p.cfg.AudioOffset)
	p.state = StateWaitingForDelay
	p.log.Debug("playback anchored",
		slog.Int("bpm", p.cfg.BPM),
		slog.Duration("offset", p.cfg.AudioOffset),
		slog.Int("tracks", len(p.tracks)),
		slog.Int("measures", p.maxMeasures))
}

// Tick runs one animation tick: input poll, position update and frame draw
func (p *Player) Tick(now time.Time) State {
	if p.state == StateStopped {
		return p.state
	}

	if p.screen.PollKey() {
		p.stop("key pressed")
		return p.state
	}

	if frame, ok := p.Step(now); ok {
		p.screen.Render(frame)
		p.frames++
	}
	return p.state
}

// Step advances the state machine to now and returns the frame to draw, if any
// No frame means the previous one stays on screen
func (p *Player) Step(now time.Time) (string, bool) {
	if p.state == StateStopped {
		return "", false
	}

	elapsed := now.Sub(p.start)
	if elapsed < 0 {
		p.state = StateWaitingForDelay
		return "", false
	}
	if p.state != StateRunning {
		p.state = StateRunning
		p.log.Debug("animation started")
	}

	current := elapsed.Seconds() / p.secPerMeasure
	if int(math.Floor(current)) > p.maxMeasures {
		p.stop("measures exhausted")
		return "", false
	}

	items := SelectItems(p.tracks, current)
	if len(items) == 0 {
		return "", false
	}

	render.SortByZ(items)
	return render.Flatten(items), true
}

func (p *Player) stop(reason string) {
	if p.state == StateStopped {
		return
	}
	p.state = StateStopped
	p.log.Info("playback stopped", slog.String("reason", reason), slog.Uint64("frames", p.frames))
}

// SelectItems picks at most one item per track for the fractional measure position
// A measure's items are equally spaced across its duration
func SelectItems(tracks []score.IndexedScore, current float64) []score.DisplayItem {
	measure := math.Floor(current)
	if measure < 0 {
		return nil
	}
	index := int(measure)
	frac := current - measure

	var selected []score.DisplayItem
	for _, t := range tracks {
		if index >= len(t.Measures) {
			continue
		}
		items := t.Measures[index].Items
		if len(items) == 0 {
			continue
		}
		i := int(math.Floor(float64(len(items)) * frac))
		if i >= len(items) {
			i = len(items) - 1
		}
		selected = append(selected, items[i])
	}
	return selected
}
