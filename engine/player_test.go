package engine

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/lixenwraith/csf-player/score"
)

// fakeScreen records frames and lifecycle calls
type fakeScreen struct {
	enterErr error
	entered  int
	left     int
	frames   []string
	keys     int // number of polls that report a key, counted down
	polls    int
	keyAfter int // report a key once polls exceed this, 0 disables
}

func (s *fakeScreen) Enter() error {
	s.entered++
	return s.enterErr
}

func (s *fakeScreen) Leave() { s.left++ }

func (s *fakeScreen) Render(frame string) { s.frames = append(s.frames, frame) }

func (s *fakeScreen) PollKey() bool {
	s.polls++
	if s.keys > 0 {
		s.keys--
		return true
	}
	return s.keyAfter > 0 && s.polls > s.keyAfter
}

type fakeHandle struct{ closed int }

func (h *fakeHandle) Close() error {
	h.closed++
	return nil
}

func item(z int, content string) score.DisplayItem {
	return score.DisplayItem{Z: z, Content: content}
}

func newTestPlayer(t *testing.T, cfg PlayerConfig, tracks []score.IndexedScore, screen Screen, clock TimeProvider, opts ...Option) *Player {
	t.Helper()
	opts = append([]Option{WithTimeProvider(clock)}, opts...)
	p, err := NewPlayer(cfg, tracks, screen, opts...)
	if err != nil {
		t.Fatalf("NewPlayer failed: %v", err)
	}
	return p
}

// TestSecondsPerMeasure verifies four beats per measure
func TestSecondsPerMeasure(t *testing.T) {
	tests := []struct {
		bpm  int
		want float64
	}{
		{60, 4},
		{120, 2},
		{240, 1},
	}
	for _, tt := range tests {
		if got := SecondsPerMeasure(tt.bpm); got != tt.want {
			t.Errorf("SecondsPerMeasure(%d) = %v, want %v", tt.bpm, got, tt.want)
		}
	}
}

// TestNewPlayerRejectsBPM verifies non-positive tempo is refused
func TestNewPlayerRejectsBPM(t *testing.T) {
	for _, bpm := range []int{0, -10} {
		_, err := NewPlayer(PlayerConfig{BPM: bpm}, nil, &fakeScreen{})
		if !errors.Is(err, ErrInvalidBPM) {
			t.Errorf("BPM %d: expected ErrInvalidBPM, got %v", bpm, err)
		}
	}
}

// TestSelectItemsSubBeat verifies the fractional position picks an evenly spaced item
func TestSelectItemsSubBeat(t *testing.T) {
	tracks := []score.IndexedScore{{Measures: []score.DisplayMeasure{
		{Items: []score.DisplayItem{item(0, "a"), item(0, "b"), item(0, "c"), item(0, "d")}},
	}}}

	tests := []struct {
		current float64
		want    string
	}{
		{0, "a"},
		{0.24, "a"},
		{0.25, "b"},
		{0.5, "c"},
		{0.99, "d"},
	}
	for _, tt := range tests {
		got := SelectItems(tracks, tt.current)
		if len(got) != 1 || got[0].Content != tt.want {
			t.Errorf("SelectItems(%v) = %#v, want %q", tt.current, got, tt.want)
		}
	}
}

// TestSelectItemsSkipsTracks verifies short tracks and empty measures contribute nothing
func TestSelectItemsSkipsTracks(t *testing.T) {
	tracks := []score.IndexedScore{
		{Measures: []score.DisplayMeasure{{Items: []score.DisplayItem{item(0, "a")}}}},
		{Measures: []score.DisplayMeasure{{}, {Items: []score.DisplayItem{item(0, "b")}}}},
		{Measures: []score.DisplayMeasure{{}, {}}},
	}

	if got := SelectItems(tracks, 0.5); len(got) != 1 || got[0].Content != "a" {
		t.Errorf("measure 0: got %#v", got)
	}
	if got := SelectItems(tracks, 1.5); len(got) != 1 || got[0].Content != "b" {
		t.Errorf("measure 1: got %#v", got)
	}
	if got := SelectItems(tracks, 5); len(got) != 0 {
		t.Errorf("past end: got %#v", got)
	}
	if got := SelectItems(tracks, -0.5); len(got) != 0 {
		t.Errorf("negative position: got %#v", got)
	}
}

// TestStepCompositesTracksByZ verifies per-tick selection is z-sorted before compositing
func TestStepCompositesTracksByZ(t *testing.T) {
	tracks := []score.IndexedScore{
		{Measures: []score.DisplayMeasure{{Items: []score.DisplayItem{item(5, " X")}}}},
		{Measures: []score.DisplayMeasure{{Items: []score.DisplayItem{item(1, "AAA")}}}},
	}
	t0 := time.Unix(1000, 0)
	clock := NewMockTimeProvider(t0)
	p := newTestPlayer(t, PlayerConfig{BPM: 60}, tracks, &fakeScreen{}, clock)
	p.Begin(t0)

	frame, ok := p.Step(t0.Add(time.Second))
	if !ok {
		t.Fatal("Expected a frame")
	}
	if frame != "AXA" {
		t.Errorf("frame = %q, want %q", frame, "AXA")
	}
	if p.State() != StateRunning {
		t.Errorf("state = %v, want running", p.State())
	}
}

// TestStepWaitsForOffset verifies nothing is drawn before the offset elapses
func TestStepWaitsForOffset(t *testing.T) {
	tracks := []score.IndexedScore{{Measures: []score.DisplayMeasure{{Items: []score.DisplayItem{item(0, "a")}}}}}
	t0 := time.Unix(1000, 0)
	p := newTestPlayer(t, PlayerConfig{BPM: 120, AudioOffset: time.Second}, tracks, &fakeScreen{}, NewMockTimeProvider(t0))
	p.Begin(t0)

	if _, ok := p.Step(t0.Add(500 * time.Millisecond)); ok {
		t.Error("Expected no frame during delay")
	}
	if p.State() != StateWaitingForDelay {
		t.Errorf("state = %v, want waiting", p.State())
	}

	if frame, ok := p.Step(t0.Add(time.Second)); !ok || frame != "a" {
		t.Errorf("Expected frame %q after delay, got %q ok=%v", "a", frame, ok)
	}
}

// TestStepNegativeOffset verifies a negative offset starts the animation ahead of audio
func TestStepNegativeOffset(t *testing.T) {
	tracks := []score.IndexedScore{{Measures: []score.DisplayMeasure{
		{Items: []score.DisplayItem{item(0, "first")}},
		{Items: []score.DisplayItem{item(0, "second")}},
	}}}
	t0 := time.Unix(1000, 0)
	// 240 BPM: one measure per second
	p := newTestPlayer(t, PlayerConfig{BPM: 240, AudioOffset: -time.Second}, tracks, &fakeScreen{}, NewMockTimeProvider(t0))
	p.Begin(t0)

	if frame, ok := p.Step(t0); !ok || frame != "second" {
		t.Errorf("frame = %q ok=%v, want %q", frame, ok, "second")
	}
}

// TestStepTermination verifies the loop stops once the measure index passes the longest track
func TestStepTermination(t *testing.T) {
	tracks := []score.IndexedScore{
		{Measures: []score.DisplayMeasure{{Items: []score.DisplayItem{item(0, "a")}}}},
		{Measures: []score.DisplayMeasure{{}, {Items: []score.DisplayItem{item(0, "b")}}}},
	}
	t0 := time.Unix(1000, 0)
	p := newTestPlayer(t, PlayerConfig{BPM: 240}, tracks, &fakeScreen{}, NewMockTimeProvider(t0))
	p.Begin(t0)

	if frame, ok := p.Step(t0.Add(1500 * time.Millisecond)); !ok || frame != "b" {
		t.Errorf("measure 1: frame = %q ok=%v", frame, ok)
	}

	// Index 2 equals the measure count: nothing to draw, still running
	if _, ok := p.Step(t0.Add(2500 * time.Millisecond)); ok {
		t.Error("Expected no frame past the last measure")
	}
	if p.State() != StateRunning {
		t.Errorf("state = %v, want running", p.State())
	}

	if _, ok := p.Step(t0.Add(3 * time.Second)); ok {
		t.Error("Expected no frame after termination")
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want stopped", p.State())
	}

	// Stopped is terminal
	if _, ok := p.Step(t0.Add(500 * time.Millisecond)); ok || p.State() != StateStopped {
		t.Error("Stopped player produced a frame or changed state")
	}
}

// TestTickSkipsEmptyFrames verifies the screen is not touched when no item is active
func TestTickSkipsEmptyFrames(t *testing.T) {
	tracks := []score.IndexedScore{{Measures: []score.DisplayMeasure{
		{Items: []score.DisplayItem{item(0, "a")}},
		{},
		{Items: []score.DisplayItem{item(0, "c")}},
	}}}
	t0 := time.Unix(1000, 0)
	screen := &fakeScreen{}
	p := newTestPlayer(t, PlayerConfig{BPM: 240}, tracks, screen, NewMockTimeProvider(t0))
	p.Begin(t0)

	p.Tick(t0.Add(100 * time.Millisecond))
	p.Tick(t0.Add(1100 * time.Millisecond))
	p.Tick(t0.Add(2100 * time.Millisecond))

	if len(screen.frames) != 2 || screen.frames[0] != "a" || screen.frames[1] != "c" {
		t.Errorf("frames = %q, want [a c]", screen.frames)
	}
	if p.Frames() != 2 {
		t.Errorf("Frames() = %d, want 2", p.Frames())
	}
}

// TestTickKeyPressStops verifies any key ends playback without drawing
func TestTickKeyPressStops(t *testing.T) {
	tracks := []score.IndexedScore{{Measures: []score.DisplayMeasure{{Items: []score.DisplayItem{item(0, "a")}}}}}
	t0 := time.Unix(1000, 0)
	screen := &fakeScreen{keys: 1}
	p := newTestPlayer(t, PlayerConfig{BPM: 60}, tracks, screen, NewMockTimeProvider(t0))
	p.Begin(t0)

	if state := p.Tick(t0.Add(time.Second)); state != StateStopped {
		t.Errorf("state = %v, want stopped", state)
	}
	if len(screen.frames) != 0 {
		t.Errorf("Expected no frames, got %q", screen.frames)
	}
}

// steppingClock advances by a fixed step on every reading
type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

// TestRunExhaustsMeasures verifies Run returns, closes audio and restores the terminal
func TestRunExhaustsMeasures(t *testing.T) {
	tracks := []score.IndexedScore{{Measures: []score.DisplayMeasure{{Items: []score.DisplayItem{item(0, "a")}}}}}
	clock := &steppingClock{now: time.Unix(1000, 0), step: time.Second}
	screen := &fakeScreen{}
	handle := &fakeHandle{}
	var audioPath string

	p := newTestPlayer(t, PlayerConfig{BPM: 240, AudioPath: "song.ogg"}, tracks, screen, clock,
		WithAudio(func(path string) (io.Closer, error) {
			audioPath = path
			return handle, nil
		}))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	if audioPath != "song.ogg" {
		t.Errorf("audio path = %q", audioPath)
	}
	if handle.closed != 1 {
		t.Errorf("audio handle closed %d times, want 1", handle.closed)
	}
	if screen.entered != 1 || screen.left != 1 {
		t.Errorf("enter/leave = %d/%d, want 1/1", screen.entered, screen.left)
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want stopped", p.State())
	}
}

// TestRunKeyPress verifies a key press ends Run with teardown
func TestRunKeyPress(t *testing.T) {
	tracks := []score.IndexedScore{{Measures: []score.DisplayMeasure{{Items: []score.DisplayItem{item(0, "a")}}}}}
	screen := &fakeScreen{keyAfter: 3}
	p := newTestPlayer(t, PlayerConfig{BPM: 60}, tracks, screen, NewMockTimeProvider(time.Unix(1000, 0)))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if screen.left != 1 {
		t.Errorf("Leave called %d times, want 1", screen.left)
	}
	if screen.polls != 4 {
		t.Errorf("polls = %d, want 4", screen.polls)
	}
}

// TestRunContextCancel verifies cancellation is a clean stop
func TestRunContextCancel(t *testing.T) {
	screen := &fakeScreen{}
	p := newTestPlayer(t, PlayerConfig{BPM: 60}, nil, screen, NewMockTimeProvider(time.Unix(1000, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if screen.left != 1 || p.State() != StateStopped {
		t.Errorf("left=%d state=%v", screen.left, p.State())
	}
}

// TestRunEnterFailure verifies a failed terminal setup is still torn down and audio never starts
func TestRunEnterFailure(t *testing.T) {
	screen := &fakeScreen{enterErr: errors.New("not a tty")}
	started := false
	p := newTestPlayer(t, PlayerConfig{BPM: 60}, nil, screen, NewMockTimeProvider(time.Unix(1000, 0)),
		WithAudio(func(string) (io.Closer, error) {
			started = true
			return &fakeHandle{}, nil
		}))

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("Expected error")
	}
	if screen.left != 1 {
		t.Errorf("Leave called %d times, want 1", screen.left)
	}
	if started {
		t.Error("Audio started despite terminal failure")
	}
}

// TestRunAudioFailure verifies audio errors are fatal and still restore the terminal
func TestRunAudioFailure(t *testing.T) {
	screen := &fakeScreen{}
	audioErr := errors.New("decode failed")
	p := newTestPlayer(t, PlayerConfig{BPM: 60}, nil, screen, NewMockTimeProvider(time.Unix(1000, 0)),
		WithAudio(func(string) (io.Closer, error) { return nil, audioErr }))

	err := p.Run(context.Background())
	if !errors.Is(err, audioErr) {
		t.Fatalf("Expected audio error, got %v", err)
	}
	if screen.left != 1 {
		t.Errorf("Leave called %d times, want 1", screen.left)
	}
}
