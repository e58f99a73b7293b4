package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/lixenwraith/csf-player/constants"
)

const sampleRate = beep.SampleRate(constants.SpeakerSampleRate)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// decoder opens an encoded stream; the returned streamer owns f
type decoder func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decoder{
	".wav":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) },
	".mp3":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) },
	".ogg":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) },
	".oga":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) },
	".flac": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(f) },
}

// Decode opens path and picks a decoder by file extension
func Decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := decoders[ext]
	if !ok {
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	s, format, err := dec(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return s, format, nil
}

// MusicPlayer plays the score's audio track on the system speaker
type MusicPlayer struct {
	mu          sync.Mutex
	volume      float64
	initialized bool
	log         *slog.Logger
}

// NewMusicPlayer creates a player with master volume in [0, 1]
func NewMusicPlayer(volume float64, log *slog.Logger) *MusicPlayer {
	if log == nil {
		log = slog.Default()
	}
	return &MusicPlayer{
		volume: math.Max(0, math.Min(1, volume)),
		log:    log.With(slog.String("component", "audio")),
	}
}

// initialize sets up the speaker once per process
func (mp *MusicPlayer) initialize() error {
	if mp.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(constants.SpeakerBufferDuration)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	mp.initialized = true
	return nil
}

// Start decodes path and begins playback without waiting for it to finish
func (mp *MusicPlayer) Start(path string) (*Handle, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	stream, format, err := Decode(path)
	if err != nil {
		return nil, err
	}

	if err := mp.initialize(); err != nil {
		stream.Close()
		return nil, err
	}

	ctrl := &beep.Ctrl{Streamer: mp.chain(stream, format)}
	speaker.Play(ctrl)

	mp.log.Info("audio started",
		slog.String("path", path),
		slog.Int("rate", int(format.SampleRate)),
		slog.Int("channels", format.NumChannels),
		slog.Duration("length", format.SampleRate.D(stream.Len())))

	return &Handle{ctrl: ctrl, stream: stream}, nil
}

// chain resamples to the speaker rate and applies master volume
func (mp *MusicPlayer) chain(s beep.Streamer, format beep.Format) beep.Streamer {
	if format.SampleRate != sampleRate {
		s = beep.Resample(constants.ResampleQuality, format.SampleRate, sampleRate, s)
	}
	level, silent := VolumeLevel(mp.volume)
	return &effects.Volume{Streamer: s, Base: 2, Volume: level, Silent: silent}
}

// VolumeLevel converts a linear [0, 1] volume to a base-2 effects.Volume level
func VolumeLevel(v float64) (level float64, silent bool) {
	if v <= 0 {
		return 0, true
	}
	return math.Log2(math.Min(v, 1)), false
}

// Handle stops a started track
type Handle struct {
	ctrl   *beep.Ctrl
	stream beep.StreamSeekCloser
	once   sync.Once
	err    error
}

// Close stops playback and releases the decoder. Safe to call more than once
func (h *Handle) Close() error {
	h.once.Do(func() {
		speaker.Lock()
		// Ctrl with nil streamer reports drained and is dropped by the speaker mixer
		h.ctrl.Streamer = nil
		speaker.Unlock()
		h.err = h.stream.Close()
	})
	return h.err
}
