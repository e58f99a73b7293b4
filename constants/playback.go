package constants

import "time"

// Playback Timing
const (
	// TickRate is the animation tick frequency in Hz
	TickRate = 60

	// FrameUpdateInterval is the wall-clock period of one animation tick
	FrameUpdateInterval = time.Second / TickRate

	// BeatsPerMeasure is fixed; the score format has no time signature
	BeatsPerMeasure = 4
)

// Audio Output
const (
	// SpeakerSampleRate is the rate the speaker is initialized with; decoded files are resampled to it
	SpeakerSampleRate = 48000

	// SpeakerBufferDuration is the speaker buffer length
	SpeakerBufferDuration = 100 * time.Millisecond

	// ResampleQuality is passed to beep.Resample
	ResampleQuality = 4
)

// Event Queues
const (
	// InputEventBuffer is the capacity of the terminal event channel
	InputEventBuffer = 256
)
