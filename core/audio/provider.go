package audio

type Provider interface {
	// GetSamples retrieves audio samples for playback
	GetSamples(count int) []int16

	// Audio debugging controls

	ToggleChannel(channel int)
	SoloChannel(channel int)
	GetChannelStatus() (ch1, ch2, ch3, ch4 bool)
}

var _ Provider = (*APU)(nil)

// Sink is the host-provided stereo audio output a Device drives through
// EnableAudio/SyncAudio. Play receives two equal-length slices of samples
// normalized to [-1, 1]; the APU mixes internally in the integer domain
// (for bit-exact determinism across runs) and only converts to float32 at
// this boundary.
type Sink interface {
	Play(left, right []float32)
	SampleRate() uint32
	Underflowed() bool
}
