// Package media provides WAV encoding/decoding, PCM manipulation, and audio
// energy analysis for pipeline stages that work with synthesized narration
// files.
//
// Only 16-bit little-endian PCM is handled; that is the interchange format
// every speech backend in the pipeline produces or is converted to. Duration
// probing reads chunk headers without loading sample data, so gating large
// session outputs stays cheap.
package media

// Info describes a probed or decoded audio asset.
type Info struct {
	// Duration is the playable length in seconds.
	Duration float64

	// SampleRate in Hz (e.g. 44100, 48000).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// PCMDuration returns the duration in seconds of a 16-bit PCM payload with
// the given sample rate and channel count. Returns 0 for non-positive rates
// or channel counts.
func PCMDuration(pcmLen, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := pcmLen / (2 * channels)
	return float64(samples) / float64(sampleRate)
}
