package media

import "math"

// EnergyEnvelope computes the RMS energy of successive frames of frameDur
// seconds over 16-bit PCM, averaging across channels, and normalizes the
// result so the loudest frame is 1.0. A silent input yields all zeros.
//
// The envelope is the shared substrate for beat detection and voiced-span
// detection: peaks in it mark beats, sustained elevation marks speech.
func EnergyEnvelope(pcm []byte, sampleRate, channels int, frameDur float64) []float64 {
	if sampleRate <= 0 || channels <= 0 || frameDur <= 0 {
		return nil
	}
	samplesPerFrame := int(frameDur * float64(sampleRate))
	if samplesPerFrame <= 0 {
		return nil
	}
	valuesPerFrame := samplesPerFrame * channels

	totalValues := len(pcm) / 2
	if totalValues == 0 {
		return nil
	}

	frames := (totalValues + valuesPerFrame - 1) / valuesPerFrame
	env := make([]float64, frames)

	for f := range frames {
		start := f * valuesPerFrame
		end := min(start+valuesPerFrame, totalValues)

		var sum float64
		for i := start; i < end; i++ {
			s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
			sum += s * s
		}
		if n := end - start; n > 0 {
			env[f] = math.Sqrt(sum / float64(n))
		}
	}

	// Normalize by the peak RMS.
	var peak float64
	for _, e := range env {
		if e > peak {
			peak = e
		}
	}
	if peak == 0 {
		return env
	}
	for i := range env {
		env[i] /= peak
	}
	return env
}

// Peaks returns the timestamps (seconds) of local maxima in env that exceed
// mean + one standard deviation. Each returned timestamp marks the start of
// the peaking frame.
func Peaks(env []float64, frameDur float64) []float64 {
	if len(env) == 0 || frameDur <= 0 {
		return nil
	}
	mean, stddev := meanStddev(env)
	threshold := mean + stddev

	var ts []float64
	for i, e := range env {
		if e <= threshold {
			continue
		}
		prev := 0.0
		if i > 0 {
			prev = env[i-1]
		}
		next := 0.0
		if i+1 < len(env) {
			next = env[i+1]
		}
		if e >= prev && e > next {
			ts = append(ts, float64(i)*frameDur)
		}
	}
	return ts
}

// Span is a half-open [Start, End) interval in seconds.
type Span struct {
	Start float64
	End   float64
}

// SpansAbove returns the contiguous spans of env whose energy is at least
// threshold. Adjacent qualifying frames merge into one span.
func SpansAbove(env []float64, frameDur, threshold float64) []Span {
	if len(env) == 0 || frameDur <= 0 {
		return nil
	}

	var spans []Span
	open := false
	var start float64
	for i, e := range env {
		switch {
		case e >= threshold && !open:
			open = true
			start = float64(i) * frameDur
		case e < threshold && open:
			open = false
			spans = append(spans, Span{Start: start, End: float64(i) * frameDur})
		}
	}
	if open {
		spans = append(spans, Span{Start: start, End: float64(len(env)) * frameDur})
	}
	return spans
}

// meanStddev returns the arithmetic mean and population standard deviation.
func meanStddev(v []float64) (mean, stddev float64) {
	if len(v) == 0 {
		return 0, 0
	}
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))

	var sq float64
	for _, x := range v {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(v)))
}
