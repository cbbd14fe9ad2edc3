package media_test

import (
	"encoding/binary"
	"testing"

	"github.com/MrWong99/reelforge/pkg/media"
)

// samplesToBytes converts a slice of int16 samples to little-endian bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestMonoToStereo(t *testing.T) {
	mono := samplesToBytes([]int16{100, 200, 300})
	stereo := media.MonoToStereo(mono)
	got := bytesToSamples(stereo)
	want := []int16{100, 100, 200, 200, 300, 300}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono_Clamping(t *testing.T) {
	// Two max-positive samples should clamp to 32767 (not overflow).
	stereo := samplesToBytes([]int16{32767, 32767})
	mono := media.StereoToMono(stereo)
	got := bytesToSamples(mono)
	if len(got) != 1 {
		t.Fatalf("length mismatch: got %d, want 1", len(got))
	}
	if got[0] != 32767 {
		t.Errorf("got %d, want 32767", got[0])
	}
}

func TestResample16_SameRateUnchanged(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300})
	out := media.Resample16(pcm, 1, 48000, 48000)
	if len(out) != len(pcm) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(pcm))
	}
}

func TestResample16_MonoUpsample(t *testing.T) {
	// 2 samples at 16 kHz → 6 samples at 48 kHz (3x).
	pcm := samplesToBytes([]int16{1000, 2000})
	out := media.Resample16(pcm, 1, 16000, 48000)
	got := bytesToSamples(out)
	if len(got) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(got))
	}
	if got[0] != 1000 {
		t.Errorf("first sample: got %d, want 1000", got[0])
	}
	last := got[len(got)-1]
	if last < 1800 || last > 2200 {
		t.Errorf("last sample: got %d, want close to 2000", last)
	}
}

func TestResample16_StereoPreservesInterleaving(t *testing.T) {
	// 2 stereo frames at 16 kHz → 6 stereo frames (12 samples) at 48 kHz.
	pcm := samplesToBytes([]int16{100, 200, 300, 400})
	out := media.Resample16(pcm, 2, 16000, 48000)
	got := bytesToSamples(out)
	if len(got) != 12 {
		t.Fatalf("expected 12 samples, got %d", len(got))
	}
	// First frame must match the first source frame exactly.
	if got[0] != 100 || got[1] != 200 {
		t.Errorf("first frame = (%d, %d), want (100, 200)", got[0], got[1])
	}
}

func TestConvertPCM_NoOp(t *testing.T) {
	pcm := samplesToBytes([]int16{1, 2, 3, 4})
	out := media.ConvertPCM(pcm, 44100, 2, 44100, 2)
	if &out[0] != &pcm[0] {
		t.Error("matching formats should return the input unchanged")
	}
}

func TestConvertPCM_DownmixAndResample(t *testing.T) {
	// 6 stereo frames at 48 kHz → mono at 16 kHz.
	pcm := samplesToBytes([]int16{100, 200, 100, 200, 100, 200, 100, 200, 100, 200, 100, 200})
	out := media.ConvertPCM(pcm, 48000, 2, 16000, 1)
	got := bytesToSamples(out)
	if len(got) != 2 {
		t.Fatalf("expected 2 mono samples, got %d", len(got))
	}
	// L=100, R=200 averages to 150 regardless of resampling position.
	for i, s := range got {
		if s != 150 {
			t.Errorf("sample %d = %d, want 150", i, s)
		}
	}
}
