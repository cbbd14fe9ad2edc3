package media

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// wavHeaderLen is the byte length of the canonical RIFF/WAVE preamble this
// package writes: RIFF descriptor + fmt chunk + data chunk header.
const wavHeaderLen = 44

// EncodeWAV wraps 16-bit little-endian PCM in a canonical RIFF/WAVE
// container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2

	buf := make([]byte, wavHeaderLen+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

// DecodeWAV parses a RIFF/WAVE container and returns its 16-bit PCM payload
// and format. Chunks other than fmt and data are skipped, so files with LIST
// or fact chunks decode fine. Returns an error for non-PCM encodings or bit
// depths other than 16.
func DecodeWAV(b []byte) (pcm []byte, info Info, err error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, Info{}, fmt.Errorf("wav: not a RIFF/WAVE container")
	}

	var (
		haveFmt  bool
		haveData bool
	)
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(b) {
			return nil, Info{}, fmt.Errorf("wav: chunk %q overruns file", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Info{}, fmt.Errorf("wav: fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 {
				return nil, Info{}, fmt.Errorf("wav: unsupported encoding %d (want PCM)", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(b[body+14 : body+16])
			if bits != 16 {
				return nil, Info{}, fmt.Errorf("wav: unsupported bit depth %d (want 16)", bits)
			}
			haveFmt = true
		case "data":
			pcm = b[body : body+size]
			haveData = true
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		pos = body + size + size%2
	}

	if !haveFmt || !haveData {
		return nil, Info{}, fmt.Errorf("wav: missing fmt or data chunk")
	}
	if info.SampleRate <= 0 || info.Channels <= 0 {
		return nil, Info{}, fmt.Errorf("wav: invalid format %dHz %dch", info.SampleRate, info.Channels)
	}
	info.Duration = PCMDuration(len(pcm), info.SampleRate, info.Channels)
	return pcm, info, nil
}

// ReadWAV loads and decodes the WAV file at path.
func ReadWAV(path string) (pcm []byte, info Info, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("wav: read %s: %w", path, err)
	}
	return DecodeWAV(b)
}

// WriteWAV encodes pcm and writes it to path.
func WriteWAV(path string, pcm []byte, sampleRate, channels int) error {
	if err := os.WriteFile(path, EncodeWAV(pcm, sampleRate, channels), 0o644); err != nil {
		return fmt.Errorf("wav: write %s: %w", path, err)
	}
	return nil
}

// ProbeWAV reads the chunk headers of the WAV file at path and returns its
// format and duration without loading sample data.
func ProbeWAV(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("wav: open %s: %w", path, err)
	}
	defer f.Close()

	var preamble [12]byte
	if _, err := io.ReadFull(f, preamble[:]); err != nil {
		return Info{}, fmt.Errorf("wav: %s: truncated preamble: %w", path, err)
	}
	if string(preamble[0:4]) != "RIFF" || string(preamble[8:12]) != "WAVE" {
		return Info{}, fmt.Errorf("wav: %s: not a RIFF/WAVE container", path)
	}

	var (
		info     Info
		dataLen  int
		haveFmt  bool
		haveData bool
		header   [8]byte
	)
	for {
		if _, err := io.ReadFull(f, header[:]); err != nil {
			break
		}
		id := string(header[0:4])
		size := int(binary.LittleEndian.Uint32(header[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(f, body); err != nil {
				return Info{}, fmt.Errorf("wav: %s: truncated fmt chunk: %w", path, err)
			}
			if size < 16 {
				return Info{}, fmt.Errorf("wav: %s: fmt chunk too short", path)
			}
			if format := binary.LittleEndian.Uint16(body[0:2]); format != 1 {
				return Info{}, fmt.Errorf("wav: %s: unsupported encoding %d", path, format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true
		case "data":
			dataLen = size
			haveData = true
			if _, err := f.Seek(int64(size+size%2), io.SeekCurrent); err != nil {
				return Info{}, fmt.Errorf("wav: %s: seek past data: %w", path, err)
			}
		default:
			if _, err := f.Seek(int64(size+size%2), io.SeekCurrent); err != nil {
				return Info{}, fmt.Errorf("wav: %s: seek past %q: %w", path, id, err)
			}
		}
		if haveFmt && haveData {
			break
		}
	}

	if !haveFmt || !haveData {
		return Info{}, fmt.Errorf("wav: %s: missing fmt or data chunk", path)
	}
	if info.SampleRate <= 0 || info.Channels <= 0 {
		return Info{}, fmt.Errorf("wav: %s: invalid format %dHz %dch", path, info.SampleRate, info.Channels)
	}
	info.Duration = PCMDuration(dataLen, info.SampleRate, info.Channels)
	return info, nil
}

// Silence returns seconds of zero-valued 16-bit PCM at the given format.
func Silence(seconds float64, sampleRate, channels int) []byte {
	if seconds <= 0 || sampleRate <= 0 || channels <= 0 {
		return nil
	}
	samples := int(math.Round(seconds * float64(sampleRate)))
	return make([]byte, samples*channels*2)
}

// ConcatWAV decodes every input file, converts each to the format of the
// first, concatenates the PCM, and writes the result to outPath. Returns the
// combined Info.
func ConcatWAV(outPath string, paths ...string) (Info, error) {
	if len(paths) == 0 {
		return Info{}, fmt.Errorf("wav: concat: no input files")
	}

	var (
		combined []byte
		target   Info
	)
	for i, p := range paths {
		pcm, info, err := ReadWAV(p)
		if err != nil {
			return Info{}, err
		}
		if i == 0 {
			target = info
		} else {
			pcm = ConvertPCM(pcm, info.SampleRate, info.Channels, target.SampleRate, target.Channels)
		}
		combined = append(combined, pcm...)
	}

	if err := WriteWAV(outPath, combined, target.SampleRate, target.Channels); err != nil {
		return Info{}, err
	}
	target.Duration = PCMDuration(len(combined), target.SampleRate, target.Channels)
	return target, nil
}
