package media

// ConvertPCM converts 16-bit PCM between formats. Resampling happens first,
// then channel conversion, so stereo input headed for mono output is not
// resampled twice. Input matching the target format is returned unchanged.
func ConvertPCM(pcm []byte, srcRate, srcChannels, dstRate, dstChannels int) []byte {
	if srcRate == dstRate && srcChannels == dstChannels {
		return pcm
	}

	if srcRate != dstRate {
		pcm = Resample16(pcm, srcChannels, srcRate, dstRate)
	}

	switch {
	case srcChannels == 1 && dstChannels == 2:
		pcm = MonoToStereo(pcm)
	case srcChannels == 2 && dstChannels == 1:
		pcm = StereoToMono(pcm)
	}
	return pcm
}

// Resample16 resamples 16-bit interleaved PCM with the given channel count
// from srcRate to dstRate using per-channel linear interpolation. The input
// must be little-endian int16 samples. If srcRate == dstRate or the input is
// shorter than one frame, the input is returned unchanged.
func Resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 {
		return pcm
	}
	frameBytes := channels * 2
	if srcRate == dstRate || len(pcm) < frameBytes {
		return pcm
	}

	srcFrames := len(pcm) / frameBytes
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*frameBytes)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		for ch := range channels {
			o0 := (srcIdx*channels + ch) * 2
			s0 := int16(pcm[o0]) | int16(pcm[o0+1])<<8

			s1 := s0
			if srcIdx+1 < srcFrames {
				o1 := ((srcIdx+1)*channels + ch) * 2
				s1 = int16(pcm[o1]) | int16(pcm[o1+1])<<8
			}

			interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			oo := (i*channels + ch) * 2
			out[oo] = byte(interpolated)
			out[oo+1] = byte(interpolated >> 8)
		}
	}
	return out
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
// Input must be little-endian int16 PCM (2 bytes per sample).
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono
// output. Uses int32 arithmetic to prevent overflow and clamps to the int16
// range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		// Clamp to int16 range.
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}
