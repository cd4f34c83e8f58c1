package audio

import (
	"encoding/binary"
	"math"
)

// Int16ToPCM encodes samples as 16-bit little-endian PCM.
func Int16ToPCM(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// IntToPCM encodes int samples of the given bit depth as 16-bit
// little-endian PCM, rescaling and clamping as needed. Decoders such as
// go-audio produce []int at the source bit depth. A bitDepth of zero is
// treated as 16.
func IntToPCM(samples []int, bitDepth int) []byte {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	shift := bitDepth - 16
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		switch {
		case shift > 0:
			s >>= shift
		case shift < 0:
			s <<= -shift
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clamp16(s)))
	}
	return out
}

// PCMToInt16 decodes 16-bit little-endian PCM. A trailing odd byte is ignored.
func PCMToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// DownmixToMono averages interleaved channels into one. Input with a single
// channel is returned unchanged.
func DownmixToMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	stride := channels * BytesPerSample
	frames := len(pcm) / stride
	out := make([]byte, frames*BytesPerSample)
	for i := range frames {
		sum := 0
		for c := range channels {
			off := i*stride + c*BytesPerSample
			sum += int(int16(binary.LittleEndian.Uint16(pcm[off:])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clamp16(sum/channels)))
	}
	return out
}

// ResampleMono resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. Equal or invalid rates return the input unchanged.
func ResampleMono(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	src := PCMToInt16(pcm)
	n := int(int64(len(src)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	dst := make([]int16, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dst {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := float64(src[idx])
		s1 := s0
		if idx+1 < len(src) {
			s1 = float64(src[idx+1])
		}
		dst[i] = int16(math.Round(s0*(1-frac) + s1*frac))
	}
	return Int16ToPCM(dst)
}

// Normalize converts PCM of any channel count and rate into the recognizer
// format: mono at dstRate.
func Normalize(pcm []byte, srcRate, channels, dstRate int) []byte {
	return ResampleMono(DownmixToMono(pcm, channels), srcRate, dstRate)
}

func clamp16(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
