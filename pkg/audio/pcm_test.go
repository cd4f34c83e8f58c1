package audio_test

import (
	"math"
	"slices"
	"testing"

	"github.com/MrWong99/jarvis/pkg/audio"
)

func TestInt16RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16, 1234}
	got := audio.PCMToInt16(audio.Int16ToPCM(in))
	if !slices.Equal(got, in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}
}

func TestIntToPCM(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int
		bitDepth int
		want     []int16
	}{
		{"16 bit passthrough", []int{100, -100}, 16, []int16{100, -100}},
		{"24 bit scaled down", []int{0x7FFF00, -0x800000}, 24, []int16{math.MaxInt16, math.MinInt16}},
		{"8 bit scaled up", []int{1, -1}, 8, []int16{256, -256}},
		{"16 bit clamped", []int{40000, -40000}, 16, []int16{math.MaxInt16, math.MinInt16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.PCMToInt16(audio.IntToPCM(tt.samples, tt.bitDepth))
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDownmixToMono(t *testing.T) {
	stereo := audio.Int16ToPCM([]int16{100, 200, -50, 50})
	got := audio.PCMToInt16(audio.DownmixToMono(stereo, 2))
	if want := []int16{150, 0}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	mono := audio.Int16ToPCM([]int16{7})
	if got := audio.DownmixToMono(mono, 1); len(got) != 2 {
		t.Errorf("mono input changed length: %d", len(got))
	}
}

func TestResampleMono(t *testing.T) {
	src := audio.Int16ToPCM([]int16{0, 100, 200, 300})

	up := audio.PCMToInt16(audio.ResampleMono(src, 8000, 16000))
	if len(up) != 8 {
		t.Fatalf("upsampled len = %d, want 8", len(up))
	}
	if up[1] != 50 || up[2] != 100 {
		t.Errorf("interpolation = %v", up)
	}

	down := audio.PCMToInt16(audio.ResampleMono(src, 16000, 8000))
	if want := []int16{0, 200}; !slices.Equal(down, want) {
		t.Errorf("downsampled = %v, want %v", down, want)
	}

	if got := audio.ResampleMono(src, 16000, 16000); len(got) != len(src) {
		t.Errorf("equal rates changed length")
	}
}

func TestNormalize(t *testing.T) {
	// 48 kHz stereo, 480 frames = 10ms.
	stereo := make([]int16, 480*2)
	got := audio.Normalize(audio.Int16ToPCM(stereo), 48000, 2, 16000)
	if len(got) != 160*audio.BytesPerSample {
		t.Errorf("len = %d, want %d", len(got), 160*audio.BytesPerSample)
	}
}

func TestAudioFrame_Duration(t *testing.T) {
	f := audio.AudioFrame{
		Data:       make([]byte, audio.FrameBytes),
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}
	if got := f.Duration(); got != audio.FrameDuration {
		t.Errorf("Duration = %v, want %v", got, audio.FrameDuration)
	}
	if got := (audio.AudioFrame{Data: []byte{1, 2}}).Duration(); got != 0 {
		t.Errorf("Duration without format = %v, want 0", got)
	}
}
