// Package wavfile replays a WAV file as a capture source. It implements the
// audio.Capture interface and is used for offline runs and demos.
//
// Any PCM WAV is accepted; audio is downmixed to mono, resampled to the
// target rate and cut into fixed-size frames. The last frame is padded with
// silence.
package wavfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"

	"github.com/MrWong99/jarvis/pkg/audio"
)

// Option is a functional option for configuring a Capture.
type Option func(*Capture)

// WithRealtime paces delivery at one frame per frame duration. When false,
// every frame is pushed as fast as the sink accepts it.
func WithRealtime(realtime bool) Option {
	return func(c *Capture) { c.realtime = realtime }
}

// WithSampleRate sets the output rate in Hz. Default: audio.SampleRate.
func WithSampleRate(rate int) Option {
	return func(c *Capture) {
		if rate > 0 {
			c.sampleRate = rate
		}
	}
}

// WithFrameDuration sets the frame length. Default: audio.FrameDuration.
func WithFrameDuration(d time.Duration) Option {
	return func(c *Capture) {
		if d > 0 {
			c.frameDuration = d
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Capture) { c.log = l }
}

// Capture streams the frames of one WAV file.
type Capture struct {
	path          string
	realtime      bool
	sampleRate    int
	frameDuration time.Duration
	log           *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New returns a Capture for the file at path. The file is read on Start.
func New(path string, opts ...Option) *Capture {
	c := &Capture{
		path:          path,
		realtime:      true,
		sampleRate:    audio.SampleRate,
		frameDuration: audio.FrameDuration,
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start decodes the file and begins delivering its frames into sink.
func (c *Capture) Start(ctx context.Context, sink audio.FrameSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("wavfile: capture already running")
	}

	frames, err := c.load()
	if err != nil {
		return err
	}

	rctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	go c.replay(rctx, frames, sink, c.done)

	c.log.Info("wav replay started", "path", c.path, "frames", len(frames), "realtime", c.realtime)
	return nil
}

// Done is closed once every frame has been delivered or capture stopped. It
// returns nil before Start.
func (c *Capture) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Capture) load() ([]audio.AudioFrame, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wavfile: %s is not a valid WAV file", c.path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavfile: decode: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("wavfile: %s has no usable format", c.path)
	}

	pcm := audio.IntToPCM(buf.Data, buf.SourceBitDepth)
	pcm = audio.Normalize(pcm, buf.Format.SampleRate, buf.Format.NumChannels, c.sampleRate)
	return Split(pcm, c.sampleRate, c.frameDuration), nil
}

// Split cuts mono PCM into frames of duration d at the given rate, padding the
// last frame with silence.
func Split(pcm []byte, sampleRate int, d time.Duration) []audio.AudioFrame {
	size := int(int64(sampleRate)*int64(d)/int64(time.Second)) * audio.BytesPerSample
	if size <= 0 || len(pcm) == 0 {
		return nil
	}
	n := (len(pcm) + size - 1) / size
	frames := make([]audio.AudioFrame, 0, n)
	for i := range n {
		data := make([]byte, size)
		copy(data, pcm[i*size:min((i+1)*size, len(pcm))])
		frames = append(frames, audio.AudioFrame{
			Data:       data,
			SampleRate: sampleRate,
			Channels:   audio.Channels,
			Timestamp:  time.Duration(i) * d,
		})
	}
	return frames
}

func (c *Capture) replay(ctx context.Context, frames []audio.AudioFrame, sink audio.FrameSink, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if c.realtime {
		t := time.NewTicker(c.frameDuration)
		defer t.Stop()
		tick = t.C
	}
	for _, f := range frames {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return
		}
		if !sink.Push(f) {
			return
		}
	}
	c.log.Info("wav replay finished", "path", c.path)
}

// Stop halts delivery. Calling Stop more than once is safe.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.running = false
	c.cancel()
	<-c.done
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Ensure Capture implements audio.Capture at compile time.
var _ audio.Capture = (*Capture)(nil)
