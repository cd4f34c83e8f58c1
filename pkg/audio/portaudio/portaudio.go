// Package portaudio captures microphone audio through PortAudio and delivers
// it as fixed-size PCM frames. It implements the audio.Capture interface.
//
// PortAudio must be installed on the host (libportaudio2 / portaudio19-dev on
// Debian, portaudio via Homebrew).
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/jarvis/pkg/audio"
)

// Option is a functional option for configuring a Capture.
type Option func(*Capture)

// WithDevice selects an input device by exact name. The default input device
// is used when name is empty.
func WithDevice(name string) Option {
	return func(c *Capture) { c.device = name }
}

// WithSampleRate sets the capture rate in Hz. Default: audio.SampleRate.
func WithSampleRate(rate int) Option {
	return func(c *Capture) {
		if rate > 0 {
			c.sampleRate = rate
		}
	}
}

// WithFrameDuration sets the frame cadence. Default: audio.FrameDuration.
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

// Capture reads mono 16-bit audio from a PortAudio input stream.
type Capture struct {
	device        string
	sampleRate    int
	frameDuration time.Duration
	log           *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New returns a Capture. The device is not opened until Start.
func New(opts ...Option) *Capture {
	c := &Capture{
		sampleRate:    audio.SampleRate,
		frameDuration: audio.FrameDuration,
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FrameSamples returns the number of samples per delivered frame.
func (c *Capture) FrameSamples() int {
	return int(int64(c.sampleRate) * int64(c.frameDuration) / int64(time.Second))
}

// Start initialises PortAudio, opens the input stream and begins pushing
// frames into sink from a reader goroutine.
func (c *Capture) Start(ctx context.Context, sink audio.FrameSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("portaudio: capture already running")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}

	buf := make([]int16, c.FrameSamples())
	stream, err := c.open(buf)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("portaudio: start stream: %w", err)
	}

	rctx, cancel := context.WithCancel(ctx)
	c.stream = stream
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.readLoop(rctx, stream, buf, sink, c.done)

	c.log.Info("microphone capture started",
		"device", c.deviceLabel(),
		"sample_rate", c.sampleRate,
		"frame_samples", len(buf),
	)
	return nil
}

func (c *Capture) open(buf []int16) (*portaudio.Stream, error) {
	if c.device == "" {
		s, err := portaudio.OpenDefaultStream(audio.Channels, 0, float64(c.sampleRate), len(buf), buf)
		if err != nil {
			return nil, fmt.Errorf("portaudio: open default stream: %w", err)
		}
		return s, nil
	}

	dev, err := findDevice(c.device)
	if err != nil {
		return nil, err
	}
	p := portaudio.LowLatencyParameters(dev, nil)
	p.Input.Channels = audio.Channels
	p.SampleRate = float64(c.sampleRate)
	p.FramesPerBuffer = len(buf)
	s, err := portaudio.OpenStream(p, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open device %q: %w", c.device, err)
	}
	return s, nil
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: input device %q not found", name)
}

func (c *Capture) deviceLabel() string {
	if c.device == "" {
		return "default"
	}
	return c.device
}

func (c *Capture) readLoop(ctx context.Context, stream *portaudio.Stream, buf []int16, sink audio.FrameSink, done chan struct{}) {
	defer close(done)
	var elapsed time.Duration
	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			if ctx.Err() != nil {
				return
			}
			// Input overflow loses samples but the stream is still usable.
			if errors.Is(err, portaudio.InputOverflowed) {
				c.log.Warn("microphone input overflowed")
				continue
			}
			c.log.Error("microphone read failed", "err", err)
			return
		}
		f := audio.AudioFrame{
			Data:       audio.Int16ToPCM(buf),
			SampleRate: c.sampleRate,
			Channels:   audio.Channels,
			Timestamp:  elapsed,
		}
		elapsed += c.frameDuration
		if !sink.Push(f) {
			return
		}
	}
}

// Stop halts capture, closes the stream and terminates PortAudio. Calling Stop
// more than once is safe.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.running = false
	c.cancel()

	var errs []error
	if err := c.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: stop stream: %w", err))
	}
	<-c.done
	if err := c.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: close stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: terminate: %w", err))
	}
	c.stream = nil
	return errors.Join(errs...)
}

// Running reports whether the capture stream is open.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Ensure Capture implements audio.Capture at compile time.
var _ audio.Capture = (*Capture)(nil)
