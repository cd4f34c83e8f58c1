// Package google provides a Google Cloud Speech-to-Text v1 streaming
// recognizer. It implements the stt.Recognizer interface.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MrWong99/jarvis/pkg/provider/stt"
)

// Option is a functional option for configuring the Recognizer.
type Option func(*Recognizer)

// WithCredentialsFile authenticates with a service-account JSON file instead
// of application default credentials.
func WithCredentialsFile(path string) Option {
	return func(r *Recognizer) {
		if path != "" {
			r.clientOpts = append(r.clientOpts, option.WithCredentialsFile(path))
		}
	}
}

// WithEndpoint overrides the service endpoint (e.g. a regional endpoint
// such as "eu-speech.googleapis.com:443").
func WithEndpoint(endpoint string) Option {
	return func(r *Recognizer) {
		if endpoint != "" {
			r.clientOpts = append(r.clientOpts, option.WithEndpoint(endpoint))
		}
	}
}

// WithModel sets the default recognition model (e.g. "command_and_search").
// A non-empty StreamConfig.Model takes precedence.
func WithModel(model string) Option {
	return func(r *Recognizer) {
		r.model = model
	}
}

// WithClientOptions appends raw client options.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(r *Recognizer) {
		r.clientOpts = append(r.clientOpts, opts...)
	}
}

// Recognizer implements stt.Recognizer backed by the StreamingRecognize RPC.
type Recognizer struct {
	client     *speech.Client
	clientOpts []option.ClientOption
	model      string
}

// New dials the Speech service. Call Close to release the connection.
func New(ctx context.Context, opts ...Option) (*Recognizer, error) {
	r := &Recognizer{}
	for _, o := range opts {
		o(r)
	}
	client, err := speech.NewClient(ctx, r.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("google: new client: %w", err)
	}
	r.client = client
	return r, nil
}

// Close releases the underlying gRPC connection.
func (r *Recognizer) Close() error {
	return r.client.Close()
}

// Open starts a StreamingRecognize call bound to ctx and sends the
// configuration handshake.
func (r *Recognizer) Open(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	sctx, cancel := context.WithCancel(ctx)
	call, err := r.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("google: open stream: %w", mapError(err))
	}
	req, err := configRequest(cfg, r.model)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := call.Send(req); err != nil {
		cancel()
		return nil, fmt.Errorf("google: send config: %w", mapError(err))
	}
	return &stream{call: call, cancel: cancel}, nil
}

// configRequest builds the handshake message.
func configRequest(cfg stt.StreamConfig, defaultModel string) (*speechpb.StreamingRecognizeRequest, error) {
	enc, err := encoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        enc,
					SampleRateHertz: int32(cfg.SampleRate),
					LanguageCode:    cfg.Language,
					Model:           model,
				},
				InterimResults:  cfg.InterimResults,
				SingleUtterance: cfg.SingleUtterance,
			},
		},
	}, nil
}

func encoding(e stt.Encoding) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch e {
	case stt.LINEAR16, "":
		return speechpb.RecognitionConfig_LINEAR16, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("google: unsupported encoding %q", e)
	}
}

// streamingCall is the subset of speechpb.Speech_StreamingRecognizeClient the
// stream uses.
type streamingCall interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type stream struct {
	call   streamingCall
	cancel context.CancelFunc

	mu         sync.Mutex
	sendClosed bool
}

func (s *stream) Send(chunk []byte) error {
	s.mu.Lock()
	closed := s.sendClosed
	s.mu.Unlock()
	if closed {
		return stt.ErrStreamClosed
	}
	err := s.call.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
	})
	if err != nil {
		return fmt.Errorf("google: send audio: %w", mapError(err))
	}
	return nil
}

func (s *stream) CloseSend() error {
	s.mu.Lock()
	if s.sendClosed {
		s.mu.Unlock()
		return nil
	}
	s.sendClosed = true
	s.mu.Unlock()
	if err := s.call.CloseSend(); err != nil {
		return fmt.Errorf("google: close send: %w", mapError(err))
	}
	return nil
}

func (s *stream) Recv() (*stt.Response, error) {
	resp, err := s.call.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, mapError(err)
	}
	return convertResponse(resp), nil
}

func (s *stream) Cancel() { s.cancel() }

// mapError translates gRPC cancellation and deadline codes into the stt
// sentinels, keeping the original error in the chain.
func mapError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return stt.ErrCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return stt.ErrDeadlineExceeded
	}
	switch status.Code(err) {
	case codes.Canceled:
		return fmt.Errorf("%w: %w", stt.ErrCanceled, err)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", stt.ErrDeadlineExceeded, err)
	}
	return err
}

// convertResponse maps the wire response onto stt.Response.
func convertResponse(resp *speechpb.StreamingRecognizeResponse) *stt.Response {
	out := &stt.Response{Endpoint: endpoint(resp.GetSpeechEventType())}
	if st := resp.GetError(); st != nil && codes.Code(st.GetCode()) != codes.OK {
		out.Error = &stt.Status{Code: st.GetCode(), Message: st.GetMessage()}
	}
	for _, r := range resp.GetResults() {
		res := stt.Result{IsFinal: r.GetIsFinal(), Stability: r.GetStability()}
		for _, a := range r.GetAlternatives() {
			res.Alternatives = append(res.Alternatives, stt.Alternative{
				Transcript: a.GetTranscript(),
				Confidence: a.GetConfidence(),
			})
		}
		out.Results = append(out.Results, res)
	}
	return out
}

func endpoint(t speechpb.StreamingRecognizeResponse_SpeechEventType) stt.EndpointType {
	switch t {
	case speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE:
		return stt.EndOfUtterance
	case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_BEGIN:
		return stt.SpeechStarted
	case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_END:
		return stt.SpeechEnded
	default:
		return stt.EndpointUnspecified
	}
}
