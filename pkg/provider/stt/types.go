package stt

// EndpointType is the recognizer's voice-activity marker attached to a
// response.
type EndpointType int

const (
	// EndpointUnspecified means the response carries no endpoint signal.
	EndpointUnspecified EndpointType = iota

	// SpeechStarted marks the detected start of speech.
	SpeechStarted

	// SpeechEnded marks the detected end of speech.
	SpeechEnded

	// EndOfUtterance means the recognizer expects no more speech for this
	// stream. With single-utterance segmentation the stream ends shortly
	// after.
	EndOfUtterance
)

func (e EndpointType) String() string {
	switch e {
	case SpeechStarted:
		return "SPEECH_ACTIVITY_BEGIN"
	case SpeechEnded:
		return "SPEECH_ACTIVITY_END"
	case EndOfUtterance:
		return "END_OF_SINGLE_UTTERANCE"
	default:
		return "ENDPOINT_UNSPECIFIED"
	}
}

// Status is a non-OK service status carried inside a response.
type Status struct {
	Code    int32
	Message string
}

// Alternative is one recognition hypothesis.
type Alternative struct {
	Transcript string

	// Confidence in [0,1]. Zero when the provider omits it, which is common
	// for interim results.
	Confidence float32
}

// Result is a recognition result for a contiguous stretch of audio.
type Result struct {
	// Alternatives are ordered most likely first.
	Alternatives []Alternative

	// IsFinal marks a result that will not be revised.
	IsFinal bool

	// Stability estimates how likely an interim result is to change.
	Stability float32
}

// Response is one inbound message from the recognizer.
type Response struct {
	// Error is set when the service reports a non-OK status.
	Error *Status

	Results []Result

	Endpoint EndpointType
}
