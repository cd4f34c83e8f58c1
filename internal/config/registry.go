package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/jarvis/pkg/audio"
	"github.com/MrWong99/jarvis/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// RecognizerFactory builds a speech recognizer from its provider entry.
type RecognizerFactory func(ctx context.Context, entry ProviderEntry) (stt.Recognizer, error)

// CaptureFactory builds a capture source. listen carries the frame format the
// recognizer expects.
type CaptureFactory func(entry ProviderEntry, listen ListenConfig) (audio.Capture, error)

// Registry maps provider names to their constructors. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	recognizers map[string]RecognizerFactory
	captures    map[string]CaptureFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognizers: make(map[string]RecognizerFactory),
		captures:    make(map[string]CaptureFactory),
	}
}

// RegisterRecognizer registers a recognizer factory under name. Registering
// the same name again replaces the previous factory.
func (r *Registry) RegisterRecognizer(name string, factory RecognizerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = factory
}

// RegisterCapture registers a capture factory under name.
func (r *Registry) RegisterCapture(name string, factory CaptureFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures[name] = factory
}

// CreateRecognizer instantiates the recognizer registered under entry.Name.
// Returns [ErrProviderNotRegistered] if there is none.
func (r *Registry) CreateRecognizer(ctx context.Context, entry ProviderEntry) (stt.Recognizer, error) {
	r.mu.RLock()
	factory, ok := r.recognizers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// CreateCapture instantiates the capture source registered under entry.Name.
func (r *Registry) CreateCapture(entry ProviderEntry, listen ListenConfig) (audio.Capture, error) {
	r.mu.RLock()
	factory, ok := r.captures[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, listen)
}

// Names returns the sorted registered names for kind ("recognizer" or
// "capture").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "recognizer":
		for n := range r.recognizers {
			names = append(names, n)
		}
	case "capture":
		for n := range r.captures {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names
}
