package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type (
	RecognizerFactory  func(ctx context.Context, spec Spec) (Recognizer, error)
	SynthesizerFactory func(ctx context.Context, spec Spec) (Synthesizer, error)
	DenoiserFactory    func(ctx context.Context, spec Spec) (Denoiser, error)
)

var registry = struct {
	sync.RWMutex
	recognizers  map[string]RecognizerFactory
	synthesizers map[string]SynthesizerFactory
	denoisers    map[string]DenoiserFactory
}{
	recognizers:  make(map[string]RecognizerFactory),
	synthesizers: make(map[string]SynthesizerFactory),
	denoisers:    make(map[string]DenoiserFactory),
}

// RegisterRecognizer makes a backend available by name. It panics on
// duplicate registration, like database/sql drivers.
func RegisterRecognizer(backend string, f RecognizerFactory) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.recognizers[backend]; dup {
		panic("engine: recognizer backend registered twice: " + backend)
	}
	registry.recognizers[backend] = f
}

func RegisterSynthesizer(backend string, f SynthesizerFactory) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.synthesizers[backend]; dup {
		panic("engine: synthesizer backend registered twice: " + backend)
	}
	registry.synthesizers[backend] = f
}

func RegisterDenoiser(backend string, f DenoiserFactory) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.denoisers[backend]; dup {
		panic("engine: denoiser backend registered twice: " + backend)
	}
	registry.denoisers[backend] = f
}

func OpenRecognizer(ctx context.Context, backend string, spec Spec) (Recognizer, error) {
	registry.RLock()
	f, ok := registry.recognizers[backend]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown recognizer backend %q (available: %v)", backend, Backends())
	}
	return f(ctx, spec)
}

func OpenSynthesizer(ctx context.Context, backend string, spec Spec) (Synthesizer, error) {
	registry.RLock()
	f, ok := registry.synthesizers[backend]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown synthesizer backend %q", backend)
	}
	return f(ctx, spec)
}

func OpenDenoiser(ctx context.Context, backend string, spec Spec) (Denoiser, error) {
	registry.RLock()
	f, ok := registry.denoisers[backend]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown denoiser backend %q", backend)
	}
	return f(ctx, spec)
}

// Backends lists registered recognizer backends in sorted order.
func Backends() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.recognizers))
	for name := range registry.recognizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
