package easel

import (
	"errors"
	"log/slog"
	"sync"
)

// Backend selection errors.
var (
	// ErrBackendUnavailable is returned when a backend cannot run in
	// this process (missing GPU, missing extension, unknown mode).
	ErrBackendUnavailable = errors.New("easel: backend not available")

	// ErrSanityCheckFailed is returned when a backend constructed but
	// produced incorrect pixels in its self-test. The backend kind is
	// flagged and skipped for the remainder of the process.
	ErrSanityCheckFailed = errors.New("easel: backend failed sanity check")

	// ErrNoBackend is returned by New when every requested mode failed.
	ErrNoBackend = errors.New("easel: no usable backend")
)

// BackendFactory creates a new backend instance.
type BackendFactory func() Backend

var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)

	// failedBackends records backend kinds that already failed their
	// sanity check this process. Set once on first failure, read on
	// every subsequent construction attempt.
	failedMu       sync.Mutex
	failedBackends = make(map[string]bool)
)

// RegisterBackend registers a backend factory with the given mode name.
// This is typically called from init() functions in backend packages.
// Registering the same name again replaces the previous factory.
func RegisterBackend(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// RegisteredBackends returns the registered mode names.
func RegisteredBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// DefaultModes returns the standard backend priority list: GPU float
// textures, then the fixed-point GPU fallback, then software.
func DefaultModes() []string {
	return []string{"gpufloat", "gpufixed", "software"}
}

// newBackend instantiates the named backend, or nil if unregistered.
func newBackend(name string) Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// backendFailed reports whether the backend kind previously failed its
// sanity check this process.
func backendFailed(name string) bool {
	failedMu.Lock()
	defer failedMu.Unlock()
	return failedBackends[name]
}

// markBackendFailed flags a backend kind as known-bad for this process.
func markBackendFailed(name string) {
	failedMu.Lock()
	defer failedMu.Unlock()
	failedBackends[name] = true
}

// ResetFailedBackends clears the process-wide sanity-failure flags.
// It exists for tests only.
func ResetFailedBackends() {
	failedMu.Lock()
	defer failedMu.Unlock()
	failedBackends = make(map[string]bool)
}

// openBackend runs the full construction protocol for one mode: skip
// known-bad kinds, instantiate, Init, sanity-check. The returned
// backend is initialized and trusted.
func openBackend(name string, w, h int) (Backend, error) {
	if backendFailed(name) {
		return nil, ErrSanityCheckFailed
	}

	b := newBackend(name)
	if b == nil {
		return nil, ErrBackendUnavailable
	}
	if err := b.Init(); err != nil {
		return nil, err
	}

	r, err := b.NewRasterizer(w, h)
	if err != nil {
		b.Close()
		return nil, err
	}
	ok := r.CheckSanity()
	r.Free()
	if !ok {
		Logger().Warn("backend failed sanity check, flagging for this process",
			slog.String("backend", name))
		markBackendFailed(name)
		b.Close()
		return nil, ErrSanityCheckFailed
	}

	return b, nil
}
