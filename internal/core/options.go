package core

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shipflow/internal/fieldpath"
	"shipflow/internal/kv"
)

// DefaultAutoSaveDelay is the quiet period before a dirty session is persisted.
const DefaultAutoSaveDelay = 2 * time.Second

// Option customises session construction.
type Option func(*sessionOptions)

type sessionOptions struct {
	store         kv.Store
	clock         Clock
	logger        *slog.Logger
	metrics       MetricsRecorder
	tracer        Tracer
	autoSave      bool
	autoSaveDelay time.Duration
	saveLatency   time.Duration
	// negative means use the domain default
	validationDelay time.Duration
	initial         fieldpath.Record
	storageKey      string
	newInstanceID   func() string
}

func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		clock:           SystemClock(),
		logger:          slog.New(slog.DiscardHandler),
		metrics:         noopMetrics{},
		tracer:          noopTracer{},
		autoSave:        true,
		autoSaveDelay:   DefaultAutoSaveDelay,
		validationDelay: -1,
		newInstanceID:   uuid.NewString,
	}
}

// WithStore sets the shared slot store. Sessions default to a private
// in-memory store.
func WithStore(store kv.Store) Option {
	return func(o *sessionOptions) {
		if store != nil {
			o.store = store
		}
	}
}

// WithClock overrides the clock used for timestamps and debounce timers.
func WithClock(clock Clock) Option {
	return func(o *sessionOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(o *sessionOptions) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithTracer sets the tracer wrapping Save, ForceSync and ResolveConflict.
func WithTracer(t Tracer) Option {
	return func(o *sessionOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithAutoSave enables or disables debounced persistence.
func WithAutoSave(enabled bool) Option {
	return func(o *sessionOptions) { o.autoSave = enabled }
}

// WithAutoSaveDelay sets the auto-save debounce window.
func WithAutoSaveDelay(d time.Duration) Option {
	return func(o *sessionOptions) {
		if d > 0 {
			o.autoSaveDelay = d
		}
	}
}

// WithSaveLatency adds an artificial delay inside every persist, used to
// exercise the saving state. Zero disables it.
func WithSaveLatency(d time.Duration) Option {
	return func(o *sessionOptions) {
		if d >= 0 {
			o.saveLatency = d
		}
	}
}

// WithValidationDelay overrides the domain's validation debounce. Zero
// validates synchronously on every mutation.
func WithValidationDelay(d time.Duration) Option {
	return func(o *sessionOptions) {
		if d >= 0 {
			o.validationDelay = d
		}
	}
}

// WithInitialData layers caller data over the stored snapshot.
func WithInitialData(data fieldpath.Record) Option {
	return func(o *sessionOptions) { o.initial = fieldpath.Clone(data) }
}

// WithStorageKey overrides the domain storage key.
func WithStorageKey(key string) Option {
	return func(o *sessionOptions) { o.storageKey = key }
}

// WithInstanceIDGenerator replaces the random instance id source.
func WithInstanceIDGenerator(fn func() string) Option {
	return func(o *sessionOptions) {
		if fn != nil {
			o.newInstanceID = fn
		}
	}
}
