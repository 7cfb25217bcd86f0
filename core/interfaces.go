package core

import (
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling panics during task application
// =============================================================================

// PanicHandler is called when applying a task panics on the loop goroutine.
// The loop recovers, reports and moves on to the next task.
type PanicHandler interface {
	// HandlePanic is called on the loop goroutine.
	//
	// Parameters:
	// - loopName: The name of the event loop
	// - task: The task being applied (Frame may be nil)
	// - panicInfo: The recovered value
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(loopName string, task Task, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler reports panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic at error level.
func (h *DefaultPanicHandler) HandlePanic(loopName string, task Task, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("loop", loopName),
		F("kind", task.Kind.String()),
		F("owner", task.Owner.String()),
		F("seq", task.Seq),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics collects event loop measurements.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called from the loop goroutine and from caller goroutines, so
// they must be safe for concurrent use and fast.
type Metrics interface {
	// RecordTaskDuration records how long applying one task took.
	RecordTaskDuration(loopName string, kind TaskKind, duration time.Duration)

	// RecordTaskFailed records a task whose application returned an error.
	// reason is a short, low-cardinality label.
	RecordTaskFailed(loopName string, kind TaskKind, reason string)

	// RecordTaskRejected records a facade call refused before enqueue.
	RecordTaskRejected(loopName string, reason string)

	// RecordQueueDepth records the backlog drained in one iteration.
	RecordQueueDepth(loopName string, depth int)

	// RecordPump records one event-pump step.
	RecordPump(loopName string, duration time.Duration, err error)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(loopName string, kind TaskKind, duration time.Duration) {
}

// RecordTaskFailed is a no-op.
func (m *NilMetrics) RecordTaskFailed(loopName string, kind TaskKind, reason string) {
}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(loopName string, reason string) {
}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(loopName string, depth int) {
}

// RecordPump is a no-op.
func (m *NilMetrics) RecordPump(loopName string, duration time.Duration, err error) {
}

// =============================================================================
// Config: Configuration for Service and EventLoop
// =============================================================================

// DefaultPollInterval bounds both task reaction latency and the pump rate.
const DefaultPollInterval = 10 * time.Millisecond

// Config holds configuration options for a Service.
// All handlers are optional; if not provided, default implementations will be used.
type Config struct {
	// Name labels logs and metrics. Defaults to "display".
	Name string

	// PollInterval is the longest the loop sleeps between pump steps.
	PollInterval time.Duration

	// CoalesceShows drops a queued frame when a newer frame for the same
	// window is in the same batch with no register/unregister in between.
	CoalesceShows bool

	// HistorySize is the number of applied tasks kept for RecentTasks.
	HistorySize int

	// Logger receives lifecycle and failure logs. Defaults to a slog-backed logger.
	Logger Logger

	// Metrics is called to record loop metrics. Defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler is called when applying a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler
}

// DefaultConfig returns a config with default handlers.
func DefaultConfig() *Config {
	logger := NewDefaultLogger()
	return &Config{
		Name:         "display",
		PollInterval: DefaultPollInterval,
		HistorySize:  defaultTaskHistoryCapacity,
		Logger:       logger,
		Metrics:      &NilMetrics{},
		PanicHandler: &DefaultPanicHandler{Logger: logger},
	}
}

// withDefaults returns a copy of c with every unset field filled in.
func (c *Config) withDefaults() Config {
	def := DefaultConfig()
	if c == nil {
		return *def
	}
	out := *c
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.PollInterval <= 0 {
		out.PollInterval = def.PollInterval
	}
	if out.HistorySize <= 0 {
		out.HistorySize = def.HistorySize
	}
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	if out.Metrics == nil {
		out.Metrics = def.Metrics
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{Logger: out.Logger}
	}
	return out
}
