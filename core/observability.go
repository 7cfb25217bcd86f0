package core

import "time"

// LoopState is the lifecycle position of an EventLoop.
type LoopState int32

const (
	LoopIdle LoopState = iota
	LoopRunning
	LoopStopping
	LoopStopped
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopRunning:
		return "running"
	case LoopStopping:
		return "stopping"
	case LoopStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TaskExecutionRecord captures one applied task.
type TaskExecutionRecord struct {
	Seq        uint64
	Kind       TaskKind
	Owner      OwnerID
	EnqueuedAt time.Time
	StartedAt  time.Time
	Duration   time.Duration
	Err        error
	Panicked   bool
}

// LoopStats represents runtime observability state for a service.
type LoopStats struct {
	Name      string
	State     LoopState
	Pending   int
	Windows   int
	Reserved  int
	Applied   uint64
	Failed    uint64
	Coalesced uint64
	Rejected  uint64
	Pumps     uint64
	PumpErrs  uint64

	LastTaskKind TaskKind
	LastTaskAt   time.Time
}
