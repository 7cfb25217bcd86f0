package core

import (
	"fmt"
	"time"
)

// TaskKind tags the variant carried by a Task.
type TaskKind int

const (
	// KindRegister creates the window for Owner under Name.
	KindRegister TaskKind = iota

	// KindUnregister destroys the window held by Owner.
	KindUnregister

	// KindShow repaints Owner's window with Frame.
	KindShow

	// kindBarrier carries no work; the loop closes its barrier channel.
	kindBarrier

	// KindDisplay is never queued. It labels panics from display calls made
	// outside any task (open, pump, destroy during teardown, close); Name
	// holds the step.
	KindDisplay
)

func (k TaskKind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindUnregister:
		return "unregister"
	case KindShow:
		return "show"
	case kindBarrier:
		return "barrier"
	case KindDisplay:
		return "display"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Task is one serialized unit of work for the event loop goroutine.
//
// Name is set for KindRegister and KindDisplay, Frame for KindShow. Frame is already in the
// display layout and is never written after enqueue.
type Task struct {
	Kind  TaskKind
	Owner OwnerID
	Name  string
	Frame *Frame

	// Seq and EnqueuedAt are stamped by TaskQueue.Push.
	Seq        uint64
	EnqueuedAt time.Time

	// barrier is closed once the loop reaches a kindBarrier task.
	barrier chan struct{}
}

func registerTask(owner OwnerID, name string) Task {
	return Task{Kind: KindRegister, Owner: owner, Name: name}
}

func unregisterTask(owner OwnerID) Task {
	return Task{Kind: KindUnregister, Owner: owner}
}

func showTask(owner OwnerID, frame *Frame) Task {
	return Task{Kind: KindShow, Owner: owner, Frame: frame}
}

func barrierTask() Task {
	return Task{Kind: kindBarrier, barrier: make(chan struct{})}
}
