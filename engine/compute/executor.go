package compute

import (
	"errors"
	"time"

	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

// ExecutionState is the executor's lifecycle:
// Idle -> submit -> InFlight -> wait -> Completed | TimedOut.
type ExecutionState uint8

const (
	ExecutionIdle ExecutionState = iota
	ExecutionInFlight
	ExecutionCompleted
	ExecutionTimedOut
)

// Executor submits one recorded command sequence and waits for its
// completion fence. One fence, one outstanding submission; reusing the
// fence for overlapping submissions is undefined and not supported.
type Executor struct {
	dev     hal.Device
	fence   hal.Fence
	timeout time.Duration
	state   ExecutionState
}

// NewExecutor creates the completion fence (unsignaled) and pushes its
// teardown.
func NewExecutor(dev hal.Device, lc *Lifecycle, timeout time.Duration) (*Executor, error) {
	fence, err := dev.CreateFence(false)
	if err != nil {
		return nil, core.DriverError(err, "unable to create fence")
	}
	lc.PushDestroy("fence", func() { dev.DestroyFence(fence) })
	return &Executor{
		dev:     dev,
		fence:   fence,
		timeout: timeout,
		state:   ExecutionIdle,
	}, nil
}

func (e *Executor) State() ExecutionState {
	return e.state
}

// Submit resets the fence to unsignaled and enqueues the command
// sequence tagged with it.
func (e *Executor) Submit(queueFamilyIndex uint32, cb hal.CommandBuffer) error {
	if e.state == ExecutionInFlight {
		return core.DriverError(nil, "submission already in flight")
	}
	if err := e.dev.ResetFence(e.fence); err != nil {
		return core.DriverError(err, "unable to reset fence")
	}
	if err := e.dev.Submit(queueFamilyIndex, cb, e.fence); err != nil {
		return core.DriverError(err, "unable to submit command buffer")
	}
	e.state = ExecutionInFlight
	return nil
}

// Wait blocks until the fence signals or the timeout elapses. On
// timeout the run fails; the engine never re-waits on its own.
func (e *Executor) Wait() error {
	err := e.dev.WaitForFence(e.fence, e.timeout)
	if err == nil {
		e.state = ExecutionCompleted
		return nil
	}
	if errors.Is(err, hal.ErrTimeout) {
		e.state = ExecutionTimedOut
		return core.TimeoutError("fence wait exceeded %s", e.timeout)
	}
	return core.DriverError(err, "fence wait failed")
}
