package compute

import "github.com/spaghettifunk/magma/engine/core"

type teardown struct {
	name string
	fn   func() error
}

// Lifecycle is an explicit stack of acquired resources. Every
// acquisition pushes a typed teardown action; Unwind releases them in
// exact reverse order on any exit path, success or failure.
type Lifecycle struct {
	stack []teardown
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Push records the teardown action for a freshly acquired resource.
func (lc *Lifecycle) Push(name string, fn func() error) {
	lc.stack = append(lc.stack, teardown{name: name, fn: fn})
}

// PushDestroy is Push for destroy functions without an error return.
func (lc *Lifecycle) PushDestroy(name string, fn func()) {
	lc.Push(name, func() error {
		fn()
		return nil
	})
}

// Depth reports how many teardown actions are pending.
func (lc *Lifecycle) Depth() int {
	return len(lc.stack)
}

// Unwind releases everything in reverse-creation order. Failures are
// logged and do not stop the unwind; each action runs at most once.
func (lc *Lifecycle) Unwind() {
	for i := len(lc.stack) - 1; i >= 0; i-- {
		td := lc.stack[i]
		core.LogDebug("destroying %s", td.name)
		if err := td.fn(); err != nil {
			core.LogError("teardown of %s failed: %s", td.name, err)
		}
	}
	lc.stack = lc.stack[:0]
}
