package soft

import (
	"sync"
	"time"

	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

type opKind uint8

const (
	opBindPipeline opKind = iota
	opBindDescriptorSet
	opDispatch
)

type recordedOp struct {
	kind     opKind
	pipeline hal.Pipeline
	set      hal.DescriptorSet
	groups   [3]uint32
}

// commandBuffer is a single linear recording. Sealed once End returns.
type commandBuffer struct {
	recording bool
	sealed    bool
	ops       []recordedOp
}

func (cb *commandBuffer) Begin(oneTimeSubmit bool) error {
	cb.recording = true
	cb.sealed = false
	cb.ops = cb.ops[:0]
	return nil
}

func (cb *commandBuffer) BindPipeline(pipeline hal.Pipeline) {
	cb.ops = append(cb.ops, recordedOp{kind: opBindPipeline, pipeline: pipeline})
}

func (cb *commandBuffer) BindDescriptorSet(layout hal.PipelineLayout, set hal.DescriptorSet) {
	cb.ops = append(cb.ops, recordedOp{kind: opBindDescriptorSet, set: set})
}

func (cb *commandBuffer) Dispatch(groupsX, groupsY, groupsZ uint32) {
	cb.ops = append(cb.ops, recordedOp{kind: opDispatch, groups: [3]uint32{groupsX, groupsY, groupsZ}})
}

func (cb *commandBuffer) End() error {
	cb.recording = false
	cb.sealed = true
	return nil
}

type softFence struct {
	mu       sync.Mutex
	signaled bool
	ch       chan struct{}
}

func newSoftFence(signaled bool) *softFence {
	f := &softFence{signaled: signaled, ch: make(chan struct{})}
	if signaled {
		close(f.ch)
	}
	return f
}

func (f *softFence) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.signaled = false
		f.ch = make(chan struct{})
	}
}

func (f *softFence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		f.signaled = true
		close(f.ch)
	}
}

func (f *softFence) wait(timeout time.Duration) error {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return hal.ErrTimeout
	}
}

type submission struct {
	ops   []recordedOp
	fence *softFence
}

// softQueue executes submissions on its own goroutine, overlapping with
// the host the way a device queue does.
type softQueue struct {
	device *device
	silent bool

	work chan submission
	done chan struct{}
	wg   sync.WaitGroup
}

func newSoftQueue(d *device, silent bool) *softQueue {
	q := &softQueue{
		device: d,
		silent: silent,
		work:   make(chan submission, 4),
		done:   make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *softQueue) submit(ops []recordedOp, fence *softFence) error {
	copied := make([]recordedOp, len(ops))
	copy(copied, ops)
	select {
	case q.work <- submission{ops: copied, fence: fence}:
		return nil
	case <-q.done:
		return hal.ErrDeviceLost
	}
}

func (q *softQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case sub := <-q.work:
			if q.silent {
				// A wedged device: work is accepted, fences never signal.
				continue
			}
			q.execute(sub.ops)
			sub.fence.signal()
		case <-q.done:
			return
		}
	}
}

func (q *softQueue) execute(ops []recordedOp) {
	var pipeline *pipelineState
	var set *setState
	for _, op := range ops {
		switch op.kind {
		case opBindPipeline:
			q.device.mu.Lock()
			pipeline = q.device.pipelines[op.pipeline]
			q.device.mu.Unlock()
		case opBindDescriptorSet:
			q.device.mu.Lock()
			set = q.device.sets[op.set]
			q.device.mu.Unlock()
		case opDispatch:
			if pipeline == nil || set == nil {
				core.LogWarn("soft queue: dispatch without bound pipeline or descriptor set, ignoring")
				continue
			}
			q.device.mu.Lock()
			bindings := q.resolveBindings(set)
			q.device.mu.Unlock()
			pipeline.kernel(bindings, op.groups[0], op.groups[1], op.groups[2])
		}
	}
}

// resolveBindings turns descriptor writes into byte views over the
// bound buffer ranges. Caller holds the device lock.
func (q *softQueue) resolveBindings(set *setState) map[uint32][]byte {
	bindings := make(map[uint32][]byte, len(set.writes))
	for binding, write := range set.writes {
		buf, ok := q.device.buffers[write.Buffer]
		if !ok || !buf.bound {
			continue
		}
		block, ok := q.device.memories[buf.memory]
		if !ok {
			continue
		}
		start := buf.offset + write.Offset
		end := start + write.Range
		if end > uint64(len(block.data)) {
			continue
		}
		bindings[binding] = block.data[start:end]
	}
	return bindings
}

func (q *softQueue) shutdown() {
	close(q.done)
	q.wg.Wait()
}
