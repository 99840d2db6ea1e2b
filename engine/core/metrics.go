package core

import "sync"

// Phase identifies a timed section of a dispatch run.
type Phase uint8

const (
	PhaseSetup Phase = iota
	PhaseExecute
	PhaseReadback
	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseExecute:
		return "execute"
	case PhaseReadback:
		return "readback"
	}
	return "unknown"
}

type MetricsState struct {
	PhaseMS    [phaseCount]float64
	Dispatches uint64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{}
	})
	return nil
}

// MetricsRecordPhase stores the latest timing for the given phase.
func MetricsRecordPhase(phase Phase, elapsedMS float64) {
	if metricsState == nil {
		return
	}
	metricsState.PhaseMS[phase] = elapsedMS
}

// MetricsDispatchCompleted bumps the dispatch counter.
func MetricsDispatchCompleted() {
	if metricsState == nil {
		return
	}
	metricsState.Dispatches++
}

func MetricsPhase(phase Phase) float64 {
	if metricsState == nil {
		return 0
	}
	return metricsState.PhaseMS[phase]
}

func MetricsDispatches() uint64 {
	if metricsState == nil {
		return 0
	}
	return metricsState.Dispatches
}
