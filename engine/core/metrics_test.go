package core

import "testing"

func TestMetricsRecording(t *testing.T) {
	if err := MetricsInitialize(); err != nil {
		t.Fatal(err)
	}

	MetricsRecordPhase(PhaseSetup, 12.5)
	MetricsRecordPhase(PhaseExecute, 3.25)
	MetricsRecordPhase(PhaseReadback, 1.0)

	if got := MetricsPhase(PhaseSetup); got != 12.5 {
		t.Errorf("setup: expected 12.5, got %f", got)
	}
	if got := MetricsPhase(PhaseExecute); got != 3.25 {
		t.Errorf("execute: expected 3.25, got %f", got)
	}

	before := MetricsDispatches()
	MetricsDispatchCompleted()
	if got := MetricsDispatches(); got != before+1 {
		t.Errorf("expected %d dispatches, got %d", before+1, got)
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseSetup, "setup"},
		{PhaseExecute, "execute"},
		{PhaseReadback, "readback"},
		{Phase(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}
