package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"configuration", ConfigurationError("neither selection mode specified"), ErrConfiguration},
		{"suitability", SuitabilityError("no suitable device"), ErrSuitability},
		{"format", FormatError("misaligned shader bytecode"), ErrFormat},
		{"pipeline build", PipelineBuildError(nil, "driver rejected shader module"), ErrPipelineBuild},
		{"timeout", TimeoutError("fence wait exceeded 250ms"), ErrTimeout},
		{"driver", DriverError(nil, "unable to create fence"), ErrDriver},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.kind) {
			t.Errorf("%s: expected errors.Is to match its kind", tt.name)
		}
		for _, other := range tests {
			if other.kind != tt.kind && errors.Is(tt.err, other.kind) {
				t.Errorf("%s: matched foreign kind %v", tt.name, other.kind)
			}
		}
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("device lost")
	err := DriverError(cause, "unable to submit")

	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "device lost") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestErrorMessageFormatting(t *testing.T) {
	err := ConfigurationError("unknown driver '%s'", "cuda")
	if !strings.Contains(err.Error(), "unknown driver 'cuda'") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestErrorWrappedFurther(t *testing.T) {
	err := fmt.Errorf("run failed: %w", TimeoutError("fence wait exceeded 250ms"))
	if !errors.Is(err, ErrTimeout) {
		t.Error("expected kind to survive further wrapping")
	}
}
