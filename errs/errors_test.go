package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestTaxonomyPredicates(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		conflict   bool
		validation bool
		noHost     bool
	}{
		{"validation", Validation("slot", "bad"), false, true, false},
		{"conflict", Conflict(3, "taken"), true, false, false},
		{"no host", &NoAvailableHostError{PoolSize: 2, Policy: "capacity"}, false, false, true},
		{"wrapped conflict", fmt.Errorf("booking: %w", Conflict(1, "taken")), true, false, false},
		{"plain error", errors.New("boom"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflict(tt.err); got != tt.conflict {
				t.Errorf("IsConflict = %v", got)
			}
			if got := IsValidation(tt.err); got != tt.validation {
				t.Errorf("IsValidation = %v", got)
			}
			if got := IsNoAvailableHost(tt.err); got != tt.noHost {
				t.Errorf("IsNoAvailableHost = %v", got)
			}
		})
	}
}

func TestExternalSyncErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := SyncTransient("google", cause)
	if !errors.Is(err, cause) {
		t.Error("SyncTransient should wrap its cause")
	}
	if !err.Transient {
		t.Error("SyncTransient must be transient")
	}
	if SyncPermanent("google", cause).Transient {
		t.Error("SyncPermanent must not be transient")
	}
}
