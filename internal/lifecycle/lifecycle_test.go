package lifecycle

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{LoadAvailable, LoadDispatched, true},
		{LoadAvailable, LoadInTransit, true},
		{LoadDispatched, LoadDelivered, true},
		{LoadInTransit, LoadDelivered, true},
		{LoadDelivered, LoadAvailable, false},
		{LoadDelivered, LoadInTransit, false},
		{LoadAvailable, LoadAvailable, false},

		// Flagging a problem is POD-aware and lives in CanFlagProblem.
		{LoadAvailable, LoadProblem, false},
		{LoadProblem, LoadProblem, false},

		// Problem returns to a prior operational status once resolved.
		{LoadProblem, LoadAvailable, true},
		{LoadProblem, LoadInTransit, true},
		{LoadProblem, LoadDelivered, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanFlagProblem(t *testing.T) {
	tests := []struct {
		status, pod string
		want        bool
	}{
		{LoadAvailable, PODNone, true},
		{LoadDispatched, PODNone, true},
		{LoadInTransit, PODNone, true},
		// Delivered but POD outstanding: a delivery dispute is still possible.
		{LoadDelivered, PODPending, true},
		{LoadDelivered, PODNone, true},
		// Fully closed.
		{LoadDelivered, PODReceived, false},
		// Already a problem.
		{LoadProblem, PODNone, false},
	}
	for _, tt := range tests {
		if got := CanFlagProblem(tt.status, tt.pod); got != tt.want {
			t.Errorf("CanFlagProblem(%s, %s) = %v, want %v", tt.status, tt.pod, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	if !Terminal(LoadDelivered, PODReceived) {
		t.Error("delivered + pod received should be terminal")
	}
	if Terminal(LoadDelivered, PODPending) {
		t.Error("delivered + pod pending should not be terminal")
	}
	if Terminal(LoadInTransit, PODReceived) {
		t.Error("in_transit should never be terminal")
	}
}

func TestValidateTransition(t *testing.T) {
	if err := ValidateTransition(LoadAvailable, LoadInTransit); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateTransition(LoadDelivered, LoadAvailable); err == nil {
		t.Error("expected error for delivered → available")
	}
}

func TestValidLoadStatus(t *testing.T) {
	for _, s := range []string{LoadAvailable, LoadDispatched, LoadInTransit, LoadDelivered, LoadProblem} {
		if !ValidLoadStatus(s) {
			t.Errorf("ValidLoadStatus(%s) = false", s)
		}
	}
	if ValidLoadStatus("archived") {
		t.Error("ValidLoadStatus(archived) = true, want false")
	}
}
