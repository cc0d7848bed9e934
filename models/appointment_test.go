package models

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to AppointmentStatus }{
		{StatusRequested, StatusConfirmed},
		{StatusRequested, StatusAwaitingConfirmation},
		{StatusRequested, StatusCanceled},
		{StatusAwaitingConfirmation, StatusConfirmed},
		{StatusAwaitingConfirmation, StatusCanceled},
		{StatusConfirmed, StatusCompleted},
		{StatusConfirmed, StatusCanceled},
		{StatusConfirmed, StatusRescheduled},
		{StatusConfirmed, StatusNoShow},
	}
	for _, tt := range allowed {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to AppointmentStatus }{
		{StatusConfirmed, StatusRequested}, // no path back
		{StatusCanceled, StatusConfirmed},  // terminal
		{StatusCompleted, StatusNoShow},
		{StatusRescheduled, StatusConfirmed},
		{StatusNoShow, StatusCompleted},
		{StatusRequested, StatusCompleted}, // must confirm first
		{StatusAwaitingConfirmation, StatusNoShow},
	}
	for _, tt := range denied {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []AppointmentStatus{StatusCompleted, StatusCanceled, StatusRescheduled, StatusNoShow} {
		for _, to := range []AppointmentStatus{
			StatusRequested, StatusAwaitingConfirmation, StatusConfirmed,
			StatusCompleted, StatusCanceled, StatusRescheduled, StatusNoShow,
		} {
			if CanTransition(terminal, to) {
				t.Errorf("terminal state %s allows transition to %s", terminal, to)
			}
		}
	}
}
