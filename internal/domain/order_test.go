package domain

import "testing"

func TestOrderStateMachine(t *testing.T) {
	t.Run("terminal states", func(t *testing.T) {
		terminal := []OrderState{OrderStateRejected, OrderStateCancelled, OrderStateFailed, OrderStateSucceeded}
		for _, s := range terminal {
			if !s.Terminal() {
				t.Errorf("expected %s to be terminal", s)
			}
		}
		for _, s := range []OrderState{OrderStatePrepurchase, OrderStatePaid} {
			if s.Terminal() {
				t.Errorf("expected %s not to be terminal", s)
			}
		}
	})

	t.Run("allowed transitions", func(t *testing.T) {
		allowed := []struct{ from, to OrderState }{
			{OrderStatePrepurchase, OrderStateCancelled},
			{OrderStatePrepurchase, OrderStatePaid},
			{OrderStatePaid, OrderStateSucceeded},
			{OrderStatePaid, OrderStateFailed},
		}
		for _, tt := range allowed {
			if !tt.from.CanTransition(tt.to) {
				t.Errorf("expected %s -> %s to be allowed", tt.from, tt.to)
			}
		}
	})

	t.Run("states never move backwards", func(t *testing.T) {
		forbidden := []struct{ from, to OrderState }{
			{OrderStatePaid, OrderStatePrepurchase},
			{OrderStatePaid, OrderStateCancelled},
			{OrderStateSucceeded, OrderStatePaid},
			{OrderStateFailed, OrderStatePaid},
			{OrderStateCancelled, OrderStatePaid},
			{OrderStateRejected, OrderStatePrepurchase},
			{OrderStatePrepurchase, OrderStateSucceeded},
		}
		for _, tt := range forbidden {
			if tt.from.CanTransition(tt.to) {
				t.Errorf("expected %s -> %s to be rejected", tt.from, tt.to)
			}
		}
	})
}
