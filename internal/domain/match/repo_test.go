package match

import (
	"testing"
	"time"
)

func TestStateUpdatesUseGivenTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	st := NewState(0, nil)
	ups := stateUpdates(st, now)

	var stamped bool
	for _, u := range ups {
		if u.Path == "updatedAt" {
			stamped = true
			if u.Value != now {
				t.Errorf("updatedAt = %v, want %v", u.Value, now)
			}
		}
		if u.Path == "applied" && u.Value != nil {
			t.Errorf("applied = %v, want nil for an open match", u.Value)
		}
	}
	if !stamped {
		t.Error("updatedAt not written")
	}
}
