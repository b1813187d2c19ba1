package globaltime

import (
	"testing"
	"time"
)

func TestSetMockTimePinsClock(t *testing.T) {
	pinned := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	SetMockTime(pinned)
	t.Cleanup(ResetTime)

	if got := UTC(); !got.Equal(pinned) {
		t.Fatalf("unexpected pinned time: got %s want %s", got, pinned)
	}
	if got := Since(pinned.Add(-90 * time.Minute)); got != 90*time.Minute {
		t.Fatalf("unexpected Since: got %s", got)
	}
}
