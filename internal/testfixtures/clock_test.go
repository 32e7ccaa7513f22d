package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if ReferenceTime().Weekday() != time.Monday {
		t.Fatalf("ReferenceTime should be a Monday, got %v", ReferenceTime().Weekday())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	if updated := clock.Advance(90 * time.Minute); !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}
	if updated := clock.AdvanceDays(1); updated.Day() != 15 {
		t.Fatalf("AdvanceDays returned %v", updated)
	}

	clock.Set(start)
	if got := clock.NowFunc()(); !got.Equal(start) {
		t.Fatalf("expected %v, got %v", start, got)
	}
}
