package timeutil

import (
	"testing"
	"time"
)

func TestManualClockAfterAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	fired := <-c.After(5 * time.Second)
	if !fired.Equal(start.Add(5 * time.Second)) {
		t.Errorf("After fired at %v", fired)
	}
	c.Advance(time.Minute)
	<-c.After(5 * time.Second)

	if got := c.Now().Sub(start); got != 70*time.Second {
		t.Errorf("elapsed = %v, want 70s", got)
	}
	waits := c.Waits()
	if len(waits) != 2 || waits[0] != 5*time.Second || waits[1] != 5*time.Second {
		t.Errorf("Waits() = %v", waits)
	}
}

func TestSystemClockAfter(t *testing.T) {
	c := NewSystemClock()
	before := c.Now()
	<-c.After(time.Millisecond)
	if !c.Now().After(before) {
		t.Error("system clock did not move")
	}
}
