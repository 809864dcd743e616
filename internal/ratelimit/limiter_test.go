package ratelimit

import (
	"os"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("debug")
	os.Exit(m.Run())
}

func TestKeyedLimiter(t *testing.T) {
	l := NewKeyedLimiter(3*time.Second, 1)
	start := time.Unix(1_700_000_000, 0)

	if !l.AllowAt(1, start) {
		t.Fatal("first event should pass")
	}
	if l.AllowAt(1, start.Add(time.Second)) {
		t.Error("second event within the interval should be limited")
	}
	if !l.AllowAt(2, start.Add(time.Second)) {
		t.Error("other keys have their own bucket")
	}
	if !l.AllowAt(1, start.Add(4*time.Second)) {
		t.Error("event after the interval should pass")
	}
	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2", l.Len())
	}

	l.Forget(1)
	if l.Len() != 1 {
		t.Errorf("Len after Forget = %d, want 1", l.Len())
	}
}

func TestKeyedLimiterDisabled(t *testing.T) {
	l := NewKeyedLimiter(0, 1)
	for i := 0; i < 10; i++ {
		if !l.Allow(1) {
			t.Fatal("disabled limiter must allow everything")
		}
	}
}
