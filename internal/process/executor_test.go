package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"

	coreerrors "github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("debug")
	os.Exit(m.Run())
}

func TestOSRunnerMissingBinary(t *testing.T) {
	_, err := NewOSRunner().Run(context.Background(), "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	var de *coreerrors.DomainError
	if !errors.As(err, &de) || de.Code != "command_execution_failed" {
		t.Errorf("error = %v, want command_execution_failed", err)
	}
}

func TestOSRunnerOutput(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	out, err := NewOSRunner().Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out) != "hello\n" {
		t.Errorf("output = %q", out)
	}
}

func TestTail(t *testing.T) {
	long := make([]byte, maxOutputDetail+10)
	for i := range long {
		long[i] = 'a'
	}
	long[len(long)-1] = 'z'
	got := tail(long)
	if len(got) != maxOutputDetail || got[len(got)-1] != 'z' {
		t.Errorf("tail kept %d bytes", len(got))
	}
	if tail([]byte("short")) != "short" {
		t.Error("short output should be kept whole")
	}
}

func TestMockRunner(t *testing.T) {
	m := &MockRunner{}
	out, err := m.Run(context.Background(), "ffmpeg", "-i", "in.mkv")
	if err != nil || string(out) != "mock output" {
		t.Fatalf("Run = %q, %v", out, err)
	}

	boom := errors.New("boom")
	m.Handler = func(call CommandCall) ([]byte, error) { return nil, boom }
	if _, err := m.Run(context.Background(), "ffmpeg"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}

	calls := m.Calls()
	if len(calls) != 2 || calls[0].Args[1] != "in.mkv" {
		t.Errorf("calls = %+v", calls)
	}
}
