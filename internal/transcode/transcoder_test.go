package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	coreerrors "github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/process"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("debug")
	os.Exit(m.Run())
}

// fakeFFmpeg writes size bytes to the last argument, the way ffmpeg writes its output.
func fakeFFmpeg(size int, err error) func(process.CommandCall) ([]byte, error) {
	return func(call process.CommandCall) ([]byte, error) {
		if err != nil {
			return []byte("Invalid data found when processing input"), err
		}
		out := call.Args[len(call.Args)-1]
		return nil, os.WriteFile(out, make([]byte, size), 0o600)
	}
}

func writeInput(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("source"), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestIsVideoFilePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"ep01.mkv", true},
		{"EP01.MKV", true},
		{"movie.mp4", true},
		{"subs.ass", false},
		{"cover.jpg", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsVideoFilePath(tt.path); got != tt.want {
			t.Errorf("IsVideoFilePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestArgsCarryFixedProfile(t *testing.T) {
	tr := New(&process.MockRunner{}, "", "/work", Profile{})
	args := tr.Args("/in/ep01.mkv", "/work/ep01-compressed.mp4")

	want := map[string]string{
		"-i":        "/in/ep01.mkv",
		"-c:v":      "libx264",
		"-b:v":      "1000k",
		"-preset":   "veryfast",
		"-c:a":      "aac",
		"-b:a":      "128k",
		"-movflags": "+faststart",
	}
	for i := 0; i < len(args)-1; i++ {
		if v, ok := want[args[i]]; ok {
			if args[i+1] != v {
				t.Errorf("%s = %q, want %q", args[i], args[i+1], v)
			}
			delete(want, args[i])
		}
	}
	if len(want) != 0 {
		t.Errorf("missing flags: %v", want)
	}
	if tr.OutputPath("/in/ep01.mkv") != filepath.Join("/work", "ep01-compressed.mp4") {
		t.Errorf("OutputPath = %q", tr.OutputPath("/in/ep01.mkv"))
	}
}

func TestCompressWithinCeiling(t *testing.T) {
	runner := &process.MockRunner{Handler: fakeFFmpeg(100, nil)}
	workDir := filepath.Join(t.TempDir(), "work")
	tr := New(runner, "/usr/bin/ffmpeg", workDir, DefaultProfile)

	out, err := tr.Compress(context.Background(), writeInput(t, "ep01.mkv"), 1000)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if out != filepath.Join(workDir, "ep01-compressed.mp4") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("artifact should remain on disk: %v", err)
	}
	calls := runner.Calls()
	if len(calls) != 1 || calls[0].Command != "/usr/bin/ffmpeg" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestCompressExactlyAtCeiling(t *testing.T) {
	tr := New(&process.MockRunner{Handler: fakeFFmpeg(1000, nil)}, "", t.TempDir(), DefaultProfile)
	if _, err := tr.Compress(context.Background(), writeInput(t, "ep01.mkv"), 1000); err != nil {
		t.Fatalf("Compress: %v", err)
	}
}

func TestCompressOverCeilingRemovesArtifact(t *testing.T) {
	workDir := t.TempDir()
	tr := New(&process.MockRunner{Handler: fakeFFmpeg(1001, nil)}, "", workDir, DefaultProfile)

	_, err := tr.Compress(context.Background(), writeInput(t, "ep01.mkv"), 1000)
	if !errors.Is(err, coreerrors.ErrTranscodeFailed) {
		t.Fatalf("error = %v, want transcode failed", err)
	}
	if _, statErr := os.Stat(filepath.Join(workDir, "ep01-compressed.mp4")); !os.IsNotExist(statErr) {
		t.Errorf("oversized artifact should be removed, stat err = %v", statErr)
	}
}

func TestCompressFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler func(process.CommandCall) ([]byte, error)
		input   func(t *testing.T) string
	}{
		{
			name:    "ffmpeg exits non-zero",
			handler: fakeFFmpeg(0, errors.New("exit status 1")),
			input:   func(t *testing.T) string { return writeInput(t, "ep01.mkv") },
		},
		{
			name:    "ffmpeg writes nothing",
			handler: func(process.CommandCall) ([]byte, error) { return nil, nil },
			input:   func(t *testing.T) string { return writeInput(t, "ep01.mkv") },
		},
		{
			name:    "missing input",
			handler: fakeFFmpeg(10, nil),
			input:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "gone.mkv") },
		},
		{
			name:    "not a video",
			handler: fakeFFmpeg(10, nil),
			input:   func(t *testing.T) string { return writeInput(t, "subs.ass") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(&process.MockRunner{Handler: tt.handler}, "", t.TempDir(), DefaultProfile)
			_, err := tr.Compress(context.Background(), tt.input(t), 1000)
			if !errors.Is(err, coreerrors.ErrTranscodeFailed) {
				t.Errorf("error = %v, want transcode failed", err)
			}
		})
	}
}

func TestCompressRejectsNonPositiveCeiling(t *testing.T) {
	runner := &process.MockRunner{}
	tr := New(runner, "", t.TempDir(), DefaultProfile)
	_, err := tr.Compress(context.Background(), writeInput(t, "ep01.mkv"), 0)
	if !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Errorf("error = %v, want invalid input", err)
	}
	if len(runner.Calls()) != 0 {
		t.Error("ffmpeg should not run")
	}
}
