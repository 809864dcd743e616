package testutils

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
)

// PollResult is one scripted answer of FakeManager.QueryByHash.
type PollResult struct {
	Progress float64
	State    domain.DownloadState
	Err      error
}

// FakeManager implements domain.DownloadManager from a script.
// Polls are consumed in order; the last one repeats. No polls means NotFound.
type FakeManager struct {
	SubmitErr error
	Polls     []PollResult
	Files     []domain.MediaFile
	ListErr   error
	RemoveErr error
	SavePath  string

	mu        sync.Mutex
	submitted []string
	queries   int
	listed    int
	removed   []string
}

func (f *FakeManager) Submit(_ context.Context, locator, expectedHash string) (domain.DownloadHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, locator)
	if f.SubmitErr != nil {
		return domain.DownloadHandle{}, f.SubmitErr
	}
	return domain.DownloadHandle{
		SourceLocator: locator,
		ContentHash:   strings.ToLower(expectedHash),
		State:         domain.StateSubmitted,
		SavePath:      f.SavePath,
	}, nil
}

func (f *FakeManager) QueryByHash(_ context.Context, contentHash string) (domain.DownloadHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.queries
	f.queries++
	if len(f.Polls) == 0 {
		return domain.DownloadHandle{}, errors.New(errors.ErrNotFound, "")
	}
	if idx >= len(f.Polls) {
		idx = len(f.Polls) - 1
	}
	p := f.Polls[idx]
	if p.Err != nil {
		return domain.DownloadHandle{}, p.Err
	}
	state := p.State
	if state == "" {
		state = domain.StateDownloading
	}
	return domain.DownloadHandle{
		ContentHash: contentHash,
		State:       state,
		Progress:    p.Progress,
		SavePath:    f.SavePath,
	}, nil
}

func (f *FakeManager) ListFiles(_ context.Context, handle domain.DownloadHandle) ([]domain.MediaFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	if handle.State != domain.StateSeeding {
		return nil, errors.New(errors.ErrInvalidState, "")
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]domain.MediaFile, len(f.Files))
	copy(out, f.Files)
	return out, nil
}

func (f *FakeManager) Remove(_ context.Context, handle domain.DownloadHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, handle.ContentHash)
	return f.RemoveErr
}

func (f *FakeManager) Submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...)
}

func (f *FakeManager) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

func (f *FakeManager) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed
}

func (f *FakeManager) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

// TranscodeOutcome scripts FakeTranscoder for one input base name.
type TranscodeOutcome struct {
	Size int64
	Err  error
}

// FakeTranscoder writes an artifact of the scripted size into Dir and applies
// the ceiling the way the ffmpeg adapter does. Unscripted inputs produce 100 bytes.
// A context that is done once OnCompress returns fails the call, as a killed ffmpeg would.
type FakeTranscoder struct {
	Dir      string
	Outcomes map[string]TranscodeOutcome
	// OnCompress, when set, runs at the start of every Compress call.
	OnCompress func(ctx context.Context, inputPath string)

	mu    sync.Mutex
	calls []string
}

func (f *FakeTranscoder) Compress(ctx context.Context, inputPath string, ceilingBytes int64) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inputPath)
	f.mu.Unlock()

	if f.OnCompress != nil {
		f.OnCompress(ctx, inputPath)
	}
	if ctx.Err() != nil {
		return "", errors.Wrap(ctx.Err(), errors.ErrTranscodeFailed, "ffmpeg killed")
	}

	base := filepath.Base(inputPath)
	outcome, ok := f.Outcomes[base]
	if !ok {
		outcome = TranscodeOutcome{Size: 100}
	}
	if outcome.Err != nil {
		return "", outcome.Err
	}
	out := filepath.Join(f.Dir, strings.TrimSuffix(base, filepath.Ext(base))+"-compressed.mp4")
	if err := os.WriteFile(out, make([]byte, outcome.Size), 0o600); err != nil {
		return "", errors.Wrap(err, errors.ErrTranscodeFailed, "")
	}
	if outcome.Size > ceilingBytes {
		_ = os.Remove(out)
		return "", errors.New(errors.ErrTranscodeFailed, "output exceeds size ceiling")
	}
	return out, nil
}

func (f *FakeTranscoder) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// RecordingObserver implements domain.Observer and keeps everything it is given.
// CancelAfterDelivered > 0 requests cancellation once that many files arrived.
type RecordingObserver struct {
	CancelAfterDelivered int
	// OnDelivered, when set, runs inside OnFileDelivered.
	OnDelivered func(domain.DeliveryResult)

	mu        sync.Mutex
	events    []domain.ProgressEvent
	delivered []domain.DeliveryResult
	cancel    bool
}

func (o *RecordingObserver) OnProgress(event domain.ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *RecordingObserver) OnFileDelivered(result domain.DeliveryResult) {
	o.mu.Lock()
	o.delivered = append(o.delivered, result)
	if o.CancelAfterDelivered > 0 && len(o.delivered) >= o.CancelAfterDelivered {
		o.cancel = true
	}
	hook := o.OnDelivered
	o.mu.Unlock()
	if hook != nil {
		hook(result)
	}
}

func (o *RecordingObserver) OnCancelRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel
}

func (o *RecordingObserver) RequestCancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancel = true
}

func (o *RecordingObserver) Events() []domain.ProgressEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.ProgressEvent(nil), o.events...)
}

func (o *RecordingObserver) Delivered() []domain.DeliveryResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.DeliveryResult(nil), o.delivered...)
}

// Fractions returns the fractions of events in phase, in emission order.
func (o *RecordingObserver) Fractions(phase domain.Phase) []float64 {
	var out []float64
	for _, e := range o.Events() {
		if e.Phase == phase {
			out = append(out, e.Fraction)
		}
	}
	return out
}

// Terminal returns every done or failed event.
func (o *RecordingObserver) Terminal() []domain.ProgressEvent {
	var out []domain.ProgressEvent
	for _, e := range o.Events() {
		if e.Phase.IsTerminal() {
			out = append(out, e)
		}
	}
	return out
}
