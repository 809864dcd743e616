package domain

import (
	"context"
)

// DownloadManager is the remote download manager's control surface.
type DownloadManager interface {
	// Submit registers locator. expectedHash is the content hash the caller
	// derived from the same metadata; the manager may not know it yet.
	Submit(ctx context.Context, locator, expectedHash string) (DownloadHandle, error)
	// QueryByHash returns the current handle, ErrNotFound while unregistered,
	// or ErrManagerUnreachable on transport or auth failure.
	QueryByHash(ctx context.Context, contentHash string) (DownloadHandle, error)
	// ListFiles is valid only for a Seeding handle.
	ListFiles(ctx context.Context, handle DownloadHandle) ([]MediaFile, error)
	// Remove unregisters the download, keeping data on disk.
	Remove(ctx context.Context, handle DownloadHandle) error
}

// Transcoder shrinks one file to fit a size ceiling.
type Transcoder interface {
	Compress(ctx context.Context, inputPath string, ceilingBytes int64) (string, error)
}

// Observer receives a pipeline run's events in order. OnCancelRequested is
// polled at poll boundaries and between files.
type Observer interface {
	OnProgress(event ProgressEvent)
	OnFileDelivered(result DeliveryResult)
	OnCancelRequested() bool
}
