package domain

import (
	"path/filepath"
	"sort"
)

// DownloadState is the lifecycle of one acquisition as seen by the progress monitor.
type DownloadState string

const (
	StateSubmitted   DownloadState = "submitted"
	StateRegistering DownloadState = "registering"
	StateDownloading DownloadState = "downloading"
	StateSeeding     DownloadState = "seeding"
	StateErrored     DownloadState = "errored"
	StateCancelled   DownloadState = "cancelled"
)

// IsTerminal reports whether the monitor stops at s.
func (s DownloadState) IsTerminal() bool {
	switch s {
	case StateSeeding, StateErrored, StateCancelled:
		return true
	default:
		return false
	}
}

// DownloadHandle identifies an in-flight acquisition on the remote manager.
// ContentHash is the lookup key; the manager owns the download itself.
type DownloadHandle struct {
	SourceLocator string        `json:"source_locator"`
	ContentHash   string        `json:"content_hash"`
	Name          string        `json:"name,omitempty"`
	State         DownloadState `json:"state"`
	Progress      float64       `json:"progress"`
	SavePath      string        `json:"save_path"`
}

// MediaFile is one file of a completed download.
type MediaFile struct {
	RelativeName string `json:"relative_name"`
	AbsolutePath string `json:"absolute_path"`
	SizeBytes    int64  `json:"size_bytes"`
}

// NewMediaFile builds a MediaFile under savePath.
func NewMediaFile(savePath, relativeName string, size int64) MediaFile {
	return MediaFile{
		RelativeName: relativeName,
		AbsolutePath: filepath.Join(savePath, filepath.FromSlash(relativeName)),
		SizeBytes:    size,
	}
}

// SortMediaFiles orders files by RelativeName, byte-wise ascending. The order is
// the delivery order for multi-episode releases.
func SortMediaFiles(files []MediaFile) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].RelativeName < files[j].RelativeName
	})
}

// Variant describes what was delivered for one file.
type Variant string

const (
	VariantTranscoded Variant = "transcoded"
	VariantOriginal   Variant = "original"
	VariantFailed     Variant = "failed"
)

// DeliveryResult is the outcome of processing one MediaFile.
type DeliveryResult struct {
	File       MediaFile `json:"file"`
	Variant    Variant   `json:"variant"`
	OutputPath string    `json:"output_path,omitempty"`
	Caption    string    `json:"caption,omitempty"`
	Index      int       `json:"index"`
	Total      int       `json:"total"`
	Err        error     `json:"-"`
}

// Phase is the pipeline stage a ProgressEvent belongs to.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseTranscoding Phase = "transcoding"
	PhaseDelivering  Phase = "delivering"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// IsTerminal reports whether p ends a pipeline run.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// DeliverySummary counts per-file outcomes of one run.
type DeliverySummary struct {
	Transcoded int `json:"transcoded"`
	Original   int `json:"original"`
	Failed     int `json:"failed"`
}

// Add counts one result.
func (s *DeliverySummary) Add(v Variant) {
	switch v {
	case VariantTranscoded:
		s.Transcoded++
	case VariantOriginal:
		s.Original++
	case VariantFailed:
		s.Failed++
	}
}

// Delivered is the number of files that reached the observer.
func (s DeliverySummary) Delivered() int {
	return s.Transcoded + s.Original
}

// ProgressEvent is passed by value; observers never see it change.
type ProgressEvent struct {
	Fraction float64          `json:"fraction"`
	Phase    Phase            `json:"phase"`
	Detail   string           `json:"detail,omitempty"`
	Summary  *DeliverySummary `json:"summary,omitempty"`
}
