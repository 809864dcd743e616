package notifier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Console reports progress through the logger and copies delivered files into a directory.
type Console struct {
	outDir string

	cancelled atomic.Bool

	mu          sync.Mutex
	lastPercent int
	written     []string
	errs        []error
}

var _ domain.Observer = (*Console)(nil)

func NewConsole(outDir string) *Console {
	return &Console{outDir: outDir, lastPercent: -1}
}

func (c *Console) OnProgress(e domain.ProgressEvent) {
	switch e.Phase {
	case domain.PhaseDownloading:
		pct := int(e.Fraction * 100)
		c.mu.Lock()
		changed := pct != c.lastPercent
		c.lastPercent = pct
		c.mu.Unlock()
		if changed {
			logutils.Log.WithField("progress", fmt.Sprintf("%d%%", pct)).Info("Downloading")
		}
	case domain.PhaseTranscoding:
		logutils.Log.WithField("file", e.Detail).Info("Transcoding")
	case domain.PhaseDelivering:
		logutils.Log.WithField("file", e.Detail).Info("Delivering")
	case domain.PhaseDone:
		entry := logutils.Log.WithField("out_dir", c.outDir)
		if e.Summary != nil {
			entry = entry.WithFields(logrus.Fields{
				"transcoded": e.Summary.Transcoded,
				"original":   e.Summary.Original,
				"failed":     e.Summary.Failed,
			})
		}
		entry.Info("Delivery complete")
	case domain.PhaseFailed:
		logutils.Log.WithField("reason", e.Detail).Error("Delivery failed")
	}
}

// OutputName is the path, relative to the output directory, a result is written to.
func OutputName(r domain.DeliveryResult) string {
	rel := filepath.FromSlash(r.File.RelativeName)
	if r.Variant == domain.VariantTranscoded {
		return strings.TrimSuffix(rel, filepath.Ext(rel)) + ".mp4"
	}
	return rel
}

func (c *Console) OnFileDelivered(r domain.DeliveryResult) {
	dest := filepath.Join(c.outDir, OutputName(r))
	n, err := copyFile(r.OutputPath, dest)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errs = append(c.errs, err)
		logutils.Log.WithError(err).WithField("file", r.File.RelativeName).Error("Failed to write delivered file")
		return
	}
	c.written = append(c.written, dest)
	logutils.Log.WithFields(logrus.Fields{
		"file":    dest,
		"variant": r.Variant,
		"size":    humanize.IBytes(uint64(n)),
		"index":   fmt.Sprintf("%d/%d", r.Index, r.Total),
	}).Info("File delivered")
}

func copyFile(src, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return 0, err
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// Cancel asks the running pipeline to stop at its next checkpoint.
func (c *Console) Cancel() {
	c.cancelled.Store(true)
}

func (c *Console) OnCancelRequested() bool {
	return c.cancelled.Load()
}

// Written returns the paths created so far.
func (c *Console) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// Errors returns the write failures seen so far.
func (c *Console) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}
