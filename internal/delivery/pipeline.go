// Package delivery turns a submitted torrent into a sequence of delivered files.
package delivery

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/database"
	"github.com/NikitaDmitryuk/libria-media-server/internal/downloader/monitor"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/metrics"
	"github.com/sirupsen/logrus"
)

const removeTimeout = 30 * time.Second

type Options struct {
	// SizeCeiling is the largest transcoded artifact that is delivered.
	SizeCeiling int64
	// KeepTranscoded leaves artifacts in the work directory after delivery.
	KeepTranscoded bool
}

// Request identifies what to acquire. ContentHash may be empty for magnet locators.
type Request struct {
	Locator     string
	ContentHash string
	Title       string
	ChatID      int64
}

// Result is what Run reports back to its caller once the observer has seen the
// terminal event.
type Result struct {
	DeliveryID string
	Summary    domain.DeliverySummary
	Err        error
}

type Pipeline struct {
	manager    domain.DownloadManager
	transcoder domain.Transcoder
	monitor    *monitor.Monitor
	journal    database.DeliveryWriter
	opts       Options
}

func New(
	manager domain.DownloadManager,
	transcoder domain.Transcoder,
	mon *monitor.Monitor,
	journal database.DeliveryWriter,
	opts Options,
) *Pipeline {
	if journal == nil {
		journal = noopJournal{}
	}
	return &Pipeline{
		manager:    manager,
		transcoder: transcoder,
		monitor:    mon,
		journal:    journal,
		opts:       opts,
	}
}

// run carries the per-invocation state. A Pipeline is shared by concurrent runs.
type run struct {
	p        *Pipeline
	obs      domain.Observer
	id       string
	log      *logrus.Entry
	fraction float64
	summary  domain.DeliverySummary
	finished bool
}

func (r *run) emit(phase domain.Phase, fraction float64, detail string) {
	if r.finished {
		return
	}
	r.fraction = fraction
	event := domain.ProgressEvent{Fraction: fraction, Phase: phase, Detail: detail}
	if phase.IsTerminal() {
		r.finished = true
		summary := r.summary
		event.Summary = &summary
	}
	r.obs.OnProgress(event)
}

func (r *run) fail(ctx context.Context, err error) Result {
	outcome := metrics.OutcomeFailed
	if stderrors.Is(err, errors.ErrCancelled) {
		outcome = metrics.OutcomeCancelled
	}
	r.log.WithError(err).Warn("Delivery failed")
	r.emit(domain.PhaseFailed, r.fraction, errors.UserMessage(err))
	metrics.RecordPipelineRun(outcome)
	r.journalErr(r.p.journal.FinishDelivery(context.WithoutCancel(ctx), r.id, database.DeliveryFailed, r.summary, err.Error()))
	return Result{DeliveryID: r.id, Summary: r.summary, Err: err}
}

func (r *run) journalErr(err error) {
	if err != nil {
		r.log.WithError(err).Warn("Failed to update delivery journal")
	}
}

// monitorListener adapts the observer to the monitor's callbacks.
type monitorListener struct{ r *run }

func (l monitorListener) OnPoll(fraction float64) {
	l.r.emit(domain.PhaseDownloading, fraction, "")
}

func (l monitorListener) CancelRequested() bool {
	return l.r.obs.OnCancelRequested()
}

// Run executes one delivery. The observer receives exactly one terminal event
// (done or failed) and nothing after it.
func (p *Pipeline) Run(ctx context.Context, req Request, obs domain.Observer) Result {
	r := &run{p: p, obs: obs}

	d := &database.Delivery{ChatID: req.ChatID, Title: req.Title, Locator: req.Locator, ContentHash: req.ContentHash}
	if err := p.journal.BeginDelivery(ctx, d); err != nil {
		logutils.Log.WithError(err).Warn("Failed to add delivery to journal")
	}
	r.id = d.ID
	r.log = logutils.Log.WithFields(logrus.Fields{"delivery_id": r.id, "chat_id": req.ChatID})

	handle, err := p.manager.Submit(ctx, req.Locator, req.ContentHash)
	if err != nil {
		return r.fail(ctx, err)
	}
	if handle.Name == "" {
		handle.Name = req.Title
	}
	r.log = r.log.WithField("hash", handle.ContentHash)
	r.journalErr(p.journal.MarkSubmitted(ctx, r.id, handle.ContentHash))

	handle, err = p.monitor.Run(ctx, handle, monitorListener{r: r})
	if err != nil {
		// the registration stays on the manager; the janitor may sweep it later
		return r.fail(ctx, err)
	}
	r.journalErr(p.journal.MarkSeeded(ctx, r.id))

	files, err := p.manager.ListFiles(ctx, handle)
	if err != nil {
		return r.fail(ctx, err)
	}
	domain.SortMediaFiles(files)
	r.log.WithField("files", len(files)).Info("Download complete, delivering files")

	total := len(files)
	for i, file := range files {
		if ctx.Err() != nil {
			return r.fail(ctx, errors.Wrap(ctx.Err(), errors.ErrCancelled, ""))
		}
		if obs.OnCancelRequested() {
			return r.fail(ctx, errors.New(errors.ErrCancelled, ""))
		}

		position := float64(i) / float64(total)
		r.emit(domain.PhaseTranscoding, position, file.RelativeName)
		result := p.processFile(ctx, r.log, file, i+1, total)

		r.summary.Add(result.Variant)
		metrics.RecordFileDelivered(result.Variant)
		r.journalErr(p.journal.RecordFile(ctx, r.id, result))

		if result.Variant == domain.VariantFailed {
			r.log.WithError(result.Err).WithField("file", file.RelativeName).Warn("Skipping unreadable file")
			continue
		}

		r.emit(domain.PhaseDelivering, position, file.RelativeName)
		obs.OnFileDelivered(result)

		if result.Variant == domain.VariantTranscoded && !p.opts.KeepTranscoded {
			if rmErr := os.Remove(result.OutputPath); rmErr != nil && !os.IsNotExist(rmErr) {
				r.log.WithError(rmErr).WithField("path", result.OutputPath).Warn("Failed to remove transcoded file")
			}
		}
	}

	removeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()
	if err := p.manager.Remove(removeCtx, handle); err != nil {
		r.log.WithError(err).Warn("Failed to remove download from manager")
	} else {
		r.journalErr(p.journal.MarkRemoved(removeCtx, r.id))
	}

	r.emit(domain.PhaseDone, 1, "")
	metrics.RecordPipelineRun(metrics.OutcomeDone)
	r.journalErr(p.journal.FinishDelivery(removeCtx, r.id, database.DeliveryDone, r.summary, ""))
	r.log.WithFields(logrus.Fields{
		"transcoded": r.summary.Transcoded,
		"original":   r.summary.Original,
		"failed":     r.summary.Failed,
	}).Info("Delivery finished")

	return Result{DeliveryID: r.id, Summary: r.summary}
}

// processFile picks the variant for one file: the transcoded artifact when it
// fits the ceiling, otherwise the original if it can be read.
func (p *Pipeline) processFile(ctx context.Context, log *logrus.Entry, file domain.MediaFile, index, total int) domain.DeliveryResult {
	result := domain.DeliveryResult{
		File:    file,
		Caption: filepath.Base(file.RelativeName),
		Index:   index,
		Total:   total,
	}

	// a started transcode always runs to completion; cancellation is honoured between files
	out, err := p.transcoder.Compress(context.WithoutCancel(ctx), file.AbsolutePath, p.opts.SizeCeiling)
	if err == nil {
		result.Variant = domain.VariantTranscoded
		result.OutputPath = out
		return result
	}
	log.WithError(err).WithField("file", file.RelativeName).Info("Transcode unavailable, falling back to original")

	f, openErr := os.Open(file.AbsolutePath)
	if openErr != nil {
		result.Variant = domain.VariantFailed
		result.Err = errors.Wrap(openErr, errors.ErrFileUnreadable, "")
		return result
	}
	_ = f.Close()

	result.Variant = domain.VariantOriginal
	result.OutputPath = file.AbsolutePath
	result.Err = err
	return result
}
