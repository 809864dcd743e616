// Package monitor polls the download manager until a download completes,
// fails or is cancelled.
package monitor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/metrics"
	"github.com/NikitaDmitryuk/libria-media-server/internal/timeutil"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval            = 5 * time.Second
	DefaultFailureThreshold    = 5
	DefaultRegistrationTimeout = 2 * time.Minute
)

type Config struct {
	Interval time.Duration
	// FailureThreshold is the number of consecutive unreachable polls tolerated;
	// the next one errors the download.
	FailureThreshold    int
	RegistrationTimeout time.Duration
}

// Listener receives the monitor's per-poll output.
type Listener interface {
	// OnPoll is called once for every poll that reached the manager.
	OnPoll(fraction float64)
	// CancelRequested is consulted at every poll boundary.
	CancelRequested() bool
}

type Monitor struct {
	manager domain.DownloadManager
	clock   timeutil.Clock
	cfg     Config
}

func New(manager domain.DownloadManager, clock timeutil.Clock, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FailureThreshold < 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RegistrationTimeout <= 0 {
		cfg.RegistrationTimeout = DefaultRegistrationTimeout
	}
	if clock == nil {
		clock = timeutil.NewSystemClock()
	}
	return &Monitor{manager: manager, clock: clock, cfg: cfg}
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// retryable reports whether a failed poll counts toward the failure threshold
// instead of ending the run. Errors outside the domain taxonomy are retried.
func retryable(err error) bool {
	var de *errors.DomainError
	if !stderrors.As(err, &de) {
		return true
	}
	return de.IsRetryable()
}

// Run drives handle from Submitted to a terminal state. The returned handle
// always carries that state; the error is nil only for Seeding.
func (m *Monitor) Run(ctx context.Context, handle domain.DownloadHandle, l Listener) (domain.DownloadHandle, error) {
	log := logutils.Log.WithField("hash", handle.ContentHash)

	deadline := m.clock.Now().Add(m.cfg.RegistrationTimeout)
	handle.State = domain.StateRegistering
	fraction := clamp(handle.Progress)
	failures := 0

	finish := func(state domain.DownloadState, err error) (domain.DownloadHandle, error) {
		handle.State = state
		handle.Progress = fraction
		if err != nil {
			log.WithError(err).WithField("state", state).Warn("Download monitor stopped")
		} else {
			log.Info("Download complete")
		}
		return handle, err
	}

	for {
		select {
		case <-ctx.Done():
			return finish(domain.StateCancelled, errors.Wrap(ctx.Err(), errors.ErrCancelled, ""))
		case <-m.clock.After(m.cfg.Interval):
		}
		if ctx.Err() != nil {
			return finish(domain.StateCancelled, errors.Wrap(ctx.Err(), errors.ErrCancelled, ""))
		}
		if l.CancelRequested() {
			return finish(domain.StateCancelled, errors.New(errors.ErrCancelled, ""))
		}

		remote, err := m.manager.QueryByHash(ctx, handle.ContentHash)
		switch {
		case err == nil:
			failures = 0
			fraction = max(fraction, clamp(remote.Progress))
			l.OnPoll(fraction)

			if remote.Name != "" {
				handle.Name = remote.Name
			}
			if remote.SavePath != "" {
				handle.SavePath = remote.SavePath
			}
			if handle.State == domain.StateRegistering {
				log.WithField("name", handle.Name).Debug("Download registered with the manager")
			}

			switch {
			case remote.State == domain.StateErrored:
				return finish(domain.StateErrored, errors.New(errors.ErrDownloadErrored, "").
					WithDetails(map[string]any{"hash": handle.ContentHash}))
			case remote.State == domain.StateSeeding || remote.Progress >= 1:
				return finish(domain.StateSeeding, nil)
			}
			handle.State = domain.StateDownloading

		case stderrors.Is(err, errors.ErrNotFound):
			failures = 0
			l.OnPoll(fraction)
			if handle.State == domain.StateDownloading {
				log.Warn("Download disappeared from the manager, still polling")
			}

		case ctx.Err() != nil:
			return finish(domain.StateCancelled, errors.Wrap(ctx.Err(), errors.ErrCancelled, ""))

		case !retryable(err):
			return finish(domain.StateErrored, err)

		default:
			failures++
			metrics.RecordPollFailure()
			log.WithError(err).WithFields(logrus.Fields{
				"consecutive": failures,
				"threshold":   m.cfg.FailureThreshold,
			}).Warn("Progress poll failed")
			if failures > m.cfg.FailureThreshold {
				if !stderrors.Is(err, errors.ErrManagerUnreachable) {
					err = errors.Wrap(err, errors.ErrManagerUnreachable, "")
				}
				return finish(domain.StateErrored, fmt.Errorf("%d consecutive polls failed: %w", failures, err))
			}
		}

		if handle.State == domain.StateRegistering && !m.clock.Now().Before(deadline) {
			return finish(domain.StateErrored, errors.New(errors.ErrRegistrationTimeout, "").
				WithDetails(map[string]any{"timeout": m.cfg.RegistrationTimeout.String()}))
		}
	}
}
