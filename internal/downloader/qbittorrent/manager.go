package qbittorrent

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/sirupsen/logrus"
)

// Remote states that mean every wanted piece is on disk.
var seedingStates = map[string]bool{
	"uploading":  true,
	"stalledUP":  true,
	"pausedUP":   true,
	"stoppedUP":  true,
	"queuedUP":   true,
	"forcedUP":   true,
	"checkingUP": true,
}

var erroredStates = map[string]bool{
	"error":        true,
	"missingFiles": true,
}

// MapState translates a qBittorrent torrent state to the monitor's vocabulary.
func MapState(remote string) domain.DownloadState {
	switch {
	case seedingStates[remote]:
		return domain.StateSeeding
	case erroredStates[remote]:
		return domain.StateErrored
	default:
		return domain.StateDownloading
	}
}

// Manager implements domain.DownloadManager on top of the Web API client.
type Manager struct {
	client   *Client
	savePath string
	// sequential asks qBittorrent to fetch pieces in order, first and last first.
	sequential bool
}

var _ domain.DownloadManager = (*Manager)(nil)

func NewManager(client *Client, savePath string, sequential bool) *Manager {
	return &Manager{client: client, savePath: savePath, sequential: sequential}
}

// ParseLocator returns the lower-case info-hash and display name carried by a magnet URI.
func ParseLocator(locator string) (hash, name string, err error) {
	m, err := metainfo.ParseMagnetUri(locator)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrInvalidInput, "malformed magnet locator")
	}
	return strings.ToLower(m.InfoHash.HexString()), m.DisplayName, nil
}

func (m *Manager) Submit(ctx context.Context, locator, expectedHash string) (domain.DownloadHandle, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return domain.DownloadHandle{}, errors.New(errors.ErrInvalidInput, "empty source locator")
	}

	hash := strings.ToLower(strings.TrimSpace(expectedHash))
	var name string
	if strings.HasPrefix(locator, "magnet:") {
		parsedHash, parsedName, err := ParseLocator(locator)
		switch {
		case err != nil && hash == "":
			return domain.DownloadHandle{}, err
		case err == nil:
			name = parsedName
			if hash == "" {
				hash = parsedHash
			} else if parsedHash != hash {
				logutils.Log.WithFields(logrus.Fields{
					"expected": hash,
					"magnet":   parsedHash,
				}).Warn("Magnet info-hash differs from the supplied hash, using the supplied one")
			}
		}
	}
	if hash == "" {
		return domain.DownloadHandle{}, errors.New(errors.ErrInvalidInput, "content hash is required for non-magnet locators")
	}

	if err := m.client.AddTorrentFromURLs(ctx, locator, &AddTorrentOptions{
		SavePath:           m.savePath,
		SequentialDownload: m.sequential,
		FirstLastPiecePrio: m.sequential,
	}); err != nil {
		var se *StatusError
		if stderrors.As(err, &se) && se.StatusCode == http.StatusUnsupportedMediaType {
			return domain.DownloadHandle{}, errors.Wrap(err, errors.ErrInvalidInput, "manager rejected the locator")
		}
		return domain.DownloadHandle{}, errors.Wrap(err, errors.ErrManagerUnreachable, "")
	}

	logutils.Log.WithFields(logrus.Fields{
		"hash": hash,
		"name": name,
	}).Info("Torrent submitted to qBittorrent")

	return domain.DownloadHandle{
		SourceLocator: locator,
		ContentHash:   hash,
		Name:          name,
		State:         domain.StateSubmitted,
		SavePath:      m.savePath,
	}, nil
}

func (m *Manager) QueryByHash(ctx context.Context, contentHash string) (domain.DownloadHandle, error) {
	hash := strings.ToLower(contentHash)
	list, err := m.client.TorrentsInfo(ctx, hash)
	if err != nil {
		return domain.DownloadHandle{}, errors.Wrap(err, errors.ErrManagerUnreachable, "")
	}
	for i := range list {
		t := &list[i]
		if strings.ToLower(t.Hash) != hash {
			continue
		}
		progress := t.Progress
		if progress < 0 {
			progress = 0
		} else if progress > 1 {
			progress = 1
		}
		return domain.DownloadHandle{
			ContentHash: hash,
			Name:        t.Name,
			State:       MapState(t.State),
			Progress:    progress,
			SavePath:    t.SavePath,
		}, nil
	}
	return domain.DownloadHandle{}, errors.New(errors.ErrNotFound, "").WithDetails(map[string]any{"hash": hash})
}

func (m *Manager) ListFiles(ctx context.Context, handle domain.DownloadHandle) ([]domain.MediaFile, error) {
	if handle.State != domain.StateSeeding {
		return nil, errors.New(errors.ErrInvalidState, "files are listed only once the download is complete").
			WithDetails(map[string]any{"state": string(handle.State)})
	}
	list, err := m.client.TorrentFiles(ctx, handle.ContentHash)
	if err != nil {
		var se *StatusError
		if stderrors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, errors.Wrap(err, errors.ErrNotFound, "")
		}
		return nil, errors.Wrap(err, errors.ErrManagerUnreachable, "")
	}
	files := make([]domain.MediaFile, 0, len(list))
	for _, f := range list {
		files = append(files, domain.NewMediaFile(handle.SavePath, f.Name, f.Size))
	}
	domain.SortMediaFiles(files)
	return files, nil
}

// Remove drops the registration and keeps the downloaded data.
func (m *Manager) Remove(ctx context.Context, handle domain.DownloadHandle) error {
	if err := m.client.DeleteTorrent(ctx, handle.ContentHash, false); err != nil {
		return errors.Wrap(err, errors.ErrRemovalFailed, "").WithDetails(map[string]any{"hash": handle.ContentHash})
	}
	logutils.Log.WithField("hash", handle.ContentHash).Info("Torrent removed from qBittorrent")
	return nil
}
