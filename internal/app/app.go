// Package app wires configuration into the delivery pipeline and its hosts.
package app

import (
	"github.com/NikitaDmitryuk/libria-media-server/internal/catalog"
	"github.com/NikitaDmitryuk/libria-media-server/internal/config"
	"github.com/NikitaDmitryuk/libria-media-server/internal/database"
	"github.com/NikitaDmitryuk/libria-media-server/internal/delivery"
	"github.com/NikitaDmitryuk/libria-media-server/internal/downloader/monitor"
	"github.com/NikitaDmitryuk/libria-media-server/internal/downloader/qbittorrent"
	"github.com/NikitaDmitryuk/libria-media-server/internal/janitor"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/process"
	"github.com/NikitaDmitryuk/libria-media-server/internal/timeutil"
	"github.com/NikitaDmitryuk/libria-media-server/internal/transcode"
	"github.com/NikitaDmitryuk/libria-media-server/internal/utils"
)

// App holds the long-lived components shared by every command.
type App struct {
	Config   *config.Config
	DB       database.Database
	Manager  *qbittorrent.Manager
	Pipeline *delivery.Pipeline
	Catalog  *catalog.Client
	Janitor  *janitor.Janitor
}

// New builds the component graph from cfg. Close releases the journal.
func New(cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, utils.WrapError(err, "failed to open delivery journal", map[string]any{"path": cfg.DBPath})
	}

	client, err := qbittorrent.NewClient(cfg.QBittorrent.URL, cfg.QBittorrent.Username, cfg.QBittorrent.Password)
	if err != nil {
		_ = db.Close()
		return nil, utils.WrapError(err, "failed to create qBittorrent client", nil)
	}
	manager := qbittorrent.NewManager(client, cfg.QBittorrent.SavePath, cfg.QBittorrent.Sequential)

	clock := timeutil.NewSystemClock()
	mon := monitor.New(manager, clock, monitor.Config{
		Interval:            cfg.Monitor.PollInterval,
		FailureThreshold:    cfg.Monitor.PollFailureThreshold,
		RegistrationTimeout: cfg.Monitor.RegistrationTimeout,
	})
	transcoder := transcode.New(process.NewOSRunner(), cfg.Transcode.FFmpegPath, cfg.Transcode.WorkDir, transcode.Profile{
		VideoBitrate: cfg.Transcode.VideoBitrate,
		AudioBitrate: cfg.Transcode.AudioBitrate,
		Preset:       cfg.Transcode.Preset,
	})
	pipeline := delivery.New(manager, transcoder, mon, db, delivery.Options{
		SizeCeiling:    cfg.Transcode.SizeCeiling,
		KeepTranscoded: cfg.Transcode.KeepTranscoded,
	})

	logutils.Log.WithFields(map[string]any{
		"qbittorrent":  cfg.QBittorrent.URL,
		"db":           cfg.DBPath,
		"size_ceiling": cfg.Transcode.SizeCeiling,
	}).Info("Application components initialized")

	return &App{
		Config:   cfg,
		DB:       db,
		Manager:  manager,
		Pipeline: pipeline,
		Catalog:  catalog.NewClient(cfg.CatalogURL),
		Janitor:  janitor.New(db, manager, clock, cfg.Janitor.MinAge),
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
