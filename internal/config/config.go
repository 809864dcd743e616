package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/utils"
	"github.com/dustin/go-humanize"
)

const (
	DefaultPollInterval         = 5 * time.Second
	DefaultPollFailureThreshold = 5
	DefaultRegistrationTimeout  = 2 * time.Minute
	DefaultProgressEditInterval = 3 * time.Second
	DefaultJanitorMinAge        = time.Hour
	DefaultSizeCeiling          = "50MiB"
	DefaultCatalogURL           = "https://anilibria.top/api/v1"
)

type Config struct {
	LogLevel       string
	BotToken       string
	AllowedChatIDs []int64
	DBPath         string
	APIListen      string
	APIKey         string
	CatalogURL     string

	QBittorrent QBittorrentConfig
	Monitor     MonitorConfig
	Transcode   TranscodeConfig
	Janitor     JanitorConfig

	ProgressEditInterval time.Duration
}

type QBittorrentConfig struct {
	URL      string
	Username string
	Password string
	SavePath string

	// Sequential downloads pieces in order with first/last piece priority.
	Sequential bool
}

type MonitorConfig struct {
	PollInterval         time.Duration
	PollFailureThreshold int
	RegistrationTimeout  time.Duration
}

type TranscodeConfig struct {
	FFmpegPath     string
	VideoBitrate   string
	AudioBitrate   string
	Preset         string
	SizeCeiling    int64
	WorkDir        string
	KeepTranscoded bool
}

type JanitorConfig struct {
	Interval time.Duration
	MinAge   time.Duration
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logutils.Log.WithField("key", key).Warn("Ignoring non-integer environment value")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logutils.Log.WithField("key", key).Warn("Ignoring malformed duration environment value")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvBytes accepts human sizes such as "50MiB", "2 GB" or plain byte counts.
// A malformed value yields -1 so validation reports it.
func getEnvBytes(key, defaultValue string) int64 {
	raw := getEnv(key, defaultValue)
	n, err := humanize.ParseBytes(raw)
	if err != nil || n > uint64(1<<62) {
		return -1
	}
	return int64(n)
}

func parseChatIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logutils.Log.WithField("value", part).Warn("Ignoring malformed chat id in ALLOWED_CHAT_IDS")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func NewConfig() (*Config, error) {
	config := &Config{
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		BotToken:       getEnv("BOT_TOKEN", ""),
		AllowedChatIDs: parseChatIDs(getEnv("ALLOWED_CHAT_IDS", "")),
		DBPath:         getEnv("DB_PATH", "deliveries.db"),
		APIListen:      getEnv("API_LISTEN", ":8090"),
		APIKey:         getEnv("API_KEY", ""),
		CatalogURL:     getEnv("CATALOG_URL", DefaultCatalogURL),

		QBittorrent: QBittorrentConfig{
			URL:        getEnv("QBITTORRENT_URL", "http://localhost:8080"),
			Username:   getEnv("QBITTORRENT_USERNAME", "admin"),
			Password:   getEnv("QBITTORRENT_PASSWORD", "adminadmin"),
			SavePath:   getEnv("QBITTORRENT_SAVE_PATH", ""),
			Sequential: getEnvBool("QBITTORRENT_SEQUENTIAL", false),
		},

		Monitor: MonitorConfig{
			PollInterval:         getEnvDuration("POLL_INTERVAL", DefaultPollInterval),
			PollFailureThreshold: getEnvInt("POLL_FAILURE_THRESHOLD", DefaultPollFailureThreshold),
			RegistrationTimeout:  getEnvDuration("REGISTRATION_TIMEOUT", DefaultRegistrationTimeout),
		},

		Transcode: TranscodeConfig{
			FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
			VideoBitrate:   getEnv("TRANSCODE_VIDEO_BITRATE", "1000k"),
			AudioBitrate:   getEnv("TRANSCODE_AUDIO_BITRATE", "128k"),
			Preset:         getEnv("TRANSCODE_PRESET", "veryfast"),
			SizeCeiling:    getEnvBytes("TRANSCODE_SIZE_CEILING", DefaultSizeCeiling),
			WorkDir:        getEnv("TRANSCODE_WORK_DIR", filepath.Join(os.TempDir(), "libria-transcode")),
			KeepTranscoded: getEnvBool("KEEP_TRANSCODED", false),
		},

		Janitor: JanitorConfig{
			Interval: getEnvDuration("JANITOR_INTERVAL", 0),
			MinAge:   getEnvDuration("JANITOR_MIN_AGE", DefaultJanitorMinAge),
		},

		ProgressEditInterval: getEnvDuration("PROGRESS_EDIT_INTERVAL", DefaultProgressEditInterval),
	}

	if err := config.validate(); err != nil {
		return nil, utils.WrapError(err, "configuration validation failed", map[string]any{
			"qbittorrent_url": config.QBittorrent.URL,
		})
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := c.validateQBittorrent(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateJanitor(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQBittorrent() error {
	var missingFields []string
	if c.QBittorrent.URL == "" {
		missingFields = append(missingFields, "QBITTORRENT_URL")
	}
	if c.QBittorrent.Username == "" {
		missingFields = append(missingFields, "QBITTORRENT_USERNAME")
	}
	if len(missingFields) > 0 {
		return utils.WrapError(utils.ErrConfigurationError, "missing required environment variables", map[string]any{
			"missing_fields": missingFields,
		})
	}
	if !strings.HasPrefix(c.QBittorrent.URL, "http://") && !strings.HasPrefix(c.QBittorrent.URL, "https://") {
		return utils.WrapError(utils.ErrConfigurationError, "QBITTORRENT_URL must be an http(s) URL", map[string]any{
			"value": c.QBittorrent.URL,
		})
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.PollInterval <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "poll interval must be positive", nil)
	}
	if c.Monitor.PollFailureThreshold < 0 {
		return utils.WrapError(utils.ErrConfigurationError, "poll failure threshold cannot be negative", nil)
	}
	if c.Monitor.RegistrationTimeout <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "registration timeout must be positive", nil)
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.SizeCeiling <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "TRANSCODE_SIZE_CEILING must be a positive size", nil)
	}
	if c.Transcode.FFmpegPath == "" {
		return utils.WrapError(utils.ErrConfigurationError, "FFMPEG_PATH cannot be empty", nil)
	}
	if c.Transcode.WorkDir == "" {
		return utils.WrapError(utils.ErrConfigurationError, "TRANSCODE_WORK_DIR cannot be empty", nil)
	}
	return nil
}

func (c *Config) validateJanitor() error {
	if c.Janitor.Interval < 0 {
		return utils.WrapError(utils.ErrConfigurationError, "janitor interval cannot be negative", nil)
	}
	if c.Janitor.Interval > 0 && c.Janitor.MinAge <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "janitor min age must be positive", nil)
	}
	return nil
}

// RequireBot checks the settings needed by the Telegram front end.
func (c *Config) RequireBot() error {
	if c.BotToken == "" {
		return utils.WrapError(utils.ErrConfigurationError, "missing required environment variables", map[string]any{
			"missing_fields": []string{"BOT_TOKEN"},
		})
	}
	return nil
}

// ChatAllowed reports whether chatID may start deliveries. An empty allow-list allows everyone.
func (c *Config) ChatAllowed(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
