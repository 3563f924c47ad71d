package config

// Config is the optional tunables file (JSON or YAML). Credentials never live
// here; they come from the environment (see env.go).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Practicum PracticumConfig   `json:"practicum"`
	Telegram  TelegramConfig    `json:"telegram"`
	Poll      PollConfig        `json:"poll"`
	Notifier  NotifierConfig    `json:"notifier"`
	Statuses  map[string]string `json:"statuses,omitempty"`
	Logging   LoggingConfig     `json:"logging"`
	Debug     DebugConfig       `json:"debug"`
}

type PracticumConfig struct {
	// Endpoint defaults to the public homework statuses API.
	Endpoint       string `json:"endpoint,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type TelegramConfig struct {
	RequestTimeout string `json:"request_timeout,omitempty"`
	// ThreadID targets a forum topic inside the destination chat.
	ThreadID int `json:"thread_id,omitempty"`
	// APIURL overrides the Bot API base URL (local bot API server).
	APIURL string `json:"api_url,omitempty"`
}

type PollConfig struct {
	// Interval accepts "10m", "00:10" or "@every 10m". Default 600s.
	Interval string `json:"interval,omitempty"`
}

type NotifierConfig struct {
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	HistorySize int    `json:"history_size,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// DebugConfig controls the optional metrics/pprof HTTP server.
//
// Security note: prefer binding to localhost (the default).
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9090"
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}
