package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Library  LibraryConfig  `toml:"library"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains HTTP API configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains catalog store configuration
type DatabaseConfig struct {
	Path                    string `toml:"path"`
	MaxConnections          int    `toml:"max_connections"`
	BusyTimeoutMs           int    `toml:"busy_timeout_ms"`
	BusyRetries             int    `toml:"busy_retries"`
	ResetOnMigrationFailure bool   `toml:"reset_on_migration_failure"`
}

// LibraryConfig contains media library and scanning configuration
type LibraryConfig struct {
	Roots                []string `toml:"roots"`
	AudioFormats         []string `toml:"audio_formats"`
	VideoFormats         []string `toml:"video_formats"`
	ImageFormats         []string `toml:"image_formats"`
	ArtworkDir           string   `toml:"artwork_dir"`
	WatchForChanges      bool     `toml:"watch_for_changes"`
	WatchRemovals        bool     `toml:"watch_removals"`
	ScanOnStartup        bool     `toml:"scan_on_startup"`
	ScanWorkers          int      `toml:"scan_workers"`
	ScanBatchSize        int      `toml:"scan_batch_size"`
	PreserveFavorites    bool     `toml:"preserve_favorites"`
	TransientURIPrefixes []string `toml:"transient_uri_prefixes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "127.0.0.1",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path:                    "./mediaplus.db",
			MaxConnections:          4,
			BusyTimeoutMs:           5000,
			BusyRetries:             3,
			ResetOnMigrationFailure: true,
		},
		Library: LibraryConfig{
			Roots:             []string{"./media"},
			AudioFormats:      []string{".mp3", ".flac", ".wav", ".m4a", ".ogg"},
			VideoFormats:      []string{".mp4", ".m4v", ".mov", ".mkv", ".webm", ".avi"},
			ImageFormats:      []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
			ArtworkDir:        "./artwork",
			WatchForChanges:   false,
			WatchRemovals:     false,
			ScanOnStartup:     true,
			ScanWorkers:       4,
			ScanBatchSize:     500,
			PreserveFavorites: true,
			TransientURIPrefixes: []string{
				"content://com.android.externalstorage.documents/",
				"content://com.android.providers.media.documents/",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   false,
		},
	}
}

// LoadConfig loads configuration from a TOML file, then applies environment
// overrides (optionally sourced from a .env file next to the working dir).
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides selected settings from MEDIAPLUS_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("MEDIAPLUS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("MEDIAPLUS_LIBRARY_ROOTS"); v != "" {
		var roots []string
		for _, root := range strings.Split(v, string(os.PathListSeparator)) {
			if root = strings.TrimSpace(root); root != "" {
				roots = append(roots, root)
			}
		}
		c.Library.Roots = roots
	}
	if v := getenv("MEDIAPLUS_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("MEDIAPLUS_SERVER_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("MEDIAPLUS_SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Library.ScanWorkers = n
		}
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# mediaplus configuration
# Library roots are scanned for audio and video files; the catalog lives in the
# SQLite database configured under [database].

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Database.BusyTimeoutMs < 0 {
		return fmt.Errorf("database busy timeout cannot be negative")
	}
	if c.Database.BusyRetries < 1 {
		return fmt.Errorf("database busy retries must be at least 1")
	}

	if len(c.Library.Roots) == 0 {
		return fmt.Errorf("at least one library root must be specified")
	}
	if len(c.Library.AudioFormats) == 0 && len(c.Library.VideoFormats) == 0 {
		return fmt.Errorf("at least one audio or video format must be specified")
	}
	for _, formats := range [][]string{c.Library.AudioFormats, c.Library.VideoFormats, c.Library.ImageFormats} {
		for _, f := range formats {
			if !strings.HasPrefix(f, ".") {
				return fmt.Errorf("invalid format %q (must start with a dot)", f)
			}
		}
	}
	if c.Library.ScanWorkers < 1 {
		return fmt.Errorf("scan workers must be at least 1")
	}
	if c.Library.ScanBatchSize < 1 {
		return fmt.Errorf("scan batch size must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}
