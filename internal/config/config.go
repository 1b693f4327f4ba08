package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// TokenEnvVar is consulted when generation.api_token is left empty
const TokenEnvVar = "DIETER_API_TOKEN"

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Store      StoreConfig      `toml:"store"`
	Credits    CreditsConfig    `toml:"credits"`
	Generation GenerationConfig `toml:"generation"`
	Mixer      MixerConfig      `toml:"mixer"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// StoreConfig controls where the ledger snapshot lives
type StoreConfig struct {
	Path string `toml:"path"`
	Name string `toml:"name"`
}

// CreditsConfig contains the credit account and per-action costs
type CreditsConfig struct {
	Initial     int    `toml:"initial"`
	Max         int    `toml:"max"`
	Policy      string `toml:"policy"` // "allow" clamps at zero, "block" rejects when short
	MusicCost   int    `toml:"music_cost"`
	LyricsCost  int    `toml:"lyrics_cost"`
	VideoCost   int    `toml:"video_cost"`
	StemsCost   int    `toml:"stems_cost"`
	RechargeMax int    `toml:"recharge_max"`
}

// GenerationConfig contains the external generation back end settings
type GenerationConfig struct {
	BaseURL          string   `toml:"base_url"`
	APIToken         string   `toml:"api_token"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
	MaxUploadMB      int64    `toml:"max_upload_mb"`
	SupportedFormats []string `toml:"supported_formats"`
}

// MixerConfig contains playback settings
type MixerConfig struct {
	DefaultGain     int   `toml:"default_gain"`
	MaxMediaMB      int64 `toml:"max_media_mb"`
	ProbeCacheMin   int   `toml:"probe_cache_minutes"`
	FetchTimeoutSec int   `toml:"fetch_timeout_seconds"` // media loading only, independent of generation
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
	WatchConfig    bool   `toml:"watch_config"` // re-apply the log level when the file changes
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
		Store: StoreConfig{
			Path: "./dieter.db",
			Name: "dieter-pro-store",
		},
		Credits: CreditsConfig{
			Initial:     650,
			Max:         1000,
			Policy:      "allow",
			MusicCost:   10,
			LyricsCost:  5,
			VideoCost:   20,
			StemsCost:   15,
			RechargeMax: 10000,
		},
		Generation: GenerationConfig{
			BaseURL:          "",
			APIToken:         "",
			TimeoutSeconds:   300,
			MaxUploadMB:      50,
			SupportedFormats: []string{".mp3", ".wav", ".flac", ".m4a", ".ogg"},
		},
		Mixer: MixerConfig{
			DefaultGain:     80,
			MaxMediaMB:      100,
			ProbeCacheMin:   15,
			FetchTimeoutSec: 30,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
			WatchConfig:    true,
		},
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		cfg.applyEnv()
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv fills the API token from .env or the process environment when
// the file leaves it empty.
func (c *Config) applyEnv() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
		}
	}
	if c.Generation.APIToken == "" {
		c.Generation.APIToken = os.Getenv(TokenEnvVar)
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

	header := `# Dieter Pro Workstation Configuration
# Generation back end credentials may be supplied through DIETER_API_TOKEN
# (a .env file in the working directory is loaded automatically).

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	// Never write a token that only came from the environment
	out := *c
	if os.Getenv(TokenEnvVar) == out.Generation.APIToken {
		out.Generation.APIToken = ""
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(out); err != nil {
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

	if c.Store.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if c.Store.Name == "" {
		return fmt.Errorf("store name cannot be empty")
	}

	if c.Credits.Initial < 0 {
		return fmt.Errorf("initial credits cannot be negative")
	}
	if c.Credits.Max < 1 {
		return fmt.Errorf("credit display maximum must be at least 1")
	}
	if c.Credits.Policy != "allow" && c.Credits.Policy != "block" {
		return fmt.Errorf("invalid credit policy: %s (must be allow or block)", c.Credits.Policy)
	}
	for name, cost := range map[string]int{
		"music": c.Credits.MusicCost, "lyrics": c.Credits.LyricsCost,
		"video": c.Credits.VideoCost, "stems": c.Credits.StemsCost,
	} {
		if cost < 0 {
			return fmt.Errorf("%s cost cannot be negative", name)
		}
	}

	if c.Generation.TimeoutSeconds < 1 {
		return fmt.Errorf("generation timeout must be at least 1 second")
	}
	if c.Generation.MaxUploadMB < 1 {
		return fmt.Errorf("max upload size must be at least 1 MB")
	}
	if len(c.Generation.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}

	if c.Mixer.DefaultGain < 0 || c.Mixer.DefaultGain > 100 {
		return fmt.Errorf("default gain must be between 0 and 100")
	}
	if c.Mixer.MaxMediaMB < 1 {
		return fmt.Errorf("max media size must be at least 1 MB")
	}
	if c.Mixer.FetchTimeoutSec < 1 {
		return fmt.Errorf("mixer fetch timeout must be at least 1 second")
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

// IsFormatSupported checks if an upload extension is accepted
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Generation.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}

// MaxUploadBytes returns the stem upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Generation.MaxUploadMB * 1024 * 1024
}
