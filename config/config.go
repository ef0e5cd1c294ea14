package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Audio output configuration
	Audio AudioConfig `mapstructure:"audio"`

	// Board configuration
	Board BoardConfig `mapstructure:"board"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// AudioConfig holds output device and gain configuration
type AudioConfig struct {
	SampleRate int     `mapstructure:"sample_rate"`
	BufferMS   int     `mapstructure:"buffer_ms"`
	Volume     float64 `mapstructure:"volume"`
	Mute       bool    `mapstructure:"mute"`
}

// BoardConfig locates the clip catalog and tunes the board
type BoardConfig struct {
	// Catalog is a TOML document or a directory of audio files
	Catalog string `mapstructure:"catalog"`

	// FrameRate is how many progress updates fire per second
	FrameRate int `mapstructure:"frame_rate"`

	// Preload decodes the whole catalog at startup
	Preload bool `mapstructure:"preload"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
	File   string `mapstructure:"file"`   // log destination while the TUI owns the terminal
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	// Set defaults
	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.buffer_ms", 100)
	viper.SetDefault("audio.volume", 1.0)
	viper.SetDefault("audio.mute", false)
	viper.SetDefault("board.catalog", "clips.toml")
	viper.SetDefault("board.frame_rate", 60)
	viper.SetDefault("board.preload", false)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.file", "")

	// Read config file; the format follows the found file's extension
	viper.SetConfigName("clipdeck")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.clipdeck")
	viper.AddConfigPath("/etc/clipdeck")

	// Allow environment variables, e.g. CLIPDECK_AUDIO_VOLUME
	viper.AutomaticEnv()
	viper.SetEnvPrefix("CLIPDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks that the configuration can drive the audio engine and
// the board
func (c *Config) Validate() error {
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return &ConfigError{Field: "audio.sample_rate", Message: "must be between 8000 and 192000 Hz"}
	}
	if c.Audio.BufferMS <= 0 || c.Audio.BufferMS > 2000 {
		return &ConfigError{Field: "audio.buffer_ms", Message: "must be between 1 and 2000 milliseconds"}
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return &ConfigError{Field: "audio.volume", Message: "must be between 0.0 and 1.0"}
	}
	if c.Board.Catalog == "" {
		return &ConfigError{Field: "board.catalog", Message: "catalog path is required"}
	}
	if c.Board.FrameRate <= 0 || c.Board.FrameRate > 240 {
		return &ConfigError{Field: "board.frame_rate", Message: "must be between 1 and 240 frames per second"}
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be json or text"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
