package cmd

import (
	"fmt"
	"log/slog"

	"clipdeck/config"
	"clipdeck/logger"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing and validating clipdeck configuration.",
}

// configValidateCmd validates the current configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the current configuration file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging for validation
		if _, err := logger.Setup("info", "text", ""); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		// Validate configuration
		if err := cfg.Validate(); err != nil {
			slog.Error("Configuration validation failed", slog.Any("error", err))
			return err
		}

		slog.Info("Configuration is valid")
		fmt.Println("✅ Configuration is valid")
		return nil
	},
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration values from file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging
		if _, err := logger.Setup("info", "text", ""); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Println("Current Configuration:")
		fmt.Printf("  Audio:\n")
		fmt.Printf("    Sample rate: %d Hz\n", cfg.Audio.SampleRate)
		fmt.Printf("    Buffer: %d ms\n", cfg.Audio.BufferMS)
		fmt.Printf("    Volume: %.2f\n", cfg.Audio.Volume)
		fmt.Printf("    Mute: %t\n", cfg.Audio.Mute)
		fmt.Printf("  Board:\n")
		fmt.Printf("    Catalog: %s\n", cfg.Board.Catalog)
		fmt.Printf("    Frame rate: %d\n", cfg.Board.FrameRate)
		fmt.Printf("    Preload: %t\n", cfg.Board.Preload)
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level: %s\n", cfg.Logging.Level)
		fmt.Printf("    Format: %s\n", cfg.Logging.Format)
		fmt.Printf("    File: %s\n", displayPath(cfg.Logging.File))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

// displayPath substitutes a readable placeholder for an unset path
func displayPath(path string) string {
	if path == "" {
		return "(stdout)"
	}
	return path
}
