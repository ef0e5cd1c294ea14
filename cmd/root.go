package cmd

import (
	"fmt"
	"os"

	"clipdeck/board"
	"clipdeck/config"
	"clipdeck/logger"
	"clipdeck/tui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "clipdeck",
	Short: "A terminal soundboard",
	Long: `Clipdeck is a terminal soundboard. It loads a catalog of short audio clips
and plays them through the default output device, with overlapping spam
playback, looping, live progress and a spectrum meter.

Clips come from a TOML catalog or a plain directory of audio files, and the
catalog reloads automatically when it changes on disk.`,
	RunE: runBoard,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./clipdeck.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Flags shared by every command
	rootCmd.PersistentFlags().StringP("catalog", "c", "clips.toml", "clip catalog file or sample directory")
	rootCmd.PersistentFlags().Float64("volume", 1.0, "master volume (0.0 to 1.0)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "log file (defaults to clipdeck.log while the UI runs)")

	// Local flags for the board UI
	rootCmd.Flags().Int("frame-rate", 60, "progress updates per second")
	rootCmd.Flags().Bool("preload", false, "decode every catalog clip at startup")
	rootCmd.Flags().Bool("mute", false, "start with the output muted")

	// Bind flags to viper
	viper.BindPFlag("board.catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	viper.BindPFlag("audio.volume", rootCmd.PersistentFlags().Lookup("volume"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("board.frame_rate", rootCmd.Flags().Lookup("frame-rate"))
	viper.BindPFlag("board.preload", rootCmd.Flags().Lookup("preload"))
	viper.BindPFlag("audio.mute", rootCmd.Flags().Lookup("mute"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// runBoard starts the soundboard UI
func runBoard(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// The UI owns the terminal, so logs go to a file by default
	if cfg.Logging.File == "" {
		cfg.Logging.File = "clipdeck.log"
	}
	closeLogs, err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closeLogs()

	// Create and initialize the board
	b := board.New(cfg)
	if err := b.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize board: %w", err)
	}

	// Start background operations
	if err := b.Start(); err != nil {
		return fmt.Errorf("failed to start board: %w", err)
	}

	uiErr := tui.Run(b)

	// Graceful shutdown
	if err := b.Stop(); err != nil {
		return fmt.Errorf("failed to stop board gracefully: %w", err)
	}

	return uiErr
}
