package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipdeck/board"
	"clipdeck/config"
	"clipdeck/logger"
	"clipdeck/playback"

	"github.com/spf13/cobra"
)

var (
	playLoop bool
	playSpam int
)

// spamStagger spaces out repeated starts so the copies overlap audibly
// instead of stacking into a single louder clip.
const spamStagger = 200 * time.Millisecond

// playCmd plays clips without the UI
var playCmd = &cobra.Command{
	Use:   "play KEY [KEY...]",
	Short: "Play catalog clips without the UI",
	Long: `Play the named catalog clips through the output device and exit when they
finish. Each key starts independently, so several keys play at once.

With --spam, every key is started that many times with a short gap between
starts, overlapping like rapid presses on the board. With --loop, playback
repeats until interrupted with Ctrl-C.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&playLoop, "loop", false, "loop the clips until interrupted")
	playCmd.Flags().IntVar(&playSpam, "spam", 1, "overlapping instances to start per clip")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	if playSpam < 1 {
		return fmt.Errorf("spam count must be at least 1")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
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

	keys := uniqueKeys(args)
	opts := playback.Options{Spam: true, Loop: playLoop}

	// An ended event fires whenever a key's last instance finishes, so
	// subscribe before anything starts.
	mgr := b.Manager()
	subs := make(map[string]*playback.Subscription, len(keys))
	for _, key := range keys {
		subs[key] = mgr.On(playback.EventEnded, key)
	}

	started := make([]string, 0, len(keys))
	for _, key := range keys {
		ok := false
		for i := 0; i < playSpam; i++ {
			if i > 0 {
				time.Sleep(spamStagger)
			}
			if err := b.ToggleKey(cmd.Context(), key, opts); err != nil {
				fmt.Printf("Cannot play %s: %v\n", key, err)
				break
			}
			ok = true
		}
		if ok {
			started = append(started, key)
			fmt.Printf("Playing %s\n", key)
		}
	}
	if len(started) == 0 {
		b.Stop()
		return fmt.Errorf("no clips played")
	}

	// Setup graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// A short clip can end between staggered starts, so an ended event only
	// counts once the key is idle. Stopping the board closes the
	// subscriptions, so this never outlives the signal path below.
	done := make(chan struct{})
	go func() {
		for _, key := range started {
			for range subs[key].C {
				if !mgr.IsPlaying(key) {
					break
				}
			}
		}
		close(done)
	}()

	// Wait for the clips to finish or for a shutdown signal
	select {
	case sig := <-signalChan:
		fmt.Printf("\nReceived %s, shutting down gracefully...\n", sig)
	case <-done:
	}

	// Graceful shutdown
	if err := b.Stop(); err != nil {
		return fmt.Errorf("failed to stop board gracefully: %w", err)
	}

	return nil
}

// uniqueKeys drops repeated keys while keeping the order of first mention.
func uniqueKeys(args []string) []string {
	seen := make(map[string]bool, len(args))
	keys := make([]string, 0, len(args))
	for _, key := range args {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}
