// Package board assembles the soundboard: the clip catalog, the audio
// engine and the playback manager, with catalog hot reload on top.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipdeck/audio"
	"clipdeck/catalog"
	"clipdeck/config"
	"clipdeck/logger"
	"clipdeck/playback"
)

// ErrUnknownClip is returned when a key is not in the catalog.
var ErrUnknownClip = errors.New("unknown clip")

// Board represents the assembled soundboard
type Board struct {
	config  *config.Config
	engine  *audio.Engine
	manager *playback.Manager
	logger  *slog.Logger

	mu      sync.RWMutex
	catalog *catalog.Catalog
	reloads chan *catalog.Catalog

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new Board instance
func New(cfg *config.Config) *Board {
	ctx, cancel := context.WithCancel(context.Background())

	return &Board{
		config:  cfg,
		logger:  logger.WithComponent("board"),
		reloads: make(chan *catalog.Catalog, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Initialize sets up the board components: the output device first, then
// the manager playing through it, then the catalog.
func (b *Board) Initialize() error {
	b.logger.Info("Initializing board...")

	engine, err := audio.NewEngine(audio.Config{
		SampleRate: b.config.Audio.SampleRate,
		Buffer:     time.Duration(b.config.Audio.BufferMS) * time.Millisecond,
		Volume:     b.config.Audio.Volume,
		Mute:       b.config.Audio.Mute,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio engine: %w", err)
	}
	b.engine = engine

	interval := time.Second / time.Duration(b.config.Board.FrameRate)
	b.manager = playback.New(engine,
		playback.WithScheduler(playback.NewFrameScheduler(interval)),
		playback.WithLogger(logger.WithComponent("playback")))

	cat, err := catalog.Open(b.config.Board.Catalog)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	b.catalog = cat

	b.logger.Info("Board initialized successfully", slog.Int("clips", cat.Len()))
	return nil
}

// Start begins background operations: catalog hot reload and, when
// configured, decoding the whole catalog ahead of playback.
func (b *Board) Start() error {
	b.logger.Info("Starting board operations...")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := catalog.Watch(b.ctx, b.config.Board.Catalog, b.swap)
		if err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Warn("Catalog watching stopped", slog.Any("error", err))
		}
	}()

	if b.config.Board.Preload {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			n := b.engine.Preload(b.ctx, b.Catalog().Sources())
			b.logger.Info("Catalog preloaded", slog.Int("clips", n))
		}()
	}

	b.logger.Info("Board started successfully")
	return nil
}

// Stop gracefully shuts down the board: background work first, playback
// after, the output device last.
func (b *Board) Stop() error {
	b.logger.Info("Stopping board...")

	b.cancel()
	b.wg.Wait()
	b.stopOnce.Do(func() { close(b.reloads) })

	if b.manager != nil {
		if err := b.manager.Close(); err != nil {
			b.logger.Error("Failed to close playback manager", slog.Any("error", err))
		}
	}
	if b.engine != nil {
		if err := b.engine.Close(); err != nil {
			b.logger.Error("Failed to close audio engine", slog.Any("error", err))
		}
	}

	b.logger.Info("Board stopped")
	return nil
}

// ToggleKey toggles the catalog clip named key.
func (b *Board) ToggleKey(ctx context.Context, key string, opts playback.Options) error {
	clip, ok := b.Catalog().Get(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClip, key)
	}
	return b.manager.Toggle(ctx, clip.PlaybackClip(), opts)
}

// Catalog returns the current catalog snapshot. Hot reloads swap the whole
// catalog, so callers hold a consistent view for as long as they keep it.
func (b *Board) Catalog() *catalog.Catalog {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.catalog
}

// Manager exposes the playback manager to consumers.
func (b *Board) Manager() *playback.Manager {
	return b.manager
}

// Engine exposes the audio engine.
func (b *Board) Engine() *audio.Engine {
	return b.engine
}

// Reloads delivers catalogs published by hot reload. The channel holds the
// latest catalog only and closes when the board stops.
func (b *Board) Reloads() <-chan *catalog.Catalog {
	return b.reloads
}

// swap publishes a freshly loaded catalog.
func (b *Board) swap(c *catalog.Catalog) {
	b.mu.Lock()
	b.catalog = c
	b.mu.Unlock()

	// Keep only the latest catalog in the notification channel.
	select {
	case <-b.reloads:
	default:
	}
	b.reloads <- c
}
