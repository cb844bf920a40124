// Package main - bot.go
//
// This file wires every component of the bot together and owns its lifecycle.
//
// Data Directory Layout:
//
//	<data>/config/settings.json     key bindings, resolution
//	<data>/config/bot.toml          loop/OCR/server tuning
//	<data>/config/fish_config.json  fish catalog
//	<data>/images/<resolution>/     cue templates
//	<data>/logs/                    sessions, catches, broken rods, stats.db
//	<data>/debug/log/Debug.log      debug log
//	<data>/debug/frames/            annotated match frames (save_frames)
//
// Goroutines:
//   - Fishing loop (FishingBehavior.Run)
//   - Status server and its publisher
//   - Hotkey hook
//   - Config watcher
//   - Tray refresh (main goroutine blocks in systray.Run)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// Paths resolves the files of a data directory
type Paths struct {
	Root   string
	Config string
	Logs   string
	Images string
	Debug  string
}

// NewPaths returns the layout rooted at root
func NewPaths(root string) Paths {
	return Paths{
		Root:   root,
		Config: filepath.Join(root, "config"),
		Logs:   filepath.Join(root, "logs"),
		Images: filepath.Join(root, "images"),
		Debug:  filepath.Join(root, "debug"),
	}
}

func (p Paths) SettingsFile() string   { return filepath.Join(p.Config, "settings.json") }
func (p Paths) BotConfigFile() string  { return filepath.Join(p.Config, "bot.toml") }
func (p Paths) FishConfigFile() string { return filepath.Join(p.Config, "fish_config.json") }
func (p Paths) CatchLogFile() string   { return filepath.Join(p.Logs, "fishing_log.json") }
func (p Paths) DatabaseFile() string   { return filepath.Join(p.Logs, "stats.db") }
func (p Paths) LogDir() string         { return filepath.Join(p.Debug, "log") }
func (p Paths) FramesDir() string      { return filepath.Join(p.Debug, "frames") }

// resolveDataDir picks the data directory: the flag when given, else the
// executable's directory when it holds images/, else the working directory.
func resolveDataDir(flag string) string {
	if flag != "" {
		return flag
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		if info, err := os.Stat(filepath.Join(dir, "images")); err == nil && info.IsDir() {
			return dir
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// Bot holds every long-lived component.
type Bot struct {
	paths Paths

	cfg   BotConfig
	cfgMu sync.RWMutex

	settings *Settings
	catalog  *FishCatalog
	journal  *Journal
	store    *Store
	status   *SharedStatus
	reader   *TextReader
	analyzer *ImageAnalyzer
	window   *GameWindow
	fishing  *FishingBehavior
	hotkeys  *HotkeyListener
	server   *StatusServer
	watcher  *ConfigWatcher
}

// NewBot creates and initializes a new bot instance with all required components.
//
// Initialization Process:
//  1. Load settings.json and bot.toml (defaults on failure)
//  2. Fix known misspellings in the catch log
//  3. Load the fish catalog (warn on failure)
//  4. Open the journal and the SQLite mirror; close a dangling session
//  5. Create OCR reader, analyzer, actuator, window locator and status
//  6. Create the fishing loop, hotkeys and status server
//
// Notes:
//   - Only the logger must be initialized before calling NewBot
//   - Nothing is started here; Run starts the goroutines
func NewBot(paths Paths) *Bot {
	LogInfo("[INIT] Initializing bot components (data dir %s)", paths.Root)
	b := &Bot{paths: paths}

	settings, err := LoadSettings(paths.SettingsFile())
	if err != nil {
		LogWarn("[CONFIG] Failed to load settings: %v, using defaults", err)
	}
	b.settings = settings

	cfg, err := LoadBotConfig(paths.BotConfigFile())
	if err != nil {
		LogWarn("[CONFIG] Failed to load bot.toml: %v, using defaults", err)
	}
	b.cfg = cfg

	if fixed, err := FixSpelling(paths.CatchLogFile()); err != nil {
		LogWarn("[INIT] Spelling fix failed: %v", err)
	} else if fixed {
		LogInfo("[INIT] Catch log spelling checked")
	}

	b.catalog = NewFishCatalog(paths.FishConfigFile())
	if err := b.catalog.Load(); err != nil {
		LogWarn("[CONFIG] Failed to load fish catalog: %v", err)
	}

	b.journal = NewJournal(paths.Logs)
	if store, err := OpenStore(paths.DatabaseFile()); err != nil {
		LogWarn("[INIT] Stats database unavailable: %v", err)
	} else {
		if _, err := backfillStore(context.Background(), store, b.journal, b.catalog); err != nil {
			LogWarn("[INIT] Stats backfill failed: %v", err)
		}
		b.store = store
		b.journal.AttachStore(store)
	}
	b.journal.CloseDangling()

	b.status = NewSharedStatus()
	b.reader = NewTextReader(cfg.OCR.Language, cfg.OCR.Upscale)
	b.analyzer = NewImageAnalyzer(NewScreenCapturer(), b.reader, paths.Images,
		b.settings.Resolution, NewFrameDumper(paths.FramesDir(), cfg.Debug.SaveFrames))
	b.window = NewGameWindow(func() string { return b.config().Window.Title })

	b.fishing = NewFishingBehavior(FishingDeps{
		Status:  b.status,
		Eyes:    b.analyzer,
		Input:   NewAction(DefaultInputDelay),
		Window:  b.window,
		Journal: b.journal,
		Fish:    b.catalog,
		Keys:    b.settings.Key,
		Config:  FishingConfigFrom(cfg),
	})
	b.hotkeys = NewHotkeyListener(b.status, b.settings.Key)
	b.server = NewStatusServer(b.status, cfg.Server.PublishInterval())

	LogInfo("[INIT] Bot components initialized (%d fish in catalog)", b.catalog.Count())
	return b
}

func (b *Bot) config() BotConfig {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg
}

// Run starts every goroutine and blocks until the tray quits, or until
// SIGINT/SIGTERM with noTray.
func (b *Bot) Run(noTray bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan struct{})
	SafeGo(func() {
		defer close(loopDone)
		b.fishing.Run(ctx)
	})

	if cfg := b.config(); cfg.Server.Enabled {
		SafeGo(func() {
			if err := b.server.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				LogError("[SERVER] Status server failed: %v", err)
			}
		})
	}

	b.hotkeys.Start()
	b.startWatcher(ctx)

	if noTray {
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		LogInfo("Running without tray, press Ctrl+C to exit")
		<-sigCtx.Done()
		stop()
	} else {
		tray := NewTrayApp(b.status, b.fishing.IsActive, b.hotkeyNames, cancel)
		tray.Run()
	}

	cancel()
	select {
	case <-loopDone:
	case <-time.After(5 * time.Second):
		LogWarn("Fishing loop did not exit in time")
	}
	b.Close()
	return nil
}

func (b *Bot) hotkeyNames() (string, string) {
	return b.settings.Key(KeyStart), b.settings.Key(KeyStop)
}

// startWatcher registers the reload handlers for the config directory
func (b *Bot) startWatcher(ctx context.Context) {
	if err := os.MkdirAll(b.paths.Config, 0o755); err != nil {
		LogWarn("[CONFIG] Cannot create config directory: %v", err)
		return
	}
	w, err := NewConfigWatcher(b.paths.Config)
	if err != nil {
		LogWarn("[CONFIG] Hot reload disabled: %v", err)
		return
	}

	w.Handle(filepath.Base(b.paths.FishConfigFile()), func() {
		if err := b.catalog.Load(); err != nil {
			LogWarn("[CONFIG] Fish catalog reload failed: %v", err)
		}
	})
	w.Handle(filepath.Base(b.paths.SettingsFile()), func() {
		if err := b.settings.Reload(); err != nil {
			LogWarn("[CONFIG] Settings reload failed: %v", err)
			return
		}
		b.analyzer.ResetTemplates()
		b.hotkeys.Reload()
	})
	w.Handle(filepath.Base(b.paths.BotConfigFile()), func() {
		cfg, err := LoadBotConfig(b.paths.BotConfigFile())
		if err != nil {
			LogWarn("[CONFIG] bot.toml reload failed: %v", err)
			return
		}
		b.cfgMu.Lock()
		b.cfg = cfg
		b.cfgMu.Unlock()
		b.fishing.SetConfig(FishingConfigFrom(cfg))
	})

	if err := w.Start(ctx); err != nil {
		LogWarn("[CONFIG] Hot reload disabled: %v", err)
		w.Stop()
		return
	}
	b.watcher = w
}

// Close releases every resource; safe after a partial start
func (b *Bot) Close() {
	if b.hotkeys != nil {
		b.hotkeys.Stop()
	}
	if b.watcher != nil {
		b.watcher.Stop()
	}
	if b.analyzer != nil {
		b.analyzer.Close()
	}
	if b.reader != nil {
		b.reader.Close()
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			LogWarn("Failed to close stats database: %v", err)
		}
	}
	LogInfo("Shutdown complete")
}

// openStatsStore opens the database and backfills it from the JSON logs when empty
func openStatsStore(ctx context.Context, paths Paths) (*Store, error) {
	store, err := OpenStore(paths.DatabaseFile())
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	catalog := NewFishCatalog(paths.FishConfigFile())
	if err := catalog.Load(); err != nil {
		LogWarn("[CONFIG] Failed to load fish catalog: %v", err)
	}

	if _, err := backfillStore(ctx, store, NewJournal(paths.Logs), catalog); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// backfillStore imports the JSON logs into an empty store. It must run before
// the journal starts mirroring live records, which would make the store non-empty.
func backfillStore(ctx context.Context, store *Store, journal *Journal, catalog FishLookup) (int, error) {
	n, err := store.ImportJournal(ctx, journal.Catches(), journal.BrokenRods(), func(fishType string) int {
		if fishType == "" {
			return 1
		}
		return max(catalog.XPByType(fishType), 1)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import logs: %w", err)
	}
	if n > 0 {
		LogInfo("Imported %d log entries into the stats database", n)
	}
	return n, nil
}
