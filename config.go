// Package main - config.go
//
// This file loads config/bot.toml, the tuning file for the control loop,
// OCR, the status server and debug output. Every field has a default, so the
// file may be absent or list only the values being overridden.
//
// Example:
//
//	[loop]
//	threshold = 0.75
//	no_progress_limit_s = 60
//
//	[server]
//	enabled = false
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// BotConfig is the decoded bot.toml
type BotConfig struct {
	Loop   LoopConfig   `toml:"loop"`
	OCR    OCRConfig    `toml:"ocr"`
	Server ServerConfig `toml:"server"`
	Debug  DebugConfig  `toml:"debug"`
	Window WindowConfig `toml:"window"`
}

// LoopConfig holds control loop timing and thresholds
type LoopConfig struct {
	CheckIntervalMs  int     `toml:"check_interval_ms"`
	Threshold        float64 `toml:"threshold"`
	SpamCPS          int     `toml:"spam_cps"`
	NoProgressLimitS int     `toml:"no_progress_limit_s"`
	TerminalCheckMs  int     `toml:"terminal_check_ms"`
}

// OCRConfig holds fish-name recognition settings
type OCRConfig struct {
	Language      string  `toml:"language"`
	Upscale       int     `toml:"upscale"`
	Attempts      int     `toml:"attempts"`
	MinConfidence float64 `toml:"min_confidence"`
}

// ServerConfig holds the status server settings
type ServerConfig struct {
	Addr              string `toml:"addr"`
	PublishIntervalMs int    `toml:"publish_interval_ms"`
	Enabled           bool   `toml:"enabled"`
}

// DebugConfig toggles debug artifacts
type DebugConfig struct {
	SaveFrames bool `toml:"save_frames"`
}

// WindowConfig identifies the game window
type WindowConfig struct {
	Title string `toml:"title"`
}

// DefaultBotConfig returns the built-in tuning values
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Loop: LoopConfig{
			CheckIntervalMs:  50,
			Threshold:        0.7,
			SpamCPS:          20,
			NoProgressLimitS: 45,
			TerminalCheckMs:  300,
		},
		OCR: OCRConfig{
			Language:      "eng",
			Upscale:       2,
			Attempts:      5,
			MinConfidence: 0.7,
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:7878",
			PublishIntervalMs: 250,
			Enabled:           true,
		},
		Window: WindowConfig{
			Title: "Blue Protocol: Star Resonance",
		},
	}
}

// LoadBotConfig decodes path over the defaults. Missing file is not an error.
func LoadBotConfig(path string) (BotConfig, error) {
	cfg := DefaultBotConfig()
	if path == "" {
		return cfg, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to stat config: %w", err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return DefaultBotConfig(), fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.sanitize()
	return cfg, nil
}

// sanitize replaces non-positive values with defaults
func (c *BotConfig) sanitize() {
	def := DefaultBotConfig()
	if c.Loop.CheckIntervalMs <= 0 {
		c.Loop.CheckIntervalMs = def.Loop.CheckIntervalMs
	}
	if c.Loop.Threshold <= 0 || c.Loop.Threshold > 1 {
		c.Loop.Threshold = def.Loop.Threshold
	}
	if c.Loop.SpamCPS <= 0 {
		c.Loop.SpamCPS = def.Loop.SpamCPS
	}
	if c.Loop.NoProgressLimitS <= 0 {
		c.Loop.NoProgressLimitS = def.Loop.NoProgressLimitS
	}
	if c.Loop.TerminalCheckMs <= 0 {
		c.Loop.TerminalCheckMs = def.Loop.TerminalCheckMs
	}
	if c.OCR.Language == "" {
		c.OCR.Language = def.OCR.Language
	}
	if c.OCR.Upscale <= 0 {
		c.OCR.Upscale = 1
	}
	if c.OCR.Attempts <= 0 {
		c.OCR.Attempts = def.OCR.Attempts
	}
	if c.Server.PublishIntervalMs <= 0 {
		c.Server.PublishIntervalMs = def.Server.PublishIntervalMs
	}
	if c.Window.Title == "" {
		c.Window.Title = def.Window.Title
	}
}

// CheckInterval is the outer loop tick
func (c LoopConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMs) * time.Millisecond
}

// SpamInterval is the minigame tick derived from the actions-per-second cap
func (c LoopConfig) SpamInterval() time.Duration {
	return time.Second / time.Duration(c.SpamCPS)
}

// NoProgressLimit is the stall timeout
func (c LoopConfig) NoProgressLimit() time.Duration {
	return time.Duration(c.NoProgressLimitS) * time.Second
}

// TerminalCheck is the interval between continue/escape checks in the minigame
func (c LoopConfig) TerminalCheck() time.Duration {
	return time.Duration(c.TerminalCheckMs) * time.Millisecond
}

// PublishInterval is the status server broadcast tick
func (c ServerConfig) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalMs) * time.Millisecond
}
