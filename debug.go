// Package main - debug.go
//
// This file implements centralized logging and debug frame capture for the bot.
//
// Major Components:
//
// 1. Logging System:
//    - zerolog logger writing to debug/log/Debug.log and to the console
//    - Four log levels: DEBUG, INFO, WARN, ERROR
//    - Microsecond timestamps for performance analysis
//    - File is truncated (cleared) on each startup
//    - Global logger instance accessible via printf-style convenience functions
//
// 2. Debug Frames:
//    - When enabled, every detection can be dumped as a PNG under debug/frames/
//    - Detection boxes are drawn with gocv (rectangle + label + confidence)
//    - Used to tune thresholds and verify capture regions offline
//
// Logging Best Practices:
//   - DEBUG: Detailed operation info (match scores, coordinates, timing)
//   - INFO: Important events (start/stop, catches, recovery)
//   - WARN: Non-critical issues (unknown fish name, journal write failure)
//   - ERROR: Serious problems (capture failures, missing templates)
package main

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// Logger wraps a zerolog.Logger and the backing log file.
//
// File Behavior:
// Debug.log is truncated (O_TRUNC) on each startup to prevent log accumulation.
// This ensures the log file always contains only the current session's messages.
type Logger struct {
	file *os.File
	zl   zerolog.Logger
}

var (
	globalLogger *Logger
	loggerMu     sync.RWMutex
)

// InitLogger initializes the global logger.
//
// Parameters:
//   - dir: Directory for Debug.log (created if missing)
//   - debug: Enables DEBUG level; INFO otherwise
//   - console: Also writes human-readable lines to stdout
//
// Returns:
//   - error: File creation error
func InitLogger(dir string, debug, console bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, "Debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	var out io.Writer = file
	if console {
		out = zerolog.MultiLevelWriter(file, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"})
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000000Z07:00"

	setLogger(&Logger{
		file: file,
		zl:   zerolog.New(out).Level(level).With().Timestamp().Logger(),
	})

	LogInfo("Logger initialized (log file cleared)")
	return nil
}

// InitWriterLogger installs a logger writing to w without a backing file.
// Used by tests and by subcommands that never start the bot.
func InitWriterLogger(w io.Writer, level zerolog.Level) {
	setLogger(&Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()})
}

func setLogger(l *Logger) {
	loggerMu.Lock()
	globalLogger = l
	loggerMu.Unlock()
}

func currentLogger() *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}

// CloseLogger closes the log file
func CloseLogger() {
	l := currentLogger()
	if l != nil && l.file != nil {
		l.zl.Info().Msg("Logger closing")
		l.file.Close()
	}
}

// Zerolog exposes the underlying structured logger for call sites that attach fields.
// Returns a disabled logger before InitLogger has run.
func Zerolog() *zerolog.Logger {
	if l := currentLogger(); l != nil {
		return &l.zl
	}
	nop := zerolog.Nop()
	return &nop
}

// LogDebug is a convenience function for debug logging
func LogDebug(format string, v ...interface{}) {
	if l := currentLogger(); l != nil {
		l.zl.Debug().Msgf(format, v...)
	}
}

// LogInfo is a convenience function for info logging
func LogInfo(format string, v ...interface{}) {
	if l := currentLogger(); l != nil {
		l.zl.Info().Msgf(format, v...)
	}
}

// LogWarn is a convenience function for warning logging
func LogWarn(format string, v ...interface{}) {
	if l := currentLogger(); l != nil {
		l.zl.Warn().Msgf(format, v...)
	}
}

// LogError is a convenience function for error logging
func LogError(format string, v ...interface{}) {
	if l := currentLogger(); l != nil {
		l.zl.Error().Msgf(format, v...)
	}
}

// FrameDumper writes annotated detection frames to disk.
//
// A nil *FrameDumper is valid and does nothing, so call sites never check
// whether debug frames are enabled.
type FrameDumper struct {
	dir string
	mu  sync.Mutex
	seq int
}

// NewFrameDumper returns a dumper rooted at dir, or nil when disabled.
func NewFrameDumper(dir string, enabled bool) *FrameDumper {
	if !enabled {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		LogWarn("Debug frames disabled: %v", err)
		return nil
	}
	return &FrameDumper{dir: dir}
}

// Dump draws boxes on a copy of frame and saves it as <seq>_<tag>.png.
//
// Parameters:
//   - frame: BGR or grayscale Mat of the searched region
//   - tag: Short name for the file (template or "arrow"/"ocr")
//   - boxes: Detections in frame-local coordinates
func (d *FrameDumper) Dump(frame gocv.Mat, tag string, boxes []DetectionBox) {
	if d == nil || frame.Empty() {
		return
	}

	canvas := gocv.NewMat()
	defer canvas.Close()
	if frame.Channels() == 1 {
		gocv.CvtColor(frame, &canvas, gocv.ColorGrayToBGR)
	} else {
		frame.CopyTo(&canvas)
	}

	for _, b := range boxes {
		c := boxColor(b.Color)
		rect := image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
		gocv.Rectangle(&canvas, rect, c, 2)
		label := fmt.Sprintf("%s %.2f", b.Label, b.Confidence)
		gocv.PutText(&canvas, label, image.Pt(b.X, max(b.Y-4, 12)), gocv.FontHersheySimplex, 0.45, c, 1)
	}

	d.mu.Lock()
	d.seq++
	name := fmt.Sprintf("%s_%05d_%s.png", time.Now().Format("150405"), d.seq, tag)
	d.mu.Unlock()

	if ok := gocv.IMWrite(filepath.Join(d.dir, name), canvas); !ok {
		LogWarn("Failed to write debug frame %s", name)
	}
}

// boxColor parses a "#RRGGBB" detection color, falling back to green.
func boxColor(hex string) color.RGBA {
	c := color.RGBA{G: 255, A: 255}
	if len(hex) != 7 || hex[0] != '#' {
		return c
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return c
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
