// Package main - settings.go
//
// This file manages config/settings.json: key bindings and the screen resolution
// that selects the template folder.
//
// File Format:
// A flat JSON object of string values. Defaults are filled in for any missing
// binding and unknown keys (e.g. "auto_bait_purchase") are preserved on save.
//
//	{
//	  "resolution": "1920x1080",
//	  "start_key": "F9",
//	  "stop_key": "F10",
//	  "rods_key": "M",
//	  ...
//	}
//
// Thread Safety:
// Settings is read by the control loop and hotkey listener while the config
// watcher may reload it, so all access goes through an RWMutex.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vcaesar/keycode"
)

// Logical key names used by the control loop
const (
	KeyStart = "start_key"
	KeyStop  = "stop_key"
	KeyRods  = "rods_key"
	KeyBait  = "bait_key"
	KeyFish  = "fish_key"
	KeyEsc   = "esc_key"
	KeyLeft  = "left_key"
	KeyRight = "right_key"

	settingResolution = "resolution"
	defaultResolution = "1920x1080"
)

// defaultSettings returns a fresh copy of the default bindings
func defaultSettings() map[string]string {
	return map[string]string{
		settingResolution: defaultResolution,
		KeyStart:          "F9",
		KeyStop:           "F10",
		KeyRods:           "M",
		KeyBait:           "N",
		KeyFish:           "F",
		KeyEsc:            "ESC",
		KeyLeft:           "A",
		KeyRight:          "D",
	}
}

// specialKeys lists the named keys accepted by ResolveKey
var specialKeys = map[string]bool{
	"F1": true, "F2": true, "F3": true, "F4": true, "F5": true, "F6": true,
	"F7": true, "F8": true, "F9": true, "F10": true, "F11": true, "F12": true,
	"ESC": true, "ESCAPE": true, "ENTER": true, "RETURN": true, "SPACE": true,
	"TAB": true, "BACKSPACE": true,
	"UP": true, "DOWN": true, "LEFT": true, "RIGHT": true,
	"HOME": true, "END": true, "PAGEUP": true, "PAGEDOWN": true, "INSERT": true, "DELETE": true,
	"SHIFT": true, "CTRL": true, "CONTROL": true, "ALT": true, "WIN": true, "WINDOWS": true,
	"CAPSLOCK": true, "NUMLOCK": true, "SCROLLLOCK": true,
	"PRINT": true, "PRINTSCREEN": true, "PAUSE": true,
}

// ErrInvalidKey is returned when a key name cannot be bound
var ErrInvalidKey = errors.New("invalid key")

// ResolveKey validates a configured key name.
//
// Returns the upper-cased name and true for a special key or a single
// letter/digit, or "" and false otherwise.
func ResolveKey(name string) (string, bool) {
	k := strings.ToUpper(strings.TrimSpace(name))
	if k == "" {
		return "", false
	}
	if specialKeys[k] {
		return k, true
	}
	if len(k) == 1 {
		c := k[0]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return k, true
		}
	}
	return "", false
}

// InputKeyName converts a resolved key name to the lower-case name used by
// robotgo and gohook.
func InputKeyName(name string) string {
	switch k := strings.ToUpper(name); k {
	case "ESC", "ESCAPE":
		return "esc"
	case "RETURN":
		return "enter"
	case "CONTROL":
		return "ctrl"
	case "WIN", "WINDOWS":
		return "cmd"
	case "PRINT":
		return "printscreen"
	case "NUMLOCK":
		return "num_lock"
	case "SCROLLLOCK":
		return "scroll_lock"
	default:
		return strings.ToLower(k)
	}
}

// KeyCode looks up the raw key code for a key name in the keycode table
// shared by robotgo and gohook. ok is false when the platform table has no entry.
func KeyCode(name string) (uint16, bool) {
	code, ok := keycode.Keycode[InputKeyName(name)]
	return code, ok
}

// Settings is the in-memory view of settings.json.
type Settings struct {
	path   string
	values map[string]string

	// non-string entries (e.g. auto_bait_purchase) are kept opaque for Save
	extra map[string]interface{}
	mu    sync.RWMutex
}

// NewSettings returns settings backed by path holding only defaults.
func NewSettings(path string) *Settings {
	return &Settings{path: path, values: defaultSettings()}
}

// LoadSettings reads path on top of the defaults. A missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	s := NewSettings(path)
	if err := s.Reload(); err != nil {
		return s, err
	}
	return s, nil
}

// Reload re-reads the file. On a parse error the current values are kept.
func (s *Settings) Reload() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}

	values := defaultSettings()
	extra := make(map[string]interface{})
	for k, v := range raw {
		if str, ok := v.(string); ok {
			values[k] = str
		} else {
			extra[k] = v
		}
	}

	s.mu.Lock()
	s.values = values
	s.extra = extra
	s.mu.Unlock()
	LogInfo("[CONFIG] Settings loaded from %s", s.path)
	return nil
}

// Save writes the settings as 2-space indented JSON, creating the directory.
func (s *Settings) Save() error {
	s.mu.RLock()
	out := make(map[string]interface{}, len(s.values)+len(s.extra))
	for k, v := range s.extra {
		out[k] = v
	}
	for k, v := range s.values {
		out[k] = v
	}
	s.mu.RUnlock()
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Get returns a raw setting value
func (s *Settings) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Key returns the resolved binding for a logical key, falling back to the
// default when the configured value is invalid.
func (s *Settings) Key(name string) string {
	v, _ := s.Get(name)
	if k, ok := ResolveKey(v); ok {
		return k
	}
	if def, ok := defaultSettings()[name]; ok {
		if v != "" {
			LogWarn("[CONFIG] Invalid key %q for %s, using %s", v, name, def)
		}
		return def
	}
	return ""
}

// SetKey validates and stores a binding. Only known binding names are accepted.
func (s *Settings) SetKey(name, value string) error {
	if name == settingResolution {
		return fmt.Errorf("invalid setting name: %s", name)
	}
	if _, ok := defaultSettings()[name]; !ok {
		return fmt.Errorf("invalid setting name: %s", name)
	}
	k, ok := ResolveKey(value)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKey, value)
	}
	s.mu.Lock()
	s.values[name] = k
	s.mu.Unlock()
	return nil
}

// Resolution returns the template folder name (e.g. "1920x1080")
func (s *Settings) Resolution() string {
	v, _ := s.Get(settingResolution)
	if v == "" {
		return defaultResolution
	}
	return v
}

// Bindings returns the key bindings sorted by name
func (s *Settings) Bindings() [][2]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][2]string, 0, len(s.values))
	for k, v := range s.values {
		if strings.HasSuffix(k, "_key") {
			out = append(out, [2]string{k, v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
