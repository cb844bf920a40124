// Package main - spelling.go
//
// Rewrites known OCR misspellings of fish names in fishing_log.json.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var spellingFixes = [][2]string{
	{"astercad", "asterscad"},
	{"aluminium", "aluminum"},
}

// correctText applies every correction in lower-case and capitalized form
func correctText(text string) string {
	for _, fix := range spellingFixes {
		text = strings.ReplaceAll(text, fix[0], fix[1])
		text = strings.ReplaceAll(text, capitalizeFirst(fix[0]), capitalizeFirst(fix[1]))
	}
	return text
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// fixValue walks a decoded JSON value and corrects every string in it
func fixValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return correctText(t)
	case []interface{}:
		for i := range t {
			t[i] = fixValue(t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = fixValue(t[k])
		}
		return t
	default:
		return v
	}
}

// FixSpelling rewrites path in place. A missing file is not an error.
//
// Returns:
//   - bool: true when the file existed and was rewritten
//   - error: read, parse or write failure
func FixSpelling(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		LogInfo("No log file found at %s", path)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read log file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return false, fmt.Errorf("invalid JSON file, cannot fix: %w", err)
	}

	out, err := json.MarshalIndent(fixValue(v), "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to encode log file: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return false, fmt.Errorf("failed to write fixed log file: %w", err)
	}
	LogInfo("Fixed naming issues in: %s", path)
	return true, nil
}
