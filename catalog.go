// Package main - catalog.go
//
// This file implements the fish catalog loaded from config/fish_config.json.
// The control loop consults it to validate OCR results and to award xp.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Rarity of a catalog entry
type Rarity string

const (
	RarityCommon   Rarity = "COMMON"
	RarityRare     Rarity = "RARE"
	RarityMythical Rarity = "MYTHICAL"
)

// String returns the display form ("Common", "Rare", "Mythical")
func (r Rarity) String() string {
	switch r {
	case RarityCommon:
		return "Common"
	case RarityRare:
		return "Rare"
	case RarityMythical:
		return "Mythical"
	default:
		return string(r)
	}
}

// UnmarshalJSON rejects rarities outside the known set
func (r *Rarity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch v := Rarity(strings.ToUpper(s)); v {
	case RarityCommon, RarityRare, RarityMythical:
		*r = v
		return nil
	default:
		return fmt.Errorf("unknown rarity %q", s)
	}
}

// Category of a catalog entry (optional in the file)
type Category string

const (
	CategoryFish        Category = "FISH"
	CategorySeaCreature Category = "SEA_CREATURE"
	CategoryTrash       Category = "TRASH"
)

// Fish is one catalog entry
type Fish struct {
	ID       string    `json:"id"`
	Image    string    `json:"image"`
	Name     string    `json:"name"`
	XP       int       `json:"xp"`
	Rarity   Rarity    `json:"rarity"`
	Category *Category `json:"category,omitempty"`
}

// String formats the entry as "Name (Rarity, XP: n)"
func (f Fish) String() string {
	return fmt.Sprintf("%s (%s, XP: %d)", f.Name, f.Rarity, f.XP)
}

type catalogFile struct {
	Fishes []Fish `json:"fishes"`
}

// FishCatalog is a read-mostly, reloadable list of fish.
type FishCatalog struct {
	path   string
	fishes []Fish
	mu     sync.RWMutex
}

// NewFishCatalog returns an empty catalog backed by path
func NewFishCatalog(path string) *FishCatalog {
	return &FishCatalog{path: path}
}

// Load reads the catalog file, replacing the current entries on success.
func (c *FishCatalog) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read fish catalog: %w", err)
	}
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse fish catalog: %w", err)
	}

	c.mu.Lock()
	c.fishes = f.Fishes
	c.mu.Unlock()
	LogInfo("[CONFIG] Loaded %d fish from %s", len(f.Fishes), c.path)
	return nil
}

// Count returns the number of entries
func (c *FishCatalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.fishes)
}

// ByRarity returns the entries of one rarity
func (c *FishCatalog) ByRarity(r Rarity) []Fish {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Fish
	for _, f := range c.fishes {
		if f.Rarity == r {
			out = append(out, f)
		}
	}
	return out
}

// XPByType returns the xp of the fish whose name matches case-insensitively
// or whose id matches exactly. Returns 0 when nothing matches.
func (c *FishCatalog) XPByType(fishType string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.fishes {
		if strings.EqualFold(f.Name, fishType) || f.ID == fishType {
			return f.XP
		}
	}
	return 0
}

// ByName finds an entry by display name, case-insensitive
func (c *FishCatalog) ByName(name string) (Fish, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.fishes {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Fish{}, false
}

// ByID finds an entry by id, case-insensitive
func (c *FishCatalog) ByID(id string) (Fish, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.fishes {
		if strings.EqualFold(f.ID, id) {
			return f, true
		}
	}
	return Fish{}, false
}

// Exists reports whether fishType matches any id or name, case-insensitive
func (c *FishCatalog) Exists(fishType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.fishes {
		if strings.EqualFold(f.ID, fishType) || strings.EqualFold(f.Name, fishType) {
			return true
		}
	}
	return false
}
