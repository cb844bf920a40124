package main

import (
	"os"
	"path/filepath"
	"testing"
)

const testCatalogJSON = `{
  "fishes": [
    {"id": "glass_bottle", "image": "glass_bottle.png", "name": "Glass Bottle", "xp": 5, "rarity": "COMMON", "category": "TRASH"},
    {"id": "bluegill", "image": "bluegill.png", "name": "Bluegill", "xp": 12, "rarity": "common"},
    {"id": "golden_koi", "image": "golden_koi.png", "name": "Golden Koi", "xp": 150, "rarity": "MYTHICAL"}
  ]
}`

func writeCatalog(t *testing.T, content string) *FishCatalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fish_config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewFishCatalog(path)
}

func TestFishCatalogLoad(t *testing.T) {
	c := writeCatalog(t, testCatalogJSON)
	if err := c.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Count() != 3 {
		t.Fatalf("expected 3 fish, got %d", c.Count())
	}

	f, ok := c.ByID("GLASS_BOTTLE")
	if !ok || f.Category == nil || *f.Category != CategoryTrash {
		t.Errorf("unexpected glass bottle entry %+v", f)
	}
	if f.String() != "Glass Bottle (Common, XP: 5)" {
		t.Errorf("unexpected String() %q", f.String())
	}

	if b, _ := c.ByName("bluegill"); b.Rarity != RarityCommon || b.Category != nil {
		t.Errorf("lower-case rarity should parse and category stay nil: %+v", b)
	}
	if n := len(c.ByRarity(RarityMythical)); n != 1 {
		t.Errorf("expected 1 mythical fish, got %d", n)
	}
}

func TestFishCatalogLookup(t *testing.T) {
	c := writeCatalog(t, testCatalogJSON)
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		fishType string
		exists   bool
		xp       int
	}{
		{"glass_bottle", true, 5},
		{"Glass_Bottle", true, 0},
		{"golden koi", true, 150},
		{"Bluegill", true, 12},
		{"catfish", false, 0},
	}
	for _, tt := range tests {
		if got := c.Exists(tt.fishType); got != tt.exists {
			t.Errorf("Exists(%q) = %v, want %v", tt.fishType, got, tt.exists)
		}
		if got := c.XPByType(tt.fishType); got != tt.xp {
			t.Errorf("XPByType(%q) = %d, want %d", tt.fishType, got, tt.xp)
		}
	}
}

func TestFishCatalogRejectsUnknownRarity(t *testing.T) {
	c := writeCatalog(t, `{"fishes": [{"id": "x", "name": "X", "xp": 1, "rarity": "LEGENDARY"}]}`)
	if err := c.Load(); err == nil {
		t.Fatal("expected an error for an unknown rarity")
	}
	if c.Count() != 0 {
		t.Error("failed load must not replace entries")
	}
}

func TestFishCatalogFailedReloadKeepsEntries(t *testing.T) {
	c := writeCatalog(t, testCatalogJSON)
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Load(); err == nil {
		t.Fatal("expected a parse error")
	}
	if c.Count() != 3 {
		t.Errorf("previous entries lost after failed reload: %d", c.Count())
	}
}

func TestFishCatalogMissingFile(t *testing.T) {
	c := NewFishCatalog(filepath.Join(t.TempDir(), "missing.json"))
	if err := c.Load(); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if c.Exists("anything") || c.XPByType("anything") != 0 {
		t.Error("empty catalog must not match")
	}
}
