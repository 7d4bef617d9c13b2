package sde

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeSDE lays out a miniature JSONL SDE under a temp dir.
func writeSDE(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "sde")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string][]string{
		"categories": {
			`{"_key":6,"name":{"en":"Ship","de":"Schiff"}}`,
			`{"_key":9,"name":{"en":"Blueprint"}}`,
			`{"_key":4,"name":{"en":"Material"}}`,
			`{"_key":25,"name":{"en":"Asteroid"}}`,
		},
		"groups": {
			`{"_key":419,"name":{"en":"Combat Battlecruiser"},"categoryID":6}`,
			`{"_key":26,"name":{"en":"Cruiser"},"categoryID":6}`,
			`{"_key":107,"name":{"en":"Battlecruiser Blueprint"},"categoryID":9}`,
			`{"_key":18,"name":{"en":"Mineral"},"categoryID":4}`,
			`{"_key":462,"name":{"en":"Veldspar"},"categoryID":25}`,
		},
		"marketGroups": {
			`{"_key":471,"name":{"en":"Standard Battlecruisers"},"parentGroupID":469}`,
			`{"_key":1370,"name":{"en":"Faction Cruisers"}}`,
			`{"_key":589,"name":{"en":"Battlecruisers"}}`,
			`{"_key":1857,"name":{"en":"Minerals"}}`,
			`{"_key":2538,"name":{"en":"Compressed Veldspar"}}`,
		},
		"metaGroups": {
			`{"_key":1,"name":{"en":"Tech I"}}`,
			`{"_key":2,"name":{"en":"Tech II"}}`,
			`{"_key":4,"name":{"en":"Faction"}}`,
		},
		"types": {
			`{"_key":24698,"name":{"en":"Drake"},"groupID":419,"marketGroupID":471,"published":true,"volume":252000,"packagedVolume":15000}`,
			`{"_key":24699,"name":{"en":"Drake Blueprint"},"groupID":107,"marketGroupID":589,"published":true,"volume":0.01}`,
			`{"_key":17720,"name":{"en":"Cynabal"},"groupID":26,"marketGroupID":1370,"metaGroupID":4,"published":true,"volume":10000}`,
			`{"_key":34,"name":{"en":"Tritanium"},"groupID":18,"marketGroupID":1857,"published":true,"volume":0.01}`,
			`{"_key":62516,"name":{"en":"Compressed Veldspar"},"groupID":462,"marketGroupID":2538,"published":true,"volume":0.001}`,
			`{"_key":99001,"name":{"en":"Unpublished Thing"},"groupID":18,"marketGroupID":1857,"published":false}`,
			`{"_key":99002,"name":{"en":"No Market Thing"},"groupID":18,"published":true}`,
			`not json at all`,
		},
		"blueprints": {
			`{"_key":24699,"activities":{"manufacturing":{"time":30000,"products":[{"typeID":24698,"quantity":1}]}}}`,
			`{"_key":46166,"activities":{"reaction":{"time":10800,"products":[{"typeID":16670,"quantity":200}]}}}`,
			`{"_key":1,"activities":{"copying":{"time":10}}}`,
		},
		"typeMaterials": {
			`{"_key":62516,"materials":[{"materialTypeID":34,"quantity":4}]}`,
			`{"_key":24698,"materials":[{"typeID":34,"quantity":100000},{"typeID":35,"quantity":40000}]}`,
		},
	}
	for name, lines := range files {
		raw := strings.Join(lines, "\n") + "\n"
		if err := os.WriteFile(filepath.Join(dir, name+".jsonl"), []byte(raw), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoadDir(t *testing.T) {
	d, err := LoadDir(writeSDE(t))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(d.Types) != 5 {
		t.Errorf("types = %d, want 5 (unpublished and market-less skipped)", len(d.Types))
	}
	drake := d.Types[24698]
	if drake == nil {
		t.Fatal("Drake missing")
	}
	if drake.Volume != 15000 {
		t.Errorf("Drake volume = %v, want packaged 15000", drake.Volume)
	}
	if drake.CategoryID != 6 || drake.MarketGroupID != 471 {
		t.Errorf("Drake = %+v", drake)
	}
	if id := d.TypeByName["drake"]; id != 24698 {
		t.Errorf("TypeByName[drake] = %d", id)
	}
	if d.Categories[6] != "Ship" {
		t.Errorf("category 6 = %q, want English name", d.Categories[6])
	}
	if d.MetaGroups[4] != "Faction" {
		t.Errorf("meta group 4 = %q", d.MetaGroups[4])
	}
	if d.MarketGroups[471].ParentID != 469 {
		t.Errorf("market group parent = %d", d.MarketGroups[471].ParentID)
	}
	if len(d.Industry.Blueprints) != 2 {
		t.Errorf("blueprints = %d, want 2", len(d.Industry.Blueprints))
	}
}

func TestLoadDir_MissingFilesAreSkipped(t *testing.T) {
	d, err := LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(d.Types) != 0 || len(d.Industry.Blueprints) != 0 {
		t.Errorf("expected empty data, got %d types", len(d.Types))
	}
}
