package sde

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"eve-industry/internal/logger"
)

const sdeURL = "https://developers.eveonline.com/static-data/eve-online-static-data-latest-jsonl.zip"

// Data holds the parsed SDE tables the industry tools need.
type Data struct {
	Types        map[int32]*ItemType    // typeID -> type
	TypeByName   map[string]int32       // lowercase name -> typeID
	Groups       map[int32]*ItemGroup   // groupID -> group
	Categories   map[int32]string       // categoryID -> name
	MarketGroups map[int32]*MarketGroup // marketGroupID -> market group
	MetaGroups   map[int32]string       // metaGroupID -> name ("Tech II", "Faction", ...)
	Industry     *IndustryData
}

// ItemType represents a market-tradeable item type from the SDE.
type ItemType struct {
	ID            int32
	Name          string
	Volume        float64 // packaged volume in m³
	GroupID       int32
	CategoryID    int32
	MarketGroupID int32
	MetaGroupID   int32 // 0 when the SDE has none (plain Tech I)
}

// ItemGroup represents group-level SDE metadata.
type ItemGroup struct {
	ID         int32
	Name       string
	CategoryID int32
}

// MarketGroup is one node of the market browser tree.
type MarketGroup struct {
	ID       int32
	Name     string
	ParentID int32
}

func newData() *Data {
	return &Data{
		Types:        make(map[int32]*ItemType),
		TypeByName:   make(map[string]int32),
		Groups:       make(map[int32]*ItemGroup),
		Categories:   make(map[int32]string),
		MarketGroups: make(map[int32]*MarketGroup),
		MetaGroups:   make(map[int32]string),
		Industry:     NewIndustryData(),
	}
}

// Load downloads (if needed) and parses the SDE under dataDir.
func Load(dataDir string) (*Data, error) {
	zipPath := filepath.Join(dataDir, "sde.zip")
	extractDir := filepath.Join(dataDir, "sde")

	if _, err := os.Stat(extractDir); os.IsNotExist(err) {
		logger.Info("SDE", "Downloading data...")
		if err := downloadFile(zipPath, sdeURL); err != nil {
			return nil, fmt.Errorf("download SDE: %w", err)
		}
		logger.Info("SDE", "Extracting data...")
		if err := extractZip(zipPath, extractDir); err != nil {
			return nil, fmt.Errorf("extract SDE: %w", err)
		}
	}
	return LoadDir(extractDir)
}

// LoadDir parses an already extracted SDE directory.
func LoadDir(extractDir string) (*Data, error) {
	data := newData()

	logger.Info("SDE", "Loading categories and groups...")
	if err := data.loadCategories(extractDir); err != nil {
		return nil, err
	}
	if err := data.loadGroups(extractDir); err != nil {
		return nil, err
	}
	logger.Info("SDE", "Loading market and meta groups...")
	if err := data.loadMarketGroups(extractDir); err != nil {
		return nil, err
	}
	if err := data.loadMetaGroups(extractDir); err != nil {
		return nil, err
	}
	logger.Info("SDE", "Loading item types...")
	if err := data.loadTypes(extractDir); err != nil {
		return nil, err
	}

	logger.Info("SDE", "Loading industry data...")
	industry, err := LoadIndustry(extractDir)
	if err != nil {
		return nil, fmt.Errorf("load industry: %w", err)
	}
	data.Industry = industry

	logger.Section("SDE Statistics")
	logger.Stats("Item types", len(data.Types))
	logger.Stats("Groups", len(data.Groups))
	logger.Stats("Market groups", len(data.MarketGroups))
	logger.Stats("Blueprints", len(data.Industry.Blueprints))
	return data, nil
}

// localized SDE name fields are {"en": "...", "de": "...", ...}.
type localized map[string]string

func (l localized) en() string { return strings.TrimSpace(l["en"]) }

func (d *Data) loadCategories(dir string) error {
	err := readJSONL(dir, "categories", func(raw json.RawMessage) error {
		var c struct {
			Key  int32     `json:"_key"`
			Name localized `json:"name"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return err
		}
		d.Categories[c.Key] = c.Name.en()
		return nil
	})
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	return nil
}

func (d *Data) loadGroups(dir string) error {
	err := readJSONL(dir, "groups", func(raw json.RawMessage) error {
		var g struct {
			Key        int32     `json:"_key"`
			Name       localized `json:"name"`
			CategoryID int32     `json:"categoryID"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			return err
		}
		d.Groups[g.Key] = &ItemGroup{ID: g.Key, Name: g.Name.en(), CategoryID: g.CategoryID}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	return nil
}

func (d *Data) loadMarketGroups(dir string) error {
	err := readJSONL(dir, "marketGroups", func(raw json.RawMessage) error {
		var g struct {
			Key      int32     `json:"_key"`
			Name     localized `json:"name"`
			ParentID int32     `json:"parentGroupID"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			return err
		}
		d.MarketGroups[g.Key] = &MarketGroup{ID: g.Key, Name: g.Name.en(), ParentID: g.ParentID}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load market groups: %w", err)
	}
	return nil
}

func (d *Data) loadMetaGroups(dir string) error {
	err := readJSONL(dir, "metaGroups", func(raw json.RawMessage) error {
		var g struct {
			Key  int32     `json:"_key"`
			Name localized `json:"name"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			return err
		}
		d.MetaGroups[g.Key] = g.Name.en()
		return nil
	})
	if err != nil {
		return fmt.Errorf("load meta groups: %w", err)
	}
	return nil
}

func (d *Data) loadTypes(dir string) error {
	return readJSONL(dir, "types", func(raw json.RawMessage) error {
		var t struct {
			Key            int32     `json:"_key"`
			Name           localized `json:"name"`
			Volume         float64   `json:"volume"`
			PackagedVolume float64   `json:"packagedVolume"`
			Published      bool      `json:"published"`
			MarketGroupID  *int32    `json:"marketGroupID"`
			GroupID        int32     `json:"groupID"`
			MetaGroupID    int32     `json:"metaGroupID"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		if !t.Published || t.MarketGroupID == nil {
			return nil
		}
		name := t.Name.en()
		if name == "" {
			return nil
		}
		vol := t.PackagedVolume
		if vol == 0 {
			vol = t.Volume
		}
		var categoryID int32
		if g, ok := d.Groups[t.GroupID]; ok {
			categoryID = g.CategoryID
		}
		d.AddType(&ItemType{
			ID:            t.Key,
			Name:          name,
			Volume:        vol,
			GroupID:       t.GroupID,
			CategoryID:    categoryID,
			MarketGroupID: *t.MarketGroupID,
			MetaGroupID:   t.MetaGroupID,
		})
		return nil
	})
}

// AddType registers a type and its lowercase name index entry.
func (d *Data) AddType(t *ItemType) {
	d.Types[t.ID] = t
	d.TypeByName[strings.ToLower(t.Name)] = t.ID
}

// readJSONL finds and reads a .jsonl file by base name from the extracted SDE directory.
func readJSONL(dir, baseName string, fn func(json.RawMessage) error) error {
	var filePath string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		name := strings.TrimSuffix(info.Name(), ".jsonl")
		if strings.EqualFold(name, baseName) && !info.IsDir() {
			filePath = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return err
	}
	if filePath == "" {
		logger.Warn("SDE", fmt.Sprintf("File %s.jsonl not found, skipping", baseName))
		return nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(json.RawMessage(line)); err != nil {
			continue // skip malformed lines
		}
	}
	return scanner.Err()
}

func downloadFile(dst, url string) error {
	os.MkdirAll(filepath.Dir(dst), 0755)
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func extractZip(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("resolve extract dir: %w", err)
	}

	for _, f := range r.File {
		fpath := filepath.Join(dstAbs, f.Name)

		// Zip slip guard.
		if rel, err := filepath.Rel(dstAbs, fpath); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("illegal zip entry path: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			os.MkdirAll(fpath, 0755)
			continue
		}
		os.MkdirAll(filepath.Dir(fpath), 0755)
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(fpath)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
