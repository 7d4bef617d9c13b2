package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Market identifies one trade venue: the region it lives in and the station
// or structure whose orders count. StructureID != 0 means a player structure
// whose orders come from the authenticated structure market endpoint.
type Market struct {
	Name        string `yaml:"name"`
	RegionID    int32  `yaml:"region_id"`
	LocationID  int64  `yaml:"location_id"`
	StructureID int64  `yaml:"structure_id"`
}

// Storage selects the matcher repository backend.
type Storage struct {
	Backend  string `yaml:"backend"` // sqlite | redis | postgres | memory
	SQLite   string `yaml:"sqlite_path"`
	RedisURL string `yaml:"redis_url"`
	PGDSN    string `yaml:"pg_dsn"`
}

// Config holds engine settings (in-memory representation).
type Config struct {
	Hub       Market `yaml:"hub"`
	Secondary Market `yaml:"secondary"`

	// History windows in days (week / month / year aggregates).
	WeekDays  int `yaml:"week_days"`
	MonthDays int `yaml:"month_days"`
	YearDays  int `yaml:"year_days"`

	PageConcurrency  int           `yaml:"page_concurrency"`
	QuoteConcurrency int           `yaml:"quote_concurrency"`
	GateTimeout      time.Duration `yaml:"gate_timeout"`
	Workers          int           `yaml:"workers"`

	// Advisory friction and faction surcharges (ISK).
	SaleFactor           float64 `yaml:"sale_factor"`
	CostFactor           float64 `yaml:"cost_factor"`
	FactionSurcharge     float64 `yaml:"faction_surcharge"`
	FactionLineSurcharge float64 `yaml:"faction_line_surcharge"`
	RefineEfficiency     float64 `yaml:"refine_efficiency"`
	StructureOrderBegin  int     `yaml:"structure_order_begin"`
	StructureOrderStep   int     `yaml:"structure_order_step"`

	Storage  Storage `yaml:"storage"`
	SDEDir   string  `yaml:"sde_dir"`
	PlanFile string  `yaml:"plan_file"`
	ESIToken string  `yaml:"-"`
	LogLevel string  `yaml:"log_level"`
}

// Default returns a Config with sensible defaults: Jita 4-4 as the hub and
// the 4-HWWF Keepstar in Vale of the Silent as the secondary market.
func Default() *Config {
	return &Config{
		Hub: Market{
			Name:       "jita",
			RegionID:   10000002,
			LocationID: 60003760,
		},
		Secondary: Market{
			Name:        "frt",
			RegionID:    10000003,
			LocationID:  1035466617946,
			StructureID: 1035466617946,
		},
		WeekDays:             9,
		MonthDays:            32,
		YearDays:             366,
		PageConcurrency:      30,
		QuoteConcurrency:     10,
		GateTimeout:          10 * time.Millisecond,
		Workers:              1,
		SaleFactor:           0.956,
		CostFactor:           1.01,
		FactionSurcharge:     200_000_000,
		FactionLineSurcharge: 100_000_000,
		RefineEfficiency:     0.906,
		StructureOrderBegin:  20,
		StructureOrderStep:   10,
		Storage: Storage{
			Backend: "sqlite",
			SQLite:  "industry.db",
		},
		SDEDir:   "data",
		LogLevel: "info",
	}
}

// Load reads a YAML file over Default() and applies environment overrides.
// A missing file is not an error: defaults plus environment are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EVE_INDUSTRY_DB"); v != "" {
		c.Storage.SQLite = v
	}
	if v := os.Getenv("EVE_INDUSTRY_REDIS"); v != "" {
		c.Storage.RedisURL = v
		c.Storage.Backend = "redis"
	}
	if v := os.Getenv("EVE_INDUSTRY_PG"); v != "" {
		c.Storage.PGDSN = v
		c.Storage.Backend = "postgres"
	}
	if v := os.Getenv("ESI_TOKEN"); v != "" {
		c.ESIToken = v
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Hub.RegionID == 0 || c.Secondary.RegionID == 0 {
		return errors.New("config: hub and secondary markets need a region_id")
	}
	if c.PageConcurrency <= 0 {
		return fmt.Errorf("config: page_concurrency must be positive, got %d", c.PageConcurrency)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.RefineEfficiency <= 0 || c.RefineEfficiency > 1 {
		return fmt.Errorf("config: refine_efficiency must be in (0,1], got %v", c.RefineEfficiency)
	}
	switch c.Storage.Backend {
	case "sqlite", "redis", "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
