// Package config loads the tunables for a nvmalloc region from YAML,
// mirroring the teacher repository's use of gopkg.in/yaml.v3 for
// structured configuration data.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// PageSize is the fixed page granularity. The data model (§3) fixes
	// this at 4096 bytes; it is not configurable.
	PageSize = 4096

	// DefaultListNum is the number of endurance bands (LIST_NUM in the
	// spec's worked examples).
	DefaultListNum = 10

	// DefaultImmigrationLimit is the population floor below which a band
	// is considered drained and rotated out (§4.5).
	DefaultImmigrationLimit = 4

	// DefaultReservedFraction is the share of the region set aside as
	// the unbanded reserved pool (§4.8), expressed as pages-per-1024.
	DefaultReservedFraction = 8 // ~0.8%

	// MaxEndurance / MinEndurance bound the per-page write budget used to
	// derive band thresholds (§4.5).
	DefaultMaxEndurance = 1 << 20
	DefaultMinEndurance = 0
)

// Config holds the tunables for opening an allocator region.
type Config struct {
	// Path, when non-empty, backs the mapping with a real file so that
	// Persist can msync it. Empty means a volatile anonymous mapping.
	Path string `yaml:"path"`

	// DataPages is the number of whole pages in the data arena D.
	DataPages int `yaml:"data_pages"`

	// ReservedPages is the number of pages set aside in the tail
	// reserved pool P. Defaults and Load (when the file leaves it at
	// zero) derive it from DataPages using DefaultReservedFraction; a
	// Config with zero here passed straight to Open has no reserved pool.
	ReservedPages int `yaml:"reserved_pages"`

	// ListNum is the number of endurance bands.
	ListNum int `yaml:"list_num"`

	// ImmigrationLimit is the population floor that triggers band
	// rotation (§4.5).
	ImmigrationLimit int `yaml:"immigration_limit"`

	// MaxEndurance / MinEndurance bound the per-page write budget used
	// to derive band thresholds.
	MaxEndurance uint64 `yaml:"max_endurance"`
	MinEndurance uint64 `yaml:"min_endurance"`
}

// Defaults returns a Config for a region with the given number of data
// pages, with every other tunable set to its default.
func Defaults(dataPages int) Config {
	return Config{
		DataPages:        dataPages,
		ReservedPages:    (dataPages*DefaultReservedFraction + 1023) / 1024,
		ListNum:          DefaultListNum,
		ImmigrationLimit: DefaultImmigrationLimit,
		MaxEndurance:     DefaultMaxEndurance,
		MinEndurance:     DefaultMinEndurance,
	}
}

// Load reads and validates a Config from a YAML file at path, applying
// defaults (sized off DataPages, which must be present in the file) for
// any field left at its zero value.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.DataPages <= 0 {
		return nil, fmt.Errorf("config: data_pages must be positive")
	}
	def := Defaults(cfg.DataPages)
	if cfg.ReservedPages == 0 {
		cfg.ReservedPages = def.ReservedPages
	}
	if cfg.ListNum == 0 {
		cfg.ListNum = def.ListNum
	}
	if cfg.ImmigrationLimit == 0 {
		cfg.ImmigrationLimit = def.ImmigrationLimit
	}
	if cfg.MaxEndurance == 0 {
		cfg.MaxEndurance = def.MaxEndurance
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration can produce a consistent region
// layout.
func (c Config) Validate() error {
	if c.DataPages <= 0 {
		return fmt.Errorf("config: data_pages must be positive")
	}
	if c.ReservedPages < 0 {
		return fmt.Errorf("config: reserved_pages must not be negative")
	}
	if c.ListNum <= 0 {
		return fmt.Errorf("config: list_num must be positive")
	}
	if c.MaxEndurance <= c.MinEndurance {
		return fmt.Errorf("config: max_endurance must exceed min_endurance")
	}
	return nil
}

// TotalPages is the sum of data and reserved pages — the size of the
// region in pages.
func (c Config) TotalPages() int { return c.DataPages + c.ReservedPages }

// RegionBytes is the size in bytes of the mapping Config describes.
func (c Config) RegionBytes() int { return c.TotalPages() * PageSize }
