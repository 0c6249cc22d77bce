// Package config parses Blockframe's on-disk TOML configuration: the
// segment cache sizing knobs referenced by the mount command.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/helper"
)

// Cache holds the [cache] table: bounds for the mounted filesystem's
// segment cache.
type Cache struct {
	// MaxSegments is parsed from max_segments but is not applied to the
	// segment cache, which is bounded by MaxSize only.
	MaxSegments int `toml:"max_segments"`

	// MaxSize is a decimal size string (e.g. "512MB", "2GB"); parsed with
	// helper.ParseSize, matching original_source's config.rs semantics
	// (GB/MB/KB are decimal, not binary).
	MaxSize string `toml:"max_size"`
}

// Config is the top-level config.toml document.
type Config struct {
	Cache Cache `toml:"cache"`
}

// MaxSizeBytes parses Cache.MaxSize, defaulting to defaultMaxCacheBytes
// when unset.
func (c Config) MaxSizeBytes() (uint64, error) {
	if c.Cache.MaxSize == "" {
		return defaultMaxCacheBytes, nil
	}

	return helper.ParseSize(c.Cache.MaxSize)
}

// defaultMaxCacheBytes is used when config.toml omits cache.max_size.
const defaultMaxCacheBytes = 512_000_000

// Load parses the TOML document at path.
func Load(path string) (Config, error) {
	var c Config

	if _, err := toml.DecodeFile(path, &c); err != nil {
		if os.IsNotExist(err) {
			return Config{}, errs.Wrap(errs.NotFound, fmt.Sprintf("config file %q", path), err)
		}

		return Config{}, errs.Wrap(errs.ConfigError, fmt.Sprintf("parsing config file %q", path), err)
	}

	return c, nil
}
