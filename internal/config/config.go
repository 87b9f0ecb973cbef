// Package config holds the flat set of tunables package runtime needs to
// construct an Engine: arena slab size, the module search path, the
// entry-store DSN, and the log level. The alt-set width is not a tunable;
// it is fixed by altset.Width.
//
// Grounded on the teacher's internal/module/module.go
// getDefaultSearchPath/getStandardLibPath helpers (folded in here as
// Config.SearchPath's default, since the standalone module loader they
// served was deleted — see DESIGN.md) and on the teacher's plain
// encoding/json config reads elsewhere in the corpus: no repo in the pack
// reaches for a config library (viper, koanf, …) for anything this size.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Config is every tunable package runtime's Engine constructor reads.
type Config struct {
	// ArenaSlabSize is the number of cells cellmem.Arena grows by each
	// time it runs out of free cells. <= 0 selects cellmem.DefaultSlabSize.
	ArenaSlabSize int `json:"arena_slab_size"`

	// SearchPath lists directories searched, in order, for a module file
	// naming a word not already in the word table.
	SearchPath []string `json:"search_path"`

	// EntryStoreDSN names the entrystore.Open target. Empty disables the
	// persistent entry cache (every session starts cold).
	EntryStoreDSN string `json:"entry_store_dsn"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"log_level"`
}

// Default returns the built-in tunables, matching the teacher's
// getDefaultSearchPath layering (cwd, a local lib dir, a local modules
// dir, the standard library path) translated to this language's own
// directory names.
func Default() Config {
	return Config{
		ArenaSlabSize: 0,
		SearchPath:    []string{".", "./lib", "./modules", standardLibPath()},
		EntryStoreDSN: "sqlite://file::memory:?cache=shared",
		LogLevel:      "info",
	}
}

// standardLibPath mirrors getStandardLibPath's placeholder: in a real
// installation this would resolve against the install prefix, but for a
// repository-local run the bundled stdlib directory is good enough.
func standardLibPath() string {
	return filepath.Join(".", "stdlib")
}

// Load starts from Default, overlays path (a JSON file, skipped silently
// if empty or missing), then overlays flag.CommandLine-style arguments so
// flags always win over a config file.
func Load(path string, args []string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: open %s: %w", path, err)
			}
		} else {
			defer f.Close()
			if err := json.NewDecoder(f).Decode(&cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	fs := flag.NewFlagSet("poprc", flag.ContinueOnError)
	slab := fs.Int("arena-slab", cfg.ArenaSlabSize, "cell arena slab growth size")
	dsn := fs.String("entry-store", cfg.EntryStoreDSN, "entry-store DSN (sqlite://, postgres://, mysql://, sqlserver://); empty disables caching")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.ArenaSlabSize = *slab
	cfg.EntryStoreDSN = *dsn
	cfg.LogLevel = *logLevel
	return cfg, nil
}
