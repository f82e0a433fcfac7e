package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/gigharvest/internal/logger"
)

// Loader errors.
var (
	// ErrNoSources indicates no source files were found in the directory.
	ErrNoSources = errors.New("no source configurations found")
	// ErrDuplicateSource indicates two files declare the same source name.
	ErrDuplicateSource = errors.New("duplicate source name")
)

// LoadFile loads and validates one source configuration from a YAML file.
// Defaults are applied before validation.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Decode to a generic map first, then through mapstructure, so hooks
	// can coerce loosely-typed values (durations, numbers as strings).
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source config %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadDir loads every .yml/.yaml source configuration in a directory.
// Files that fail to load are logged and skipped; the load only fails
// when the directory is unreadable, empty of valid sources, or two files
// declare the same name.
func LoadDir(dir string, log logger.Interface) ([]*Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources directory %s: %w", dir, err)
	}

	seen := make(map[string]string)
	var configs []*Config

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		cfg, loadErr := LoadFile(path)
		if loadErr != nil {
			log.Warn("Skipping invalid source config",
				"path", path,
				"error", loadErr,
			)
			continue
		}

		if prev, dup := seen[cfg.Site.Name]; dup {
			return nil, fmt.Errorf("%w: %q in %s and %s",
				ErrDuplicateSource, cfg.Site.Name, prev, path)
		}
		seen[cfg.Site.Name] = path
		configs = append(configs, cfg)
	}

	if len(configs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSources, dir)
	}

	log.Info("Loaded source configurations",
		"dir", dir,
		"count", len(configs),
	)
	return configs, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}
