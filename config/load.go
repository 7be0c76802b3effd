//go:build !tinygo

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"
)

// LoadConfig parses a JSON configuration over the defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	config := Default()

	if err := json.Unmarshal(jsonData, config); err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(config)

	return config, config.Validate()
}

// LoadTOML parses a TOML configuration over the defaults
func LoadTOML(data []byte) (*Config, error) {
	config := Default()

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	applyDefaults(config)

	return config, config.Validate()
}

// LoadYAML parses a YAML configuration over the defaults
func LoadYAML(data []byte) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	applyDefaults(config)

	return config, config.Validate()
}

// LoadFile reads a .json, .toml, .yaml or .yml configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = LoadTOML(data)
	case ".json":
		cfg, err = LoadConfig(data)
	case ".yaml", ".yml":
		cfg, err = LoadYAML(data)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Override applies "path=value" assignments to cfg, e.g.
// "timing.emergency_hold_ms=1000" or "console.debug=false". Paths use
// the JSON field names; unknown paths are rejected.
func Override(cfg *Config, assignments []string) (*Config, error) {
	if len(assignments) == 0 {
		return cfg, nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	for _, a := range assignments {
		path, value, ok := strings.Cut(a, "=")
		path = strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, fmt.Errorf("override %q: want path=value", a)
		}
		cur := gjson.GetBytes(data, path)
		if !cur.Exists() {
			return nil, fmt.Errorf("override %q: unknown setting %s", a, path)
		}

		value = strings.TrimSpace(value)
		switch cur.Type {
		case gjson.Number:
			n, perr := strconv.ParseInt(value, 0, 64)
			if perr != nil {
				return nil, fmt.Errorf("override %q: %w", a, perr)
			}
			data, err = sjson.SetBytes(data, path, n)
		case gjson.True, gjson.False:
			b, perr := strconv.ParseBool(value)
			if perr != nil {
				return nil, fmt.Errorf("override %q: %w", a, perr)
			}
			data, err = sjson.SetBytes(data, path, b)
		default:
			data, err = sjson.SetBytes(data, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", a, err)
		}
	}
	return LoadConfig(data)
}
