package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for config files that are neither YAML nor TOML.
var ErrUnknownFormat = errors.New("unknown config file format")

type fileLog struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"`
}

type fileConfig struct {
	Preset   string  `yaml:"preset" toml:"preset"`
	Steps    int     `yaml:"steps" toml:"steps"`
	Interval string  `yaml:"interval" toml:"interval"`
	Scenario string  `yaml:"scenario" toml:"scenario"`
	FailAt   int     `yaml:"fail_at" toml:"fail_at"`
	Log      fileLog `yaml:"log" toml:"log"`
}

// Load reads a YAML or TOML file, chosen by extension, and applies the values
// it sets on top of base.
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse yaml config: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse toml config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("unknown toml config keys: %v", undecoded)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}

	return fc.apply(base)
}

func (fc fileConfig) apply(c Config) (Config, error) {
	if fc.Preset != "" {
		p, err := ParsePreset(fc.Preset)
		if err != nil {
			return Config{}, err
		}
		c.Preset = p
	}
	if fc.Steps != 0 {
		c.Steps = fc.Steps
	}
	if fc.Interval != "" {
		d, err := time.ParseDuration(fc.Interval)
		if err != nil {
			return Config{}, fmt.Errorf("invalid interval %q: %w", fc.Interval, err)
		}
		c.Interval = d
	}
	if fc.Scenario != "" {
		s, err := ParseScenario(fc.Scenario)
		if err != nil {
			return Config{}, err
		}
		c.Scenario = s
	}
	if fc.FailAt != 0 {
		c.FailAt = fc.FailAt
	}
	if fc.Log.Level != "" {
		c.LogLevel = strings.ToLower(fc.Log.Level)
	}
	if fc.Log.Format != "" {
		c.LogFormat = LogFormat(strings.ToLower(fc.Log.Format))
	}
	if fc.Log.File != "" {
		c.LogFile = fc.Log.File
	}
	return c, nil
}
