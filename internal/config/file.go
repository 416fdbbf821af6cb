package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML file over the defaults, then applies DOCGRAPH_*
// environment overrides. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// LoadAuto uses LoadFile when path is set and Load otherwise.
func LoadAuto(path string) (Config, error) {
	if path == "" {
		return Load(), nil
	}
	return LoadFile(path)
}
