package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a kiln.yaml file, expands environment variables, and
// unmarshals it. The gateway needs at least one route to serve, so a
// route-less file is rejected here rather than at server construction.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands environment variables in raw YAML and unmarshals it.
func Parse(data []byte) (*Config, error) {
	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if len(cfg.Routes) == 0 {
		return nil, fmt.Errorf("no routes configured")
	}

	return &cfg, nil
}
