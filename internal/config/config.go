package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional .queryscope.yaml settings file.
type Config struct {
	IndexDir   string   `yaml:"index_dir"`
	IgnoreDirs []string `yaml:"ignore_dirs"`
	Extensions []string `yaml:"extensions"`
	TopK       int      `yaml:"top_k"`
}

func Default() *Config {
	return &Config{
		IndexDir: ".queryscope",
		TopK:     10,
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.IndexDir == "" {
		cfg.IndexDir = ".queryscope"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	return cfg, nil
}
