package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"agenda/internal/model"
)

// StudiosConfig is the root configuration for studios.yaml.
type StudiosConfig struct {
	Studios []model.Studio `yaml:"studios"`
}

// LoadStudiosConfig loads and validates the studios configuration.
func LoadStudiosConfig(path string) (*StudiosConfig, error) {
	if path == "" {
		path = "configs/studios.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read studios config: %w", err)
	}

	var cfg StudiosConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse studios config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate studios config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *StudiosConfig) Validate() error {
	if len(c.Studios) == 0 {
		return fmt.Errorf("no studios defined")
	}

	ids := make(map[string]bool)
	for i, s := range c.Studios {
		if s.ID == "" {
			return fmt.Errorf("studio[%d]: id is required", i)
		}
		if ids[s.ID] {
			return fmt.Errorf("studio[%d]: duplicate id '%s'", i, s.ID)
		}
		ids[s.ID] = true

		if s.Name == "" {
			return fmt.Errorf("studio[%d]: name is required", i)
		}
	}
	return nil
}

// GetStudioByID returns the studio config by ID, or nil.
func (c *StudiosConfig) GetStudioByID(id string) *model.Studio {
	for i := range c.Studios {
		if c.Studios[i].ID == id {
			return &c.Studios[i]
		}
	}
	return nil
}
