package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// loadFile overlays the yaml file at name onto cfg. Keys absent from the file
// keep their current values.
func loadFile(name string, cfg *Config) error {
	filename, err := filepath.Abs(name)
	if err != nil {
		return err
	}
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	err = yaml.Unmarshal(yamlFile, cfg)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", filename, err)
	}

	return nil
}
