package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML loads a YAML file into target.
func LoadYAML(path string, target interface{}) error {
	// #nosec G304 -- path is provided by the caller; validate untrusted input upstream.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read YAML file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML: %w", err)
	}
	return nil
}

// LoadJSON loads a JSON file into target.
func LoadJSON(path string, target interface{}) error {
	// #nosec G304 -- path is provided by the caller; validate untrusted input upstream.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read JSON file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal JSON: %w", err)
	}
	return nil
}
