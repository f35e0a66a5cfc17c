package selectors

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultYAML []byte

// LoadFromPath reads and validates a selector document from disk.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selectors: %w", err)
	}
	return Load(data)
}

// Load parses and validates a selector document from bytes.
func Load(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse selectors yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the embedded selector document. It is kept valid by the
// package tests; a failure here means the embedded file was broken at build
// time.
func Default() *Config {
	c, err := Load(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded selectors.yaml invalid: %v", err))
	}
	return c
}
