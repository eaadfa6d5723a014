package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rehearse/pkg/logging"
)

// LoadConfig loads configuration from path on top of the defaults. A missing
// file yields the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config found at %s, using defaults", path)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config from %s: %s", path, err)
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		// config malformed
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	config.applyDefaults()

	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}

// applyDefaults fills zero durations a partial file left unset.
func (c *Config) applyDefaults() {
	d := GetDefaultConfig().Defaults
	if c.Defaults.ReceiveTimeout == 0 {
		c.Defaults.ReceiveTimeout = d.ReceiveTimeout
	}
	if c.Defaults.PollingInterval == 0 {
		c.Defaults.PollingInterval = d.PollingInterval
	}
	if c.Defaults.WaitTimeout == 0 {
		c.Defaults.WaitTimeout = d.WaitTimeout
	}
	if c.Defaults.WaitInterval == 0 {
		c.Defaults.WaitInterval = d.WaitInterval
	}
	if c.Variables == nil {
		c.Variables = map[string]interface{}{}
	}
	if c.Namespaces == nil {
		c.Namespaces = map[string]string{}
	}
}
