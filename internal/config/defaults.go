package config

import "time"

const (
	// DefaultConfigFile is looked up in the working directory.
	DefaultConfigFile = "rehearse.yaml"

	DefaultReceiveTimeout  = 5 * time.Second
	DefaultPollingInterval = 100 * time.Millisecond
	DefaultWaitTimeout     = 5 * time.Second
	DefaultWaitInterval    = time.Second
)

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() Config {
	return Config{
		Defaults: DefaultsConfig{
			ReceiveTimeout:  DefaultReceiveTimeout,
			PollingInterval: DefaultPollingInterval,
			WaitTimeout:     DefaultWaitTimeout,
			WaitInterval:    DefaultWaitInterval,
		},
		Variables:  map[string]interface{}{},
		Namespaces: map[string]string{},
	}
}
