package config

import "time"

// EndpointTypeDirect is the in-process queue endpoint.
const EndpointTypeDirect = "direct"

// Config is the root of rehearse.yaml.
type Config struct {
	Defaults   DefaultsConfig         `yaml:"defaults"`
	Variables  map[string]interface{} `yaml:"variables,omitempty"`
	Namespaces map[string]string      `yaml:"namespaces,omitempty"`
	Queues     []QueueConfig          `yaml:"queues,omitempty"`
	Endpoints  []EndpointConfig       `yaml:"endpoints,omitempty"`
	// Scenarios lists scenario files or directories run when no path is
	// given on the command line.
	Scenarios []string `yaml:"scenarios,omitempty"`
}

// DefaultsConfig holds timing defaults applied when a scenario is silent.
type DefaultsConfig struct {
	ReceiveTimeout  time.Duration `yaml:"receiveTimeout"`
	PollingInterval time.Duration `yaml:"pollingInterval"`
	WaitTimeout     time.Duration `yaml:"waitTimeout"`
	WaitInterval    time.Duration `yaml:"waitInterval"`
	// CaseTimeout bounds a single test case run. Zero means no bound.
	CaseTimeout time.Duration `yaml:"caseTimeout"`
	// AsyncGrace is how long a finished case waits for detached async
	// branches before reporting.
	AsyncGrace time.Duration `yaml:"asyncGrace"`
}

// QueueConfig pre-declares a message queue.
type QueueConfig struct {
	Name            string        `yaml:"name"`
	PollingInterval time.Duration `yaml:"pollingInterval,omitempty"`
}

// EndpointConfig declares a named endpoint.
type EndpointConfig struct {
	Name            string        `yaml:"name"`
	Type            string        `yaml:"type"`
	Queue           string        `yaml:"queue"`
	Sync            bool          `yaml:"sync,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	PollingInterval time.Duration `yaml:"pollingInterval,omitempty"`
}
