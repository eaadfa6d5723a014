package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfig_PartialFile(t *testing.T) {
	path := writeConfig(t, `
defaults:
  receiveTimeout: 2s
  caseTimeout: 1m
variables:
  customer: acme
namespaces:
  ord: urn:orders
queues:
  - name: orders
    pollingInterval: 50ms
endpoints:
  - name: orderClient
    type: direct
    queue: orders
    sync: true
    timeout: 3s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Defaults.ReceiveTimeout)
	assert.Equal(t, time.Minute, cfg.Defaults.CaseTimeout)
	assert.Equal(t, DefaultPollingInterval, cfg.Defaults.PollingInterval)
	assert.Equal(t, DefaultWaitInterval, cfg.Defaults.WaitInterval)
	assert.Equal(t, "acme", cfg.Variables["customer"])
	assert.Equal(t, "urn:orders", cfg.Namespaces["ord"])
	require.Len(t, cfg.Queues, 1)
	assert.Equal(t, 50*time.Millisecond, cfg.Queues[0].PollingInterval)
	require.Len(t, cfg.Endpoints, 1)
	assert.True(t, cfg.Endpoints[0].Sync)
	assert.Equal(t, 3*time.Second, cfg.Endpoints[0].Timeout)
	assert.NoError(t, cfg.Validate(path))
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeConfig(t, "defaults: [unclosed")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "error loading config from")
}

func TestValidate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Defaults.WaitTimeout = -time.Second
	cfg.Queues = []QueueConfig{{Name: "orders"}, {Name: "orders"}, {Name: ""}}
	cfg.Endpoints = []EndpointConfig{
		{Name: "ok", Type: EndpointTypeDirect, Queue: "orders"},
		{Name: "bad", Type: "http"},
		{Name: "has space", Type: EndpointTypeDirect, Queue: "q"},
	}

	err := cfg.Validate("rehearse.yaml")
	require.Error(t, err)

	var collection ConfigurationErrorCollection
	require.True(t, errors.As(err, &collection))
	assert.Equal(t, 6, collection.Count())

	report := collection.GetDetailedReport()
	assert.Contains(t, report, "defaults.waitTimeout must not be negative")
	assert.Contains(t, report, "duplicate queue 'orders'")
	assert.Contains(t, report, "endpoint 'bad': field 'type': must be one of: direct")
	assert.Contains(t, report, "endpoint 'bad': field 'queue': is required for endpoint")
	assert.Contains(t, report, "cannot contain spaces or quotes")
	assert.Contains(t, report, "set type: direct")
}
