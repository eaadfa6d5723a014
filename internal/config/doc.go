// Package config loads the rehearse runtime configuration.
//
// Configuration lives in a single YAML file, rehearse.yaml by default,
// holding timing defaults, global variables, namespace prefixes, message
// queues and endpoints:
//
//	defaults:
//	  receiveTimeout: 5s
//	  pollingInterval: 100ms
//	variables:
//	  customer: acme
//	queues:
//	  - name: orders
//	endpoints:
//	  - name: orderClient
//	    type: direct
//	    queue: orders
//	    sync: true
//
// A missing file is not an error: LoadConfig falls back to defaults.
// Validate reports every problem at once as a ConfigurationErrorCollection.
package config
