// Package scenario loads test cases from YAML files.
//
// A scenario file holds one or more YAML documents, each describing a test
// case:
//
//	name: order-roundtrip
//	tags: [smoke]
//	timeout: 30s
//	variables:
//	  orderId: rehearse:randomUUID()
//	actions:
//	  - send:
//	      endpoint: orders
//	      message:
//	        payload: {"id": "${orderId}"}
//	        headers: {operation: create}
//	  - receive:
//	      endpoint: orders
//	      selector: "operation = 'create'"
//	      timeout: 1000
//	      message:
//	        payload: {"id": "${orderId}"}
//	finally:
//	  - purge-queues: {queues: [orders]}
//
// Every action is a single-key map whose key is the action kind. Durations
// are Go durations ("1.5s") or plain integers read as milliseconds.
package scenario
