// Package selector implements message selectors: predicates used to pick a
// specific message out of a queue.
//
// Selectors are built from expressions such as
//
//	operation = 'order' AND jsonpath:order.id = '7'
//
// Each clause is resolved through a FactoryRegistry keyed by key prefix
// (header:, jsonpath:, root-qname:, payload:, or any custom prefix). A key
// that no factory claims is treated as a plain header name. Clause values may
// be validation matcher expressions like @startsWith('Foo')@.
package selector
