package selector

import (
	"bytes"
	"encoding/xml"
	"strings"

	"rehearse/internal/jsonpath"
	"rehearse/internal/matcher"
	"rehearse/internal/message"
	"rehearse/pkg/logging"
)

// Selector is a stateless predicate over a message.
type Selector interface {
	Accept(msg *message.Message) bool
}

// Func adapts a plain function to the Selector interface.
type Func func(msg *message.Message) bool

// Accept implements Selector
func (f Func) Accept(msg *message.Message) bool {
	return f(msg)
}

// All accepts every message.
var All Selector = Func(func(*message.Message) bool { return true })

// ValueMatcher compares a value with an expectation that may be a validation
// matcher expression. *matcher.Registry implements it.
type ValueMatcher interface {
	Match(value, expected string) (bool, error)
}

func matchValue(m ValueMatcher, actual, expected string) bool {
	if m == nil || !matcher.IsExpression(expected) {
		return actual == expected
	}
	ok, err := m.Match(actual, expected)
	if err != nil {
		logging.Debug("Selector", "Validation matcher %s failed: %v", expected, err)
		return false
	}
	return ok
}

// HeaderSelector accepts messages whose header Key equals Value.
type HeaderSelector struct {
	Key   string
	Value string
	// IgnoreCase makes the header name lookup case-insensitive
	IgnoreCase bool
	// Matchers resolves validation matcher expressions in Value
	Matchers ValueMatcher
}

// Accept implements Selector
func (s *HeaderSelector) Accept(msg *message.Message) bool {
	if msg == nil {
		return false
	}

	actual, ok := msg.HeaderString(s.Key)
	if !ok && s.IgnoreCase {
		for _, name := range msg.HeaderNames() {
			if strings.EqualFold(name, s.Key) {
				actual, ok = msg.HeaderString(name)
				break
			}
		}
	}
	if !ok {
		return false
	}
	return matchValue(s.Matchers, actual, s.Value)
}

// JSONPathSelector accepts messages whose JSON payload has Value at Path.
type JSONPathSelector struct {
	Path     string
	Value    string
	Matchers ValueMatcher
}

// Accept implements Selector
func (s *JSONPathSelector) Accept(msg *message.Message) bool {
	if msg == nil {
		return false
	}
	doc, err := jsonpath.Decode(msg.Payload)
	if err != nil {
		return false
	}
	v, err := jsonpath.Get(doc, s.Path)
	if err != nil {
		return false
	}
	return matchValue(s.Matchers, jsonpath.String(v), s.Value)
}

// RootQNameSelector accepts XML payloads whose root element matches Value,
// given either as "local" or as "{namespace}local".
type RootQNameSelector struct {
	Value string
}

// Accept implements Selector
func (s *RootQNameSelector) Accept(msg *message.Message) bool {
	if msg == nil {
		return false
	}
	name, ok := rootElement(msg.PayloadString())
	if !ok {
		return false
	}

	want := strings.TrimSpace(s.Value)
	if strings.HasPrefix(want, "{") {
		end := strings.Index(want, "}")
		if end < 0 {
			return false
		}
		return name.Space == want[1:end] && name.Local == want[end+1:]
	}
	return name.Local == want
}

func rootElement(payload string) (xml.Name, bool) {
	dec := xml.NewDecoder(bytes.NewBufferString(payload))
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.Name{}, false
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name, true
		}
	}
}

// PayloadSelector accepts messages whose textual payload equals Value.
type PayloadSelector struct {
	Value    string
	Matchers ValueMatcher
}

// Accept implements Selector
func (s *PayloadSelector) Accept(msg *message.Message) bool {
	if msg == nil {
		return false
	}
	return matchValue(s.Matchers, msg.PayloadString(), s.Value)
}

// AndSelector accepts a message only if every sub-selector accepts it.
type AndSelector []Selector

// Accept implements Selector
func (a AndSelector) Accept(msg *message.Message) bool {
	for _, s := range a {
		if !s.Accept(msg) {
			return false
		}
	}
	return true
}
