package message

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// HeaderID exposes the message id to header selectors and validators.
	HeaderID = "rehearse_message_id"
	// HeaderTimestamp exposes the creation time (unix millis) the same way.
	HeaderTimestamp = "rehearse_message_timestamp"
	// HeaderReplyQueue names the queue a synchronous consumer replies to.
	HeaderReplyQueue = "rehearse_reply_queue"
)

// Message is the envelope flowing through queues, endpoints and the store.
// The identity (ID, Timestamp) is assigned once at construction.
type Message struct {
	id        string
	timestamp time.Time

	// Payload is the message body in any representation
	Payload interface{}
	// Headers maps header names to values; keys are case-sensitive
	Headers map[string]interface{}
	// Name is an optional logical name used when storing the message
	Name string
}

// New creates a message with a freshly generated identity.
func New(payload interface{}) *Message {
	return &Message{
		id:        uuid.New().String(),
		timestamp: time.Now(),
		Payload:   payload,
		Headers:   make(map[string]interface{}),
	}
}

// ID returns the unique message id.
func (m *Message) ID() string {
	return m.id
}

// Timestamp returns the creation instant.
func (m *Message) Timestamp() time.Time {
	return m.timestamp
}

// SetHeader sets a header value and returns the message for chaining.
func (m *Message) SetHeader(name string, value interface{}) *Message {
	if m.Headers == nil {
		m.Headers = make(map[string]interface{})
	}
	m.Headers[name] = value
	return m
}

// WithHeaders copies all given headers onto the message.
func (m *Message) WithHeaders(headers map[string]interface{}) *Message {
	for k, v := range headers {
		m.SetHeader(k, v)
	}
	return m
}

// Header looks up a header. The identity headers HeaderID and
// HeaderTimestamp are always present.
func (m *Message) Header(name string) (interface{}, bool) {
	switch name {
	case HeaderID:
		return m.id, true
	case HeaderTimestamp:
		return m.timestamp.UnixMilli(), true
	}
	v, ok := m.Headers[name]
	return v, ok
}

// HeaderString returns the header rendered as a string.
func (m *Message) HeaderString(name string) (string, bool) {
	v, ok := m.Header(name)
	if !ok {
		return "", false
	}
	return ValueString(v), true
}

// HeaderNames returns all header names including the identity headers,
// sorted for stable output.
func (m *Message) HeaderNames() []string {
	names := make([]string, 0, len(m.Headers)+2)
	names = append(names, HeaderID, HeaderTimestamp)
	for k := range m.Headers {
		if k == HeaderID || k == HeaderTimestamp {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names[2:])
	return names
}

// PayloadString renders the payload as text. Structured payloads are
// rendered as JSON.
func (m *Message) PayloadString() string {
	return ValueString(m.Payload)
}

// Copy returns a deep-enough copy that keeps the identity. Header maps are
// copied; payload values are shared.
func (m *Message) Copy() *Message {
	c := &Message{
		id:        m.id,
		timestamp: m.timestamp,
		Payload:   m.Payload,
		Name:      m.Name,
		Headers:   make(map[string]interface{}, len(m.Headers)),
	}
	for k, v := range m.Headers {
		c.Headers[k] = v
	}
	return c
}

// CopyWithNewIdentity returns a copy with a regenerated id and timestamp.
func (m *Message) CopyWithNewIdentity() *Message {
	c := m.Copy()
	c.id = uuid.New().String()
	c.timestamp = time.Now()
	return c
}

// String implements fmt.Stringer for log output.
func (m *Message) String() string {
	return fmt.Sprintf("Message[id: %s, payload: %s, headers: %v]", m.id, m.PayloadString(), m.Headers)
}

// ValueString renders any header or payload value as a string.
func ValueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", t)
	}
}
