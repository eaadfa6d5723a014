package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a test failure.
type Kind string

const (
	// KindTimeout marks a bounded wait that elapsed without success.
	KindTimeout Kind = "timeout"
	// KindValidation marks a received message that did not match expectations.
	KindValidation Kind = "validation"
	// KindConfiguration marks a setup problem that is never retried.
	KindConfiguration Kind = "configuration"
	// KindAggregate marks several concurrent failures folded into one.
	KindAggregate Kind = "aggregate"
	// KindAction is the generic kind for any other action failure.
	KindAction Kind = "action"
)

// ParseKind converts a textual kind into a Kind. The empty string is
// returned unchanged and means "any kind" to callers that match on kinds.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindTimeout, KindValidation, KindConfiguration, KindAggregate, KindAction:
		return k, nil
	default:
		return "", fmt.Errorf("unknown failure kind %q", s)
	}
}

// Error is a test failure raised by an action or by the messaging substrate.
type Error struct {
	// Kind classifies the failure
	Kind Kind
	// Action is the name of the action that failed (empty for substrate errors)
	Action string
	// Message is the human-readable description of the failure itself
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Action != "" {
		fmt.Fprintf(&b, "action '%s' failed", e.Action)
		if e.Message != "" {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
	} else {
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Timeout creates a timeout failure.
func Timeout(format string, args ...interface{}) *Error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation failure.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Configuration creates a configuration failure.
func Configuration(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// New creates a generic action failure.
func New(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAction, Message: fmt.Sprintf(format, args...)}
}

// Wrap attributes err to the named action. The kind of the innermost
// failure is preserved so containers can still match on it. Wrapping an
// error that is already attributed to the same action returns it as-is.
func Wrap(action string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) && fe.Action == action {
		return err
	}
	return &Error{Kind: KindOf(err), Action: action, Cause: err}
}

// AggregateError folds failures of concurrent branches into one report.
type AggregateError struct {
	Action   string
	Failures []error
}

// Error implements the error interface
func (a *AggregateError) Error() string {
	parts := make([]string, 0, len(a.Failures))
	for i, f := range a.Failures {
		parts = append(parts, fmt.Sprintf("[%d] %v", i+1, f))
	}
	prefix := fmt.Sprintf("%d of the concurrent actions failed", len(a.Failures))
	if a.Action != "" {
		prefix = fmt.Sprintf("action '%s' failed: %s", a.Action, prefix)
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Unwrap exposes every branch failure to errors.Is / errors.As.
func (a *AggregateError) Unwrap() []error {
	return a.Failures
}

// KindOf returns the kind of the outermost classified failure in err's
// chain. Errors that carry no kind are reported as KindAction.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case *AggregateError:
			return KindAggregate
		case *Error:
			if v.Kind != "" {
				return v.Kind
			}
		}
	}
	return KindAction
}

// Is reports whether err is a failure of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// RootMessage returns the message of the innermost failure in err's chain,
// without the action attribution added by Wrap.
func RootMessage(err error) string {
	msg := ""
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case *Error:
			if v.Message != "" {
				msg = v.Message
			}
			if v.Cause == nil {
				return msg
			}
		case *AggregateError:
			return v.Error()
		default:
			if errors.Unwrap(e) == nil {
				return e.Error()
			}
		}
	}
	return msg
}
