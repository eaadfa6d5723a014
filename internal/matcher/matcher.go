// Package matcher implements validation matchers: value expressions of the
// form @name('arg', ...)@ that compare a received value against a rule
// instead of a literal.
package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Func decides whether value satisfies the matcher given its arguments.
// An error reports malformed matcher usage, not a mismatch.
type Func func(value string, args []string) (bool, error)

// Registry maps matcher names to their implementation.
type Registry struct {
	mu       sync.RWMutex
	matchers map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{matchers: make(map[string]Func)}
}

// NewDefaultRegistry creates a registry with all built-in matchers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for name, fn := range builtins {
		r.Register(name, fn)
	}
	return r
}

// Register adds or replaces a matcher.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchers[name] = fn
}

// Lookup returns the matcher registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.matchers[name]
	return fn, ok
}

// IsExpression reports whether s is a matcher expression.
func IsExpression(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) > 2 && strings.HasPrefix(s, "@") && strings.HasSuffix(s, "@")
}

// Match compares value against expected. A matcher expression is evaluated
// by the registered matcher, anything else is compared literally.
func (r *Registry) Match(value, expected string) (bool, error) {
	if !IsExpression(expected) {
		return value == expected, nil
	}

	name, args, err := Parse(expected)
	if err != nil {
		return false, err
	}

	fn, ok := r.Lookup(name)
	if !ok {
		return false, fmt.Errorf("unknown validation matcher '%s'", name)
	}
	return fn(value, args)
}

// Parse splits a matcher expression into name and arguments.
func Parse(expr string) (string, []string, error) {
	expr = strings.TrimSpace(expr)
	if !IsExpression(expr) {
		return "", nil, fmt.Errorf("not a validation matcher expression: %s", expr)
	}
	body := expr[1 : len(expr)-1]

	open := strings.Index(body, "(")
	if open < 0 {
		return strings.TrimSpace(body), nil, nil
	}
	if !strings.HasSuffix(body, ")") {
		return "", nil, fmt.Errorf("missing closing parenthesis in matcher expression: %s", expr)
	}

	name := strings.TrimSpace(body[:open])
	args, err := SplitArgs(body[open+1 : len(body)-1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid matcher expression %s: %w", expr, err)
	}
	return name, args, nil
}

// SplitArgs splits a comma separated argument list. Single-quoted arguments
// may contain commas; quotes are removed.
func SplitArgs(s string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inQuote := false
	quoted := false
	depth := 0

	flush := func() {
		arg := cur.String()
		if !quoted {
			arg = strings.TrimSpace(arg)
		}
		if arg != "" || quoted {
			args = append(args, arg)
		}
		cur.Reset()
		quoted = false
	}

	for _, ch := range s {
		switch {
		case ch == '\'':
			if inQuote {
				inQuote = false
			} else {
				inQuote = true
				quoted = true
				cur.Reset()
			}
		case inQuote:
			cur.WriteRune(ch)
		case ch == '(':
			depth++
			cur.WriteRune(ch)
		case ch == ')':
			depth--
			cur.WriteRune(ch)
		case ch == ',' && depth == 0:
			flush()
		case quoted && ch == ' ':
			// whitespace after a closing quote
		default:
			cur.WriteRune(ch)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	flush()
	return args, nil
}

func requireArgs(name string, args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("matcher '%s' requires %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func numeric(name string, value string, args []string, cmp func(a, b float64) bool) (bool, error) {
	if err := requireArgs(name, args, 1); err != nil {
		return false, err
	}
	limit, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return false, fmt.Errorf("matcher '%s' argument is not a number: %s", name, args[0])
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return false, nil
	}
	return cmp(v, limit), nil
}

var builtins = map[string]Func{
	"ignore": func(string, []string) (bool, error) { return true, nil },
	"equalsIgnoreCase": func(value string, args []string) (bool, error) {
		if err := requireArgs("equalsIgnoreCase", args, 1); err != nil {
			return false, err
		}
		return strings.EqualFold(value, args[0]), nil
	},
	"contains": func(value string, args []string) (bool, error) {
		if err := requireArgs("contains", args, 1); err != nil {
			return false, err
		}
		return strings.Contains(value, args[0]), nil
	},
	"containsIgnoreCase": func(value string, args []string) (bool, error) {
		if err := requireArgs("containsIgnoreCase", args, 1); err != nil {
			return false, err
		}
		return strings.Contains(strings.ToLower(value), strings.ToLower(args[0])), nil
	},
	"startsWith": func(value string, args []string) (bool, error) {
		if err := requireArgs("startsWith", args, 1); err != nil {
			return false, err
		}
		return strings.HasPrefix(value, args[0]), nil
	},
	"endsWith": func(value string, args []string) (bool, error) {
		if err := requireArgs("endsWith", args, 1); err != nil {
			return false, err
		}
		return strings.HasSuffix(value, args[0]), nil
	},
	"matches": func(value string, args []string) (bool, error) {
		if err := requireArgs("matches", args, 1); err != nil {
			return false, err
		}
		re, err := regexp.Compile("^(?:" + args[0] + ")$")
		if err != nil {
			return false, fmt.Errorf("matcher 'matches' has invalid pattern: %w", err)
		}
		return re.MatchString(value), nil
	},
	"isNumber": func(value string, _ []string) (bool, error) {
		_, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return err == nil, nil
	},
	"greaterThan": func(value string, args []string) (bool, error) {
		return numeric("greaterThan", value, args, func(a, b float64) bool { return a > b })
	},
	"lowerThan": func(value string, args []string) (bool, error) {
		return numeric("lowerThan", value, args, func(a, b float64) bool { return a < b })
	},
	"empty": func(value string, _ []string) (bool, error) {
		return value == "", nil
	},
	"notEmpty": func(value string, _ []string) (bool, error) {
		return value != "", nil
	},
	"stringLength": func(value string, args []string) (bool, error) {
		if err := requireArgs("stringLength", args, 1); err != nil {
			return false, err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("matcher 'stringLength' argument is not an integer: %s", args[0])
		}
		return len([]rune(value)) == n, nil
	},
	"uuid": func(value string, _ []string) (bool, error) {
		_, err := uuid.Parse(value)
		return err == nil, nil
	},
}
