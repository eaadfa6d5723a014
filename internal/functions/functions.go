// Package functions resolves function calls embedded in dynamic test content,
// such as rehearse:concat('order-', ${id}) or sprig:upper('x').
//
// Functions are grouped into libraries addressed by a prefix. The rehearse
// library holds the built-in helpers; the sprig library exposes the generic
// function map from github.com/Masterminds/sprig.
package functions

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Func is a single library function. Arguments arrive already resolved and
// unquoted.
type Func func(args []string) (string, error)

// Library is a named set of functions addressed by prefix.
type Library struct {
	Prefix string
	funcs  map[string]Func
}

// NewLibrary creates an empty library for prefix.
func NewLibrary(prefix string) *Library {
	return &Library{Prefix: prefix, funcs: make(map[string]Func)}
}

// Register adds or replaces a function.
func (l *Library) Register(name string, fn Func) {
	l.funcs[name] = fn
}

// Lookup returns the named function.
func (l *Library) Lookup(name string) (Func, bool) {
	fn, ok := l.funcs[name]
	return fn, ok
}

// Names returns the function names in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.funcs))
	for name := range l.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds the libraries known to a process.
type Registry struct {
	mu        sync.RWMutex
	libraries map[string]*Library
}

var callStart = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9_]*):([a-zA-Z][a-zA-Z0-9_]*)\(`)

// NewRegistry creates a registry without libraries.
func NewRegistry() *Registry {
	return &Registry{libraries: make(map[string]*Library)}
}

// NewDefaultRegistry creates a registry with the rehearse and sprig libraries.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Add(Builtins())
	r.Add(Sprig())
	return r
}

// Add registers a library under its prefix.
func (r *Registry) Add(lib *Library) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.libraries[lib.Prefix] = lib
}

// Library returns the library registered for prefix.
func (r *Registry) Library(prefix string) (*Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.libraries[prefix]
	return lib, ok
}

// Call invokes prefix:name with args.
func (r *Registry) Call(prefix, name string, args []string) (string, error) {
	lib, ok := r.Library(prefix)
	if !ok {
		return "", fmt.Errorf("unknown function library '%s'", prefix)
	}
	fn, ok := lib.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown function '%s:%s'", prefix, name)
	}
	result, err := fn(args)
	if err != nil {
		return "", fmt.Errorf("function '%s:%s' failed: %w", prefix, name, err)
	}
	return result, nil
}

// Resolve replaces every function call in text whose prefix names a
// registered library. Text that only looks like a call under an unknown
// prefix (for example a URL) is left untouched.
func (r *Registry) Resolve(text string) (string, error) {
	var out strings.Builder
	rest := text

	for {
		loc := r.nextCall(rest)
		if loc == nil {
			out.WriteString(rest)
			return out.String(), nil
		}

		end, err := closingParen(rest, loc[1]-1)
		if err != nil {
			return "", fmt.Errorf("%w in '%s'", err, text)
		}

		value, err := r.evaluate(rest[loc[0] : end+1])
		if err != nil {
			return "", err
		}

		out.WriteString(rest[:loc[0]])
		out.WriteString(value)
		rest = rest[end+1:]
	}
}

// nextCall finds the first call whose prefix is a known library.
func (r *Registry) nextCall(s string) []int {
	offset := 0
	for {
		m := callStart.FindStringSubmatchIndex(s[offset:])
		if m == nil {
			return nil
		}
		prefix := s[offset+m[2] : offset+m[3]]
		if _, ok := r.Library(prefix); ok {
			return []int{offset + m[0], offset + m[1]}
		}
		offset += m[1]
	}
}

// evaluate runs a single complete call expression, resolving nested calls in
// its arguments first.
func (r *Registry) evaluate(call string) (string, error) {
	m := callStart.FindStringSubmatchIndex(call)
	prefix := call[m[2]:m[3]]
	name := call[m[4]:m[5]]
	inner := call[m[1] : len(call)-1]

	rawArgs, err := splitRaw(inner)
	if err != nil {
		return "", fmt.Errorf("%w in '%s'", err, call)
	}

	args := make([]string, 0, len(rawArgs))
	for _, raw := range rawArgs {
		arg := strings.TrimSpace(raw)
		switch {
		case len(arg) >= 2 && arg[0] == '\'' && arg[len(arg)-1] == '\'':
			args = append(args, arg[1:len(arg)-1])
		case r.nextCall(arg) != nil:
			resolved, err := r.Resolve(arg)
			if err != nil {
				return "", err
			}
			args = append(args, resolved)
		default:
			args = append(args, arg)
		}
	}

	return r.Call(prefix, name, args)
}

// closingParen returns the index of the parenthesis closing the one at open.
func closingParen(s string, open int) (int, error) {
	depth := 0
	inQuote := false
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote {
				depth--
				if depth == 0 {
					return i, nil
				}
			}
		}
	}
	return 0, fmt.Errorf("unbalanced function call")
}

// splitRaw splits an argument list at top-level commas, keeping quotes and
// nested calls intact.
func splitRaw(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var args []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote {
				depth--
			}
		case ',':
			if !inQuote && depth == 0 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	return append(args, s[start:]), nil
}
