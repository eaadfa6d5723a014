package selector

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"rehearse/internal/failure"
)

// Parse builds a selector from an expression of the form
//
//	key = 'value' (AND key = 'value')*
//
// Values are single-quoted and may contain '=' and 'AND'. Keys may carry a
// factory prefix such as "jsonpath:" or "root-qname:". Malformed input is a
// configuration failure.
func Parse(expr string, factories *FactoryRegistry, matchers ValueMatcher) (Selector, error) {
	clauses, err := parseClauses(expr)
	if err != nil {
		return nil, err
	}

	selectors := make(AndSelector, 0, len(clauses))
	for _, c := range clauses {
		s, err := buildClause(factories, c.key, c.value, matchers)
		if err != nil {
			return nil, err
		}
		selectors = append(selectors, s)
	}

	if len(selectors) == 1 {
		return selectors[0], nil
	}
	return selectors, nil
}

// ParseMap builds an AND selector from key/value pairs. Keys are applied in
// sorted order so the result is deterministic.
func ParseMap(clauses map[string]string, factories *FactoryRegistry, matchers ValueMatcher) (Selector, error) {
	if len(clauses) == 0 {
		return nil, failure.Configuration("empty message selector")
	}
	keys := make([]string, 0, len(clauses))
	for k := range clauses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	selectors := make(AndSelector, 0, len(keys))
	for _, k := range keys {
		s, err := buildClause(factories, k, clauses[k], matchers)
		if err != nil {
			return nil, err
		}
		selectors = append(selectors, s)
	}
	if len(selectors) == 1 {
		return selectors[0], nil
	}
	return selectors, nil
}

// Expression renders key/value pairs as a selector expression.
func Expression(clauses map[string]string) string {
	keys := make([]string, 0, len(clauses))
	for k := range clauses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s = '%s'", k, clauses[k]))
	}
	return strings.Join(parts, " AND ")
}

func buildClause(factories *FactoryRegistry, key, value string, matchers ValueMatcher) (Selector, error) {
	if factories == nil {
		return &HeaderSelector{Key: key, Value: value, Matchers: matchers}, nil
	}
	s, err := factories.Build(key, value, matchers)
	if err != nil {
		return nil, failure.Configuration("invalid selector clause %s = '%s': %v", key, value, err)
	}
	return s, nil
}

type clause struct {
	key   string
	value string
}

func parseClauses(expr string) ([]clause, error) {
	var clauses []clause
	s := expr
	pos := 0

	skipSpace := func() {
		for pos < len(s) && unicode.IsSpace(rune(s[pos])) {
			pos++
		}
	}

	for {
		skipSpace()
		if pos >= len(s) {
			if len(clauses) == 0 {
				return nil, failure.Configuration("empty message selector")
			}
			return nil, failure.Configuration("message selector '%s' ends with a dangling AND", expr)
		}

		eq := strings.IndexByte(s[pos:], '=')
		if eq < 0 {
			return nil, failure.Configuration("invalid message selector '%s': expected key = 'value'", expr)
		}
		key := strings.TrimSpace(s[pos : pos+eq])
		if key == "" {
			return nil, failure.Configuration("invalid message selector '%s': missing key", expr)
		}
		if strings.ContainsAny(key, "'<>!") || strings.IndexFunc(key, unicode.IsSpace) >= 0 {
			return nil, failure.Configuration("unsupported operation in message selector '%s' near '%s'", expr, key)
		}
		pos += eq + 1

		skipSpace()
		if pos >= len(s) || s[pos] != '\'' {
			return nil, failure.Configuration("invalid message selector '%s': value for '%s' must be single-quoted", expr, key)
		}
		end := strings.IndexByte(s[pos+1:], '\'')
		if end < 0 {
			return nil, failure.Configuration("invalid message selector '%s': unterminated quote", expr)
		}
		value := s[pos+1 : pos+1+end]
		pos += end + 2
		clauses = append(clauses, clause{key: key, value: value})

		skipSpace()
		if pos >= len(s) {
			return clauses, nil
		}

		word := s[pos:]
		if len(word) >= 4 && word[:3] == "AND" && unicode.IsSpace(rune(word[3])) {
			pos += 3
			continue
		}
		next := word
		if i := strings.IndexFunc(next, unicode.IsSpace); i > 0 {
			next = next[:i]
		}
		return nil, failure.Configuration("unsupported operation '%s' in message selector '%s', only AND is supported", next, expr)
	}
}
