// Package search translates dot-notated field queries into predicates over
// semi-structured node payloads. A query is a map of dotted paths to match
// values; a payload matches when every entry matches (logical AND).
package search

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Predicate reports whether a decoded JSON payload matches a query.
type Predicate func(payload map[string]interface{}) bool

// matcher is a compiled single-key match.
type matcher struct {
	path  []string
	match func(value interface{}, present bool) bool
}

// Translate compiles a query map into a payload predicate.
//
// Matching rules per value type:
//   - string containing '*': case-insensitive glob over a string value
//     ('*' is zero or more characters, the rest matches literally)
//   - plain string: exact, case-sensitive equality against a string value
//   - number: type-sensitive numeric equality (3 never matches "3")
//   - bool: type-sensitive boolean equality
//   - nil: matches when the path is absent or holds JSON null
//   - array/object: deep equality of the JSON values
//
// For any non-nil match value, a payload where the path does not exist does
// not match.
func Translate(query map[string]interface{}) Predicate {
	matchers := make([]matcher, 0, len(query))
	for key, want := range query {
		matchers = append(matchers, matcher{
			path:  strings.Split(key, "."),
			match: compileMatch(want),
		})
	}

	return func(payload map[string]interface{}) bool {
		for _, m := range matchers {
			value, present := descend(payload, m.path)
			if !m.match(value, present) {
				return false
			}
		}
		return true
	}
}

func compileMatch(want interface{}) func(interface{}, bool) bool {
	switch want := want.(type) {
	case nil:
		return func(value interface{}, present bool) bool {
			return !present || value == nil
		}
	case string:
		if strings.Contains(want, "*") {
			re := globToRegexp(want)
			return func(value interface{}, present bool) bool {
				s, ok := value.(string)
				return present && ok && re.MatchString(s)
			}
		}
		return func(value interface{}, present bool) bool {
			s, ok := value.(string)
			return present && ok && s == want
		}
	case bool:
		return func(value interface{}, present bool) bool {
			b, ok := value.(bool)
			return present && ok && b == want
		}
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		wantNum, ok := toFloat(want)
		if !ok {
			// Unparsable number, nothing can equal it.
			return func(interface{}, bool) bool { return false }
		}
		return func(value interface{}, present bool) bool {
			got, ok := toFloat(value)
			return present && ok && got == wantNum
		}
	default:
		// Arrays and objects: compare canonical JSON encodings. Marshal
		// sorts object keys, so equal values encode identically.
		wantJSON, err := json.Marshal(want)
		if err != nil {
			return func(interface{}, bool) bool { return false }
		}
		return func(value interface{}, present bool) bool {
			if !present {
				return false
			}
			gotJSON, err := json.Marshal(value)
			return err == nil && string(gotJSON) == string(wantJSON)
		}
	}
}

// descend walks a payload tree along property-access steps. A step that
// parses as a non-negative integer indexes arrays.
func descend(value interface{}, path []string) (interface{}, bool) {
	current := interface{}(value)
	for _, step := range path {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[step]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(step)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func globToRegexp(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, part := range strings.Split(pattern, "*") {
		if part != "" {
			sb.WriteString(regexp.QuoteMeta(part))
		}
		sb.WriteString(".*")
	}
	expr := strings.TrimSuffix(sb.String(), ".*")
	if !strings.HasSuffix(pattern, "*") {
		expr += "$"
	}
	return regexp.MustCompile(expr)
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
