package schema

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// typesOf returns the declared JSON types of s, or nil when unconstrained.
func typesOf(s *jsonschema.Schema) []string {
	if s == nil {
		return nil
	}
	if s.Type != "" {
		return []string{s.Type}
	}
	return s.Types
}

// instanceType names the JSON type of a decoded value. Whole numbers report "integer".
func instanceType(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return "integer"
		}
		return "number"
	case float32:
		return instanceType(float64(t))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return "integer"
		}
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return reflect.TypeOf(v).Kind().String()
}

func typeMatches(want, got string) bool {
	if want == got {
		return true
	}
	return want == "number" && got == "integer"
}

// matchesTypes reports whether v satisfies at least one declared type.
func matchesTypes(s *jsonschema.Schema, v any) bool {
	types := typesOf(s)
	if len(types) == 0 {
		return true
	}
	got := instanceType(v)
	for _, want := range types {
		if typeMatches(want, got) {
			return true
		}
	}
	return false
}

// isFalse reports whether s is the boolean schema false, which the decoder
// represents as {"not": {}}.
func isFalse(s *jsonschema.Schema) bool {
	return s != nil && s.Not != nil && reflect.ValueOf(*s.Not).IsZero()
}

// forbidsAdditional reports whether an object schema rejects undeclared properties.
func forbidsAdditional(s *jsonschema.Schema) bool {
	return s != nil && isFalse(s.AdditionalProperties)
}

func isRequired(s *jsonschema.Schema, name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

var patternCache sync.Map // string -> *regexp.Regexp (nil when invalid)

func compiledPattern(p string) *regexp.Regexp {
	if re, ok := patternCache.Load(p); ok {
		return re.(*regexp.Regexp)
	}
	re, err := regexp.Compile(p)
	if err != nil {
		re = nil
	}
	patternCache.Store(p, re)
	return re
}

// matchingPatterns returns the pattern sub-schemas whose regexp matches name.
func matchingPatterns(s *jsonschema.Schema, name string) []*jsonschema.Schema {
	var out []*jsonschema.Schema
	for p, sub := range s.PatternProperties {
		if re := compiledPattern(p); re != nil && re.MatchString(name) {
			out = append(out, sub)
		}
	}
	return out
}

// declares reports whether name is a declared property or matches a declared pattern.
func declares(s *jsonschema.Schema, name string) bool {
	if _, ok := s.Properties[name]; ok {
		return true
	}
	return len(matchingPatterns(s, name)) > 0
}

func equalJSON(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// deepCopy clones a decoded JSON value so callers never observe mutation.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
