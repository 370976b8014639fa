package schema

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"pantrygen"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// DefaultMaxErrors bounds the number of violations reported per validation.
const DefaultMaxErrors = 30

// Validator checks a decoded instance against an output schema and collects
// every violation instead of stopping at the first one.
type Validator struct {
	// MaxErrors truncates the sorted result. Zero means DefaultMaxErrors and a
	// negative value disables truncation.
	MaxErrors int

	// SkipMinItems validates shape only. It is used for clarification and
	// error payloads, which legitimately carry empty collections.
	SkipMinItems bool
}

// Validate runs a default Validator.
func Validate(s *jsonschema.Schema, instance any) []pantrygen.ValidationError {
	return Validator{}.Validate(s, instance)
}

// Validate returns the violations sorted by path. An empty result means valid.
func (v Validator) Validate(s *jsonschema.Schema, instance any) []pantrygen.ValidationError {
	w := walker{skipMinItems: v.SkipMinItems}
	w.walk(s, instance, "$")

	sort.SliceStable(w.errs, func(i, j int) bool {
		if w.errs[i].Path != w.errs[j].Path {
			return w.errs[i].Path < w.errs[j].Path
		}
		return w.errs[i].Message < w.errs[j].Message
	})

	max := v.MaxErrors
	if max == 0 {
		max = DefaultMaxErrors
	}
	if max > 0 && len(w.errs) > max {
		w.errs = w.errs[:max]
	}
	return w.errs
}

type walker struct {
	skipMinItems bool
	errs         []pantrygen.ValidationError
}

func (w *walker) add(path, format string, args ...any) {
	w.errs = append(w.errs, pantrygen.ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (w *walker) walk(s *jsonschema.Schema, val any, path string) {
	if s == nil {
		return
	}
	if isFalse(s) {
		w.add(path, "value is not allowed here")
		return
	}
	if !matchesTypes(s, val) {
		w.add(path, "expected %s, got %s", strings.Join(typesOf(s), " or "), instanceType(val))
		return
	}
	if len(s.Enum) > 0 && !inEnum(s.Enum, val) {
		w.add(path, "must be one of %s", formatEnum(s.Enum))
	}

	switch t := val.(type) {
	case string:
		w.checkString(s, t, path)
	case map[string]any:
		w.checkObject(s, t, path)
	case []any:
		w.checkArray(s, t, path)
	default:
		if f, ok := toFloat(val); ok {
			w.checkNumber(s, f, path)
		}
	}
}

func (w *walker) checkString(s *jsonschema.Schema, str, path string) {
	n := utf8.RuneCountInString(str)
	if s.MinLength != nil && n < *s.MinLength {
		if *s.MinLength == 1 {
			w.add(path, "must not be empty")
		} else {
			w.add(path, "must be at least %d characters", *s.MinLength)
		}
	}
	if s.MaxLength != nil && n > *s.MaxLength {
		w.add(path, "must be at most %d characters", *s.MaxLength)
	}
	if s.Pattern != "" {
		if re := compiledPattern(s.Pattern); re != nil && !re.MatchString(str) {
			w.add(path, "must match pattern %q", s.Pattern)
		}
	}
}

func (w *walker) checkNumber(s *jsonschema.Schema, f float64, path string) {
	if s.Minimum != nil && f < *s.Minimum {
		w.add(path, "must be >= %v", *s.Minimum)
	}
	if s.Maximum != nil && f > *s.Maximum {
		w.add(path, "must be <= %v", *s.Maximum)
	}
}

func (w *walker) checkObject(s *jsonschema.Schema, obj map[string]any, path string) {
	for _, name := range s.Required {
		if _, ok := obj[name]; !ok {
			w.add(joinPath(path, name), "required property is missing")
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		child := joinPath(path, k)
		matched := false
		if sub, ok := s.Properties[k]; ok {
			matched = true
			w.walk(sub, obj[k], child)
		}
		for _, sub := range matchingPatterns(s, k) {
			matched = true
			w.walk(sub, obj[k], child)
		}
		if matched {
			continue
		}
		if forbidsAdditional(s) {
			w.add(child, "property is not allowed")
		} else if s.AdditionalProperties != nil {
			w.walk(s.AdditionalProperties, obj[k], child)
		}
	}
}

func (w *walker) checkArray(s *jsonschema.Schema, arr []any, path string) {
	if !w.skipMinItems && s.MinItems != nil && len(arr) < *s.MinItems {
		w.add(path, "must contain at least %d items, got %d", *s.MinItems, len(arr))
	}
	if s.MaxItems != nil && len(arr) > *s.MaxItems {
		w.add(path, "must contain at most %d items, got %d", *s.MaxItems, len(arr))
	}
	if s.Items == nil {
		return
	}
	for i, el := range arr {
		w.walk(s.Items, el, fmt.Sprintf("%s[%d]", path, i))
	}
}

func joinPath(parent, name string) string {
	return parent + "." + name
}

func inEnum(enum []any, val any) bool {
	for _, e := range enum {
		if equalJSON(e, val) {
			return true
		}
	}
	return false
}

func formatEnum(enum []any) string {
	parts := make([]string, len(enum))
	for i, e := range enum {
		parts[i] = fmt.Sprintf("%v", e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
