package schema

import (
	"fmt"
	"strings"

	"pantrygen"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// GenericFailureMessage is used when a non-success payload explains nothing.
const GenericFailureMessage = "The generator could not complete this request."

// Repairer applies structural fix-ups to a generated instance before strict
// validation. It only adds scaffolding (sentinel defaults, padded copies,
// canonical field names) and removes undeclared properties; it never invents
// semantic content.
type Repairer struct {
	Hints RepairHints

	// NewID returns the suffix used to uniquify identifiers of padded array
	// elements. Defaults to a random UUID.
	NewID func() string
}

// NewRepairer returns a Repairer for the task.
func NewRepairer(task TaskSpec) Repairer {
	return Repairer{Hints: task.Repair}
}

// Repair returns a repaired copy of instance. The input is never modified.
func (r Repairer) Repair(instance map[string]any, s *jsonschema.Schema) map[string]any {
	if instance == nil {
		return nil
	}
	out := deepCopy(instance).(map[string]any)
	if s == nil {
		return out
	}

	defaulted := r.applyDefaults(out, s)
	r.synthesizeMessage(out, s)
	r.normalizeAliases(out, s, defaulted)
	r.pad(out, s)
	prune(out, s)
	return out
}

// applyDefaults substitutes sentinel defaults for required top-level scalars
// that are missing, empty or of the wrong type. It reports which fields it set.
func (r Repairer) applyDefaults(obj map[string]any, s *jsonschema.Schema) map[string]bool {
	set := map[string]bool{}
	for _, name := range s.Required {
		sub := s.Properties[name]
		if !isScalar(sub) {
			continue
		}

		val, present := obj[name]
		if name == r.Hints.StatusField && present {
			if str, ok := val.(string); ok {
				if st, ok := pantrygen.ParseStatus(str); ok {
					obj[name] = string(st)
					continue
				}
				if strings.TrimSpace(str) != "" {
					// Unknown status text is left for validation to report.
					continue
				}
			}
		}

		if present && matchesTypes(sub, val) && !rejectsEmpty(sub, val) {
			continue
		}
		def, ok := r.Hints.Defaults[name]
		if !ok {
			continue
		}
		obj[name] = def
		set[name] = true
	}
	return set
}

// synthesizeMessage fills in a missing explanation on a non-success payload,
// preferring any clarification questions the generator returned.
func (r Repairer) synthesizeMessage(obj map[string]any, s *jsonschema.Schema) {
	status, _ := obj[r.Hints.StatusField].(string)
	st, ok := pantrygen.ParseStatus(status)
	if !ok || st == pantrygen.StatusOK {
		return
	}
	if _, declared := s.Properties[r.Hints.MessageField]; !declared && forbidsAdditional(s) {
		return
	}
	if msg, _ := obj[r.Hints.MessageField].(string); strings.TrimSpace(msg) != "" {
		return
	}

	if qs := r.questions(obj); len(qs) > 0 {
		obj[r.Hints.MessageField] = "Clarification needed: " + strings.Join(qs, " ")
		return
	}
	obj[r.Hints.MessageField] = GenericFailureMessage
}

func (r Repairer) questions(obj map[string]any) []string {
	keys := []string{r.Hints.QuestionsField}
	for alias, canonical := range r.Hints.Aliases {
		if canonical == r.Hints.QuestionsField {
			keys = append(keys, alias)
		}
	}
	for _, k := range keys {
		if qs := StringList(obj[k]); len(qs) > 0 {
			return qs
		}
	}
	return nil
}

// normalizeAliases renames alias keys to their canonical names wherever the
// canonical field is absent and the alias could not be valid as written.
func (r Repairer) normalizeAliases(obj map[string]any, s *jsonschema.Schema, overridable map[string]bool) {
	if len(r.Hints.Aliases) == 0 || s == nil {
		return
	}
	for alias, canonical := range r.Hints.Aliases {
		val, ok := obj[alias]
		if !ok || declares(s, alias) {
			continue
		}
		if _, declared := s.Properties[canonical]; !declared {
			continue
		}
		_, has := obj[canonical]
		if has && !overridable[canonical] {
			continue
		}
		if !has && !forbidsAdditional(s) && !isRequired(s, canonical) {
			continue
		}
		obj[canonical] = val
		delete(obj, alias)
	}

	for k, v := range obj {
		sub, ok := s.Properties[k]
		if !ok {
			continue
		}
		r.eachObject(v, sub, func(child map[string]any, cs *jsonschema.Schema) {
			r.normalizeAliases(child, cs, nil)
		})
	}
}

// eachObject calls fn for val when it is an object, or for every object
// element when val is an array.
func (r Repairer) eachObject(val any, s *jsonschema.Schema, fn func(map[string]any, *jsonschema.Schema)) {
	switch t := val.(type) {
	case map[string]any:
		fn(t, s)
	case []any:
		if s.Items == nil {
			return
		}
		for _, el := range t {
			if m, ok := el.(map[string]any); ok {
				fn(m, s.Items)
			}
		}
	}
}

// pad grows non-empty arrays that fall short of minItems by duplicating their
// last element. Empty arrays are left alone.
func (r Repairer) pad(val any, s *jsonschema.Schema) any {
	if s == nil {
		return val
	}
	switch t := val.(type) {
	case map[string]any:
		for k, v := range t {
			if sub, ok := s.Properties[k]; ok {
				t[k] = r.pad(v, sub)
			}
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = r.pad(el, s.Items)
		}
		if s.MinItems == nil || len(t) == 0 {
			return t
		}
		for len(t) < *s.MinItems {
			t = append(t, r.duplicate(t[len(t)-1]))
		}
		return t
	}
	return val
}

func (r Repairer) duplicate(el any) any {
	cp := deepCopy(el)
	obj, ok := cp.(map[string]any)
	if !ok || r.Hints.IDField == "" {
		return cp
	}
	base, _ := obj[r.Hints.IDField].(string)
	if base == "" {
		base = "item"
	}
	obj[r.Hints.IDField] = fmt.Sprintf("%s-%s", base, r.newID())
	return obj
}

func (r Repairer) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

// prune deletes undeclared properties from objects whose schema forbids them,
// recursing only into declared sub-schemas.
func prune(val any, s *jsonschema.Schema) {
	if s == nil {
		return
	}
	switch t := val.(type) {
	case map[string]any:
		strict := forbidsAdditional(s)
		for k, v := range t {
			sub, declared := s.Properties[k]
			patterns := matchingPatterns(s, k)
			if !declared && len(patterns) == 0 {
				if strict {
					delete(t, k)
				}
				continue
			}
			if declared {
				prune(v, sub)
			}
			for _, p := range patterns {
				prune(v, p)
			}
		}
	case []any:
		for _, el := range t {
			prune(el, s.Items)
		}
	}
}

func isScalar(s *jsonschema.Schema) bool {
	types := typesOf(s)
	if len(types) == 0 {
		return false
	}
	for _, t := range types {
		switch t {
		case "string", "number", "integer", "boolean":
		default:
			return false
		}
	}
	return true
}

// rejectsEmpty reports whether val is an empty string the schema would reject.
func rejectsEmpty(s *jsonschema.Schema, val any) bool {
	str, ok := val.(string)
	if !ok || str != "" {
		return false
	}
	if s.MinLength != nil && *s.MinLength > 0 {
		return true
	}
	return len(s.Enum) > 0 && !inEnum(s.Enum, "")
}

// StringList converts a decoded JSON array into its non-empty string elements.
func StringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			arr = make([]any, len(ss))
			for i, s := range ss {
				arr[i] = s
			}
		}
	}
	var out []string
	for _, el := range arr {
		if s, ok := el.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
