package schema

import (
	"fmt"
	"strings"
)

// Item is one generated entry located through an ItemSpec.
type Item struct {
	Path  string
	Value map[string]any
}

// Items returns every item in payload, in document order.
func (s ItemSpec) Items(payload map[string]any) []Item {
	var out []Item
	s.visit(payload, s.Path, "$", func(arr []any, path string) []any {
		for i, el := range arr {
			if m, ok := el.(map[string]any); ok {
				out = append(out, Item{Path: fmt.Sprintf("%s[%d]", path, i), Value: m})
			}
		}
		return arr
	})
	return out
}

// Filter returns a copy of payload keeping only the items for which keep
// returns true. Item paths refer to positions in the original payload.
func (s ItemSpec) Filter(payload map[string]any, keep func(Item) bool) map[string]any {
	if payload == nil {
		return nil
	}
	out := deepCopy(payload).(map[string]any)
	s.visit(out, s.Path, "$", func(arr []any, path string) []any {
		kept := make([]any, 0, len(arr))
		for i, el := range arr {
			m, ok := el.(map[string]any)
			if ok && !keep(Item{Path: fmt.Sprintf("%s[%d]", path, i), Value: m}) {
				continue
			}
			kept = append(kept, el)
		}
		return kept
	})
	return out
}

// visit walks segments of path through nested objects and arrays and lets fn
// replace the item array found at the end.
func (s ItemSpec) visit(node any, path []string, at string, fn func([]any, string) []any) any {
	if len(path) == 0 {
		return node
	}
	switch t := node.(type) {
	case map[string]any:
		key := path[0]
		child, ok := t[key]
		if !ok {
			return t
		}
		childPath := joinPath(at, key)
		if len(path) == 1 {
			if arr, ok := child.([]any); ok {
				t[key] = fn(arr, childPath)
			}
			return t
		}
		t[key] = s.visit(child, path[1:], childPath, fn)
		return t
	case []any:
		for i, el := range t {
			t[i] = s.visit(el, path, fmt.Sprintf("%s[%d]", at, i), fn)
		}
		return t
	}
	return node
}

// Name returns the item's display name.
func (s ItemSpec) Name(item map[string]any) string {
	if name, ok := item[s.NameField].(string); ok && name != "" {
		return name
	}
	if id, ok := item["id"].(string); ok {
		return id
	}
	return ""
}

// IngredientIDs returns the inventory identifiers an item references. Plain
// string entries count as identifiers.
func (s ItemSpec) IngredientIDs(item map[string]any) []string {
	var ids []string
	for _, el := range s.ingredients(item) {
		switch t := el.(type) {
		case string:
			ids = append(ids, t)
		case map[string]any:
			if id, ok := t[s.IngredientIDField].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// IngredientTerms returns every identifier and name an item's ingredients
// carry, for matching against safety constraints.
func (s ItemSpec) IngredientTerms(item map[string]any) []string {
	var terms []string
	for _, el := range s.ingredients(item) {
		switch t := el.(type) {
		case string:
			terms = append(terms, t)
		case map[string]any:
			for _, k := range []string{s.IngredientIDField, "name"} {
				if v, ok := t[k].(string); ok && strings.TrimSpace(v) != "" {
					terms = append(terms, v)
				}
			}
		}
	}
	return terms
}

// Allergens returns the allergen tags the generator declared for an item.
func (s ItemSpec) Allergens(item map[string]any) []string {
	if s.AllergensField == "" {
		return nil
	}
	return StringList(item[s.AllergensField])
}

func (s ItemSpec) ingredients(item map[string]any) []any {
	arr, _ := item[s.IngredientsField].([]any)
	return arr
}
