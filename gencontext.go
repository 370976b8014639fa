package pantrygen

import (
	"encoding/json"
	"sort"
)

// VarietyConstraints suppress recently used recipes, cuisines and cooking methods.
type VarietyConstraints struct {
	AvoidRecipeIDs []string `json:"avoid_recipe_ids"`
	AvoidCuisines  []string `json:"avoid_cuisines"`
	AvoidMethods   []string `json:"avoid_methods"`
	RotateCuisines bool     `json:"rotate_cuisines"`
	RotateMethods  bool     `json:"rotate_methods"`
}

// ExpiringItem is an inventory item flagged for prioritized use.
type ExpiringItem struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	DaysLeft int    `json:"days_left"`
}

// SafetyConstraints is the union of every member's declared constraints, as
// presented to the backend. It is advisory for the backend only; results are
// re-checked after generation.
type SafetyConstraints struct {
	Allergens           []string `json:"allergens"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	HealthConditions    []string `json:"health_conditions"`
}

// GenerationContext is built per request and discarded after the response.
// Named fields hold deterministic rule outputs; Extensions carries opaque
// domain data the orchestrator does not interpret.
type GenerationContext struct {
	Variety         VarietyConstraints `json:"variety"`
	ScalingFactor   *float64           `json:"scaling_factor,omitempty"`
	Expiring        []ExpiringItem     `json:"expiring_items"`
	Safety          SafetyConstraints  `json:"safety"`
	LeftoverSources map[int][]int      `json:"leftover_sources,omitempty"`
	InventoryIDs    []string           `json:"inventory_ids,omitempty"`
	Days            int                `json:"days,omitempty"`
	OutputLanguages []string           `json:"output_languages,omitempty"`
	Extensions      map[string]any     `json:"-"`
}

// wellKnownKeys are the top-level context keys owned by GenerationContext.
var wellKnownKeys = map[string]bool{
	"variety":          true,
	"scaling_factor":   true,
	"expiring_items":   true,
	"safety":           true,
	"leftover_sources": true,
	"inventory_ids":    true,
	"days":             true,
	"output_languages": true,
}

// IsWellKnownKey reports whether key is reserved for a named context field.
func IsWellKnownKey(key string) bool {
	return wellKnownKeys[key]
}

// SetExtensions copies ext into the context, skipping reserved keys and keeping
// at most max keys in sorted order.
func (c *GenerationContext) SetExtensions(ext map[string]any, max int) {
	if len(ext) == 0 {
		return
	}
	keys := make([]string, 0, len(ext))
	for k := range ext {
		if IsWellKnownKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if max > 0 && len(keys) > max {
		keys = keys[:max]
	}
	c.Extensions = make(map[string]any, len(keys))
	for _, k := range keys {
		c.Extensions[k] = ext[k]
	}
}

// Payload flattens the context into the key/value document sent to the backend.
func (c GenerationContext) Payload() (map[string]any, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, v := range c.Extensions {
		out[k] = v
	}
	return out, nil
}
