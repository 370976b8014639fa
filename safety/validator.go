package safety

import (
	"log/slog"

	"pantrygen"
	"pantrygen/schema"
)

// ReasonSafety marks items dropped for conflicting with a member's constraints.
const ReasonSafety = "safety"

// Validator re-checks generated items against a safety profile. It never
// trusts compliance claims made by the backend.
type Validator struct {
	Profile pantrygen.SafetyProfile
	Items   schema.ItemSpec
}

// Outcome is a filtered payload plus what was removed from it.
type Outcome struct {
	Payload map[string]any
	Dropped []pantrygen.DroppedItem
}

// Check drops every item that violates any member's allergens or dietary
// restrictions. Surviving items are returned unchanged.
func (v Validator) Check(task string, payload map[string]any) Outcome {
	var dropped []pantrygen.DroppedItem
	out := v.Items.Filter(payload, func(it schema.Item) bool {
		violations := v.Violations(it.Value)
		if len(violations) == 0 {
			return true
		}
		name := v.Items.Name(it.Value)
		for _, vio := range violations {
			slog.Warn("SAFETY: Dropped item",
				"task", task,
				"item", name,
				"path", it.Path,
				"member", vio.Member,
				"kind", vio.Kind,
				"constraint", vio.Constraint,
				"matched", vio.Matched,
			)
		}
		dropped = append(dropped, pantrygen.DroppedItem{
			Name:       name,
			Reason:     ReasonSafety,
			Violations: violations,
		})
		return false
	})
	return Outcome{Payload: out, Dropped: dropped}
}

// Violations lists every member constraint the item conflicts with.
func (v Validator) Violations(item map[string]any) []pantrygen.SafetyViolation {
	ingredients := v.Items.IngredientTerms(item)
	tags := v.Items.Allergens(item)

	var out []pantrygen.SafetyViolation
	for i, m := range v.Profile.Members {
		who := memberLabel(m, i)
		for _, a := range m.Allergens {
			forbidden := expand(allergenTerms, a)
			if hit, ok := firstMatch(ingredients, forbidden); ok {
				out = append(out, violation(who, a, "allergen", hit))
			} else if hit, ok := firstMatch(tags, forbidden); ok {
				out = append(out, violation(who, a, "allergen", hit))
			}
		}
		for _, d := range m.DietaryRestrictions {
			forbidden := expand(dietTerms, d)
			if hit, ok := firstMatch(ingredients, forbidden); ok {
				out = append(out, violation(who, d, "dietary_restriction", hit))
			} else if hit, ok := firstMatch(tags, forbidden); ok {
				out = append(out, violation(who, d, "dietary_restriction", hit))
			}
		}
	}
	return out
}

func violation(member, constraint, kind, matched string) pantrygen.SafetyViolation {
	return pantrygen.SafetyViolation{Member: member, Constraint: constraint, Kind: kind, Matched: matched}
}
