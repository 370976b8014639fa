// Package rules computes the deterministic parts of a generation context from
// profile, inventory and history data. Every function is pure.
package rules

import (
	"errors"
	"sort"
	"strings"
	"time"

	"pantrygen"
)

var (
	ErrInvalidBaseServings = errors.New("base servings must be positive")
	ErrInvalidGuestCount   = errors.New("guest count must not be negative")
)

// normalize canonicalizes identifiers so "Thai " and "thai" collapse.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type set map[string]struct{}

func (s set) add(v string) {
	if v = normalize(v); v != "" {
		s[v] = struct{}{}
	}
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func inWindow(at, now time.Time, windowDays int) bool {
	if at.After(now) {
		return false
	}
	return !at.Before(now.AddDate(0, 0, -windowDays))
}

// RecentUsage collects the recipe, cuisine and method identifiers used within
// windowDays before now. Rotation is requested for any dimension that has
// recent usage.
func RecentUsage(history []pantrygen.HistoryEntry, now time.Time, windowDays int) pantrygen.VarietyConstraints {
	recipes, cuisines, methods := set{}, set{}, set{}
	for _, h := range history {
		if !inWindow(h.CookedAt, now, windowDays) {
			continue
		}
		recipes.add(h.RecipeID)
		cuisines.add(h.Cuisine)
		methods.add(h.Method)
	}
	return pantrygen.VarietyConstraints{
		AvoidRecipeIDs: recipes.sorted(),
		AvoidCuisines:  cuisines.sorted(),
		AvoidMethods:   methods.sorted(),
		RotateCuisines: len(cuisines) > 0,
		RotateMethods:  len(methods) > 0,
	}
}

// CuisineCounts counts cuisine usage within windowDays before now.
func CuisineCounts(history []pantrygen.HistoryEntry, now time.Time, windowDays int) map[string]int {
	counts := map[string]int{}
	for _, h := range history {
		c := normalize(h.Cuisine)
		if c == "" || !inWindow(h.CookedAt, now, windowDays) {
			continue
		}
		counts[c]++
	}
	return counts
}

// ApplyWeeklyCap appends every cuisine whose count meets or exceeds limit to
// AvoidCuisines. The result is a sorted union; applying it twice changes
// nothing. A non-positive limit disables the rule.
func ApplyWeeklyCap(v pantrygen.VarietyConstraints, counts map[string]int, limit int) pantrygen.VarietyConstraints {
	if limit <= 0 {
		return v
	}
	avoid := set{}
	for _, c := range v.AvoidCuisines {
		avoid.add(c)
	}
	capped := false
	for c, n := range counts {
		if n >= limit {
			avoid.add(c)
			capped = true
		}
	}
	v.AvoidCuisines = avoid.sorted()
	v.RotateCuisines = v.RotateCuisines || capped
	return v
}

// ExpiringItems returns inventory items whose remaining freshness at
// currentDay is at most threshold, soonest first.
func ExpiringItems(inventory []pantrygen.InventoryItem, currentDay, threshold int) []pantrygen.ExpiringItem {
	out := make([]pantrygen.ExpiringItem, 0)
	for _, it := range inventory {
		left := it.FreshnessDaysRemaining(currentDay)
		if left > threshold {
			continue
		}
		out = append(out, pantrygen.ExpiringItem{ID: it.ID, Name: it.Name, DaysLeft: left})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysLeft != out[j].DaysLeft {
			return out[i].DaysLeft < out[j].DaysLeft
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PartyScalingFactor returns (guests/baseServings) * (1 + buffer). A negative
// buffer is treated as zero so the factor never drops below the base ratio.
func PartyScalingFactor(guests, baseServings int, buffer float64) (float64, error) {
	if baseServings <= 0 {
		return 0, ErrInvalidBaseServings
	}
	if guests < 0 {
		return 0, ErrInvalidGuestCount
	}
	if buffer < 0 {
		buffer = 0
	}
	return float64(guests) / float64(baseServings) * (1 + buffer), nil
}

// LeftoverSourceDays returns the zero-based days [max(0, day-window), day)
// whose meals may be reused on day.
func LeftoverSourceDays(day, window int) []int {
	if day <= 0 || window <= 0 {
		return nil
	}
	start := day - window
	if start < 0 {
		start = 0
	}
	out := make([]int, 0, day-start)
	for d := start; d < day; d++ {
		out = append(out, d)
	}
	return out
}

// LeftoverSchedule maps every day of an n-day plan that has eligible source
// days to those days.
func LeftoverSchedule(days, window int) map[int][]int {
	out := map[int][]int{}
	for d := 0; d < days; d++ {
		if src := LeftoverSourceDays(d, window); len(src) > 0 {
			out[d] = src
		}
	}
	return out
}

// KnownIDs indexes the inventory identifiers a generated item may reference.
func KnownIDs(inventory []pantrygen.InventoryItem) map[string]bool {
	out := make(map[string]bool, len(inventory))
	for _, it := range inventory {
		if id := normalize(it.ID); id != "" {
			out[id] = true
		}
	}
	return out
}

// UnresolvedIngredients returns the references that do not resolve against
// known, in first-seen order without duplicates.
func UnresolvedIngredients(refs []string, known map[string]bool) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range refs {
		n := normalize(r)
		if known[n] || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, r)
	}
	return out
}

// SafetyUnion merges every member's constraints into the advisory block sent
// with the request.
func SafetyUnion(profile pantrygen.SafetyProfile) pantrygen.SafetyConstraints {
	allergens, diets, health := set{}, set{}, set{}
	for _, m := range profile.Members {
		for _, a := range m.Allergens {
			allergens.add(a)
		}
		for _, d := range m.DietaryRestrictions {
			diets.add(d)
		}
		for _, h := range m.HealthConditions {
			health.add(h)
		}
	}
	return pantrygen.SafetyConstraints{
		Allergens:           allergens.sorted(),
		DietaryRestrictions: diets.sorted(),
		HealthConditions:    health.sorted(),
	}
}
