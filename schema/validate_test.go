package schema

import (
	"encoding/json"
	"testing"

	"pantrygen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTask(t *testing.T, name string) TaskSpec {
	t.Helper()
	reg, err := Default()
	require.NoError(t, err)
	task, err := reg.Lookup(name)
	require.NoError(t, err)
	return task
}

// decode round-trips a fixture through JSON so numbers look like generator output.
func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

const validMealPlan = `{
	"status": "ok",
	"plan_id": "plan-1",
	"summary": "Two easy days",
	"days": [
		{"day": 1, "meals": [
			{"id": "m1", "name": "Omelette", "servings": 2, "cuisine": "french",
			 "ingredients": [{"id": "egg", "qty": 4, "unit": "count"}], "x_note": "quick"}
		]},
		{"day": 2, "meals": [
			{"id": "m2", "name": "Fried rice", "servings": 2, "leftover_from_day": 1,
			 "ingredients": [{"id": "rice"}, {"id": "egg"}]}
		]}
	]
}`

func paths(errs []pantrygen.ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Path
	}
	return out
}

func TestValidate_ValidInstance(t *testing.T) {
	task := mustTask(t, "meal_plan")
	inst := decode(t, validMealPlan)

	assert.Empty(t, Validate(task.Schema, inst))
	// Validating again is still clean and never mutates the instance.
	assert.Empty(t, Validate(task.Schema, inst))
	assert.Equal(t, decode(t, validMealPlan), inst)
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	task := mustTask(t, "meal_plan")
	inst := decode(t, `{
		"status": "maybe",
		"plan_id": "",
		"extra": true,
		"days": [{"day": 0, "meals": []}]
	}`)

	errs := Validate(task.Schema, inst)

	assert.Equal(t, []string{
		"$.days[0].day",
		"$.days[0].meals",
		"$.extra",
		"$.plan_id",
		"$.status",
		"$.summary",
	}, paths(errs))
	assert.Equal(t, "must be >= 1", errs[0].Message)
	assert.Equal(t, "must contain at least 1 items, got 0", errs[1].Message)
	assert.Equal(t, "property is not allowed", errs[2].Message)
	assert.Equal(t, "must not be empty", errs[3].Message)
	assert.Equal(t, "must be one of [ok, needs_clarification, error]", errs[4].Message)
	assert.Equal(t, "required property is missing", errs[5].Message)
}

func TestValidate_TypeMismatchStopsDescent(t *testing.T) {
	task := mustTask(t, "meal_plan")
	inst := decode(t, validMealPlan)
	inst["days"] = "monday"

	errs := Validate(task.Schema, inst)
	require.Len(t, errs, 1)
	assert.Equal(t, "$.days", errs[0].Path)
	assert.Equal(t, "expected array, got string", errs[0].Message)
}

func TestValidate_NumbersAndIntegers(t *testing.T) {
	task := mustTask(t, "meal_plan")

	tests := []struct {
		name     string
		day      any
		servings any
		want     []string
	}{
		{name: "json numbers", day: float64(1), servings: 2.5},
		{name: "go ints", day: 3, servings: 4},
		{name: "fractional day", day: 1.5, servings: float64(2), want: []string{"$.days[0].day"}},
		{name: "negative servings", day: 1, servings: -1, want: []string{"$.days[0].meals[0].servings"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := map[string]any{
				"status":  "ok",
				"plan_id": "p",
				"summary": "",
				"days": []any{map[string]any{
					"day": tt.day,
					"meals": []any{map[string]any{
						"id": "m", "name": "n", "servings": tt.servings,
						"ingredients": []any{},
					}},
				}},
			}
			got := paths(Validate(task.Schema, inst))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidator_SkipMinItems(t *testing.T) {
	task := mustTask(t, "recipe_suggestions")
	inst := decode(t, `{"status": "needs_clarification", "recipes": [], "questions": ["How many people?"]}`)

	assert.Equal(t, []string{"$.recipes"}, paths(Validate(task.Schema, inst)))
	assert.Empty(t, Validator{SkipMinItems: true}.Validate(task.Schema, inst))
}

func TestValidator_Truncates(t *testing.T) {
	task := mustTask(t, "recipe_suggestions")
	inst := map[string]any{"status": "ok"}
	recipes := make([]any, 40)
	for i := range recipes {
		recipes[i] = map[string]any{}
	}
	inst["recipes"] = recipes

	// Three missing required properties per recipe.
	assert.Len(t, Validate(task.Schema, inst), DefaultMaxErrors)
	assert.Len(t, Validator{MaxErrors: 5}.Validate(task.Schema, inst), 5)
	assert.Len(t, Validator{MaxErrors: -1}.Validate(task.Schema, inst), 120)
}
