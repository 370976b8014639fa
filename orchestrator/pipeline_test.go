package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"pantrygen"
	"pantrygen/provider/mock"
	"pantrygen/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAlerts struct {
	task    string
	dropped []pantrygen.DroppedItem
	err     error
}

func (a *recordingAlerts) ReportDropped(_ context.Context, task string, dropped []pantrygen.DroppedItem) error {
	a.task = task
	a.dropped = append(a.dropped, dropped...)
	return a.err
}

func newPipeline(t *testing.T, gen pantrygen.Generator, cfg pantrygen.PipelineConfig, alerts pantrygen.AlertSink) *Pipeline {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	return NewPipeline(reg, NewController(gen, nil, cfg, nil, nil, nil), cfg, alerts, nil, nil)
}

func inventory(ids ...string) []pantrygen.InventoryItem {
	out := make([]pantrygen.InventoryItem, len(ids))
	for i, id := range ids {
		out[i] = pantrygen.InventoryItem{ID: id, Qty: 1}
	}
	return out
}

func TestPipeline_GateBlocksGeneration(t *testing.T) {
	tests := []struct {
		name    string
		profile pantrygen.SafetyProfile
	}{
		{name: "no members", profile: pantrygen.SafetyProfile{}},
		{name: "member without allergens", profile: pantrygen.SafetyProfile{Members: []pantrygen.Member{{}}}},
		{name: "one of two members undeclared", profile: pantrygen.SafetyProfile{Members: []pantrygen.Member{
			{Name: "Ana", Allergens: []string{}},
			{Name: "Ben"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := mock.NewScripted("primary", mock.Reply(plan(meal("m1", "Rice Bowl", "rice"))))
			p := newPipeline(t, gen, pantrygen.DefaultPipelineConfig(), nil)

			res, err := p.Run(context.Background(), Request{Task: "meal_plan", Profile: tt.profile, Days: 1})
			require.NoError(t, err)

			assert.Equal(t, 0, gen.Calls())
			assert.Equal(t, pantrygen.StatusNeedsClarification, res.Status)
			assert.NotEmpty(t, res.Questions)
			assert.NotEmpty(t, res.Message)

			task := mustTask(t, "meal_plan")
			assert.Empty(t, schema.Validator{SkipMinItems: true}.Validate(task.Schema, res.Payload))
		})
	}
}

func TestPipeline_ExplicitEmptyAllergensProceeds(t *testing.T) {
	gen := mock.NewScripted("primary", mock.Reply(plan(meal("m1", "Rice Bowl", "rice"))))
	p := newPipeline(t, gen, pantrygen.DefaultPipelineConfig(), nil)

	res, err := p.Run(context.Background(), Request{
		Task:    "meal_plan",
		Profile: pantrygen.SafetyProfile{Members: []pantrygen.Member{{Allergens: []string{}}}},
		Days:    1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.Calls())
	assert.Equal(t, pantrygen.StatusOK, res.Status)
	assert.Equal(t, plan(meal("m1", "Rice Bowl", "rice")), res.Payload)
	assert.Empty(t, res.Dropped)
}

func TestPipeline_DropsUnsafeItems(t *testing.T) {
	alerts := &recordingAlerts{}
	gen := mock.NewScripted("primary", mock.Reply(plan(
		meal("m1", "Creamy Oats", "oats", "milk"),
		meal("m2", "Rice Bowl", "rice"),
	)))
	p := newPipeline(t, gen, pantrygen.DefaultPipelineConfig(), alerts)

	res, err := p.Run(context.Background(), Request{
		Task: "meal_plan",
		Profile: pantrygen.SafetyProfile{Members: []pantrygen.Member{
			{Name: "Sam", Allergens: []string{"dairy"}},
		}},
		Inventory: inventory("oats", "milk", "rice"),
		Days:      1,
	})
	require.NoError(t, err)

	require.Equal(t, pantrygen.StatusOK, res.Status)
	meals := res.Payload["days"].([]any)[0].(map[string]any)["meals"].([]any)
	require.Len(t, meals, 1)
	assert.Equal(t, "Rice Bowl", meals[0].(map[string]any)["name"])

	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "Creamy Oats", res.Dropped[0].Name)
	assert.Equal(t, "safety", res.Dropped[0].Reason)
	require.NotEmpty(t, res.Dropped[0].Violations)
	assert.Equal(t, "milk", res.Dropped[0].Violations[0].Matched)
	assert.Equal(t, "Sam", res.Dropped[0].Violations[0].Member)

	assert.Equal(t, "meal_plan", alerts.task)
	assert.Len(t, alerts.dropped, 1)
}

func TestPipeline_UnknownIngredients(t *testing.T) {
	tests := []struct {
		name        string
		reject      bool
		wantMeals   int
		wantDropped int
		wantFlags   int
	}{
		{name: "flagged when rejection is off", reject: false, wantMeals: 2, wantFlags: 1},
		{name: "dropped when rejection is on", reject: true, wantMeals: 1, wantDropped: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := pantrygen.DefaultPipelineConfig()
			cfg.RejectUnknownIngredients = tt.reject
			gen := mock.NewScripted("primary", mock.Reply(plan(
				meal("m1", "Mystery Stew", "rice", "X"),
				meal("m2", "Rice Bowl", "rice"),
			)))
			alerts := &recordingAlerts{err: errors.New("webhook down")}
			p := newPipeline(t, gen, cfg, alerts)

			res, err := p.Run(context.Background(), Request{
				Task:      "meal_plan",
				Profile:   pantrygen.SafetyProfile{Members: []pantrygen.Member{{Allergens: []string{}}}},
				Inventory: inventory("rice"),
				Days:      1,
			})
			require.NoError(t, err)
			require.Equal(t, pantrygen.StatusOK, res.Status)

			meals := res.Payload["days"].([]any)[0].(map[string]any)["meals"].([]any)
			assert.Len(t, meals, tt.wantMeals)
			assert.Len(t, res.Dropped, tt.wantDropped)
			assert.Len(t, res.Flags, tt.wantFlags)

			if tt.wantFlags > 0 {
				assert.Equal(t, []string{"X"}, res.Flags[0].Unknown)
				assert.Contains(t, res.Flags[0].Message, "X")
				assert.Equal(t, "Mystery Stew", res.Flags[0].Item)
			}
			if tt.wantDropped > 0 {
				assert.Equal(t, ReasonUnknownIngredient, res.Dropped[0].Reason)
				assert.Equal(t, []string{"X"}, res.Dropped[0].Unknown)
			}
		})
	}
}

func TestPipeline_FailureIsSchemaShaped(t *testing.T) {
	gen := mock.NewScripted("primary", mock.Fail(&pantrygen.MalformedOutputError{Provider: "primary", Err: errors.New("garbage")}))
	cfg := pantrygen.DefaultPipelineConfig()
	cfg.MaxRetries = 1
	p := newPipeline(t, gen, cfg, nil)

	res, err := p.Run(context.Background(), Request{
		Task:    "recipe_suggestions",
		Profile: pantrygen.SafetyProfile{Members: []pantrygen.Member{{Allergens: []string{}}}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, gen.Calls())
	assert.Equal(t, pantrygen.StatusError, res.Status)
	assert.Equal(t, map[string]any{
		"status":  "error",
		"recipes": []any{},
		"message": schema.GenericFailureMessage,
	}, res.Payload)
}

func TestPipeline_InvalidRequests(t *testing.T) {
	gen := mock.NewScripted("primary")
	p := newPipeline(t, gen, pantrygen.DefaultPipelineConfig(), nil)
	profile := pantrygen.SafetyProfile{Members: []pantrygen.Member{{Allergens: []string{}}}}

	_, err := p.Run(context.Background(), Request{Profile: profile})
	assert.Error(t, err)

	_, err = p.Run(context.Background(), Request{Task: "dessert", Profile: profile})
	assert.ErrorIs(t, err, pantrygen.ErrUnknownTask)

	_, err = p.Run(context.Background(), Request{Task: "meal_plan", Profile: profile, Days: -1})
	assert.Error(t, err)

	_, err = p.Run(context.Background(), Request{Task: "meal_plan", Profile: profile, GuestCount: 8})
	assert.Error(t, err)

	assert.Equal(t, 0, gen.Calls())
}

func TestPipeline_EndToEndWithMockGenerator(t *testing.T) {
	now := time.Date(2025, 10, 6, 18, 0, 0, 0, time.UTC)
	p := newPipeline(t, mock.New(), pantrygen.DefaultPipelineConfig(), nil)

	res, err := p.Run(context.Background(), Request{
		Task:    "meal_plan",
		Profile: pantrygen.SafetyProfile{Members: []pantrygen.Member{{Name: "Ana", Allergens: []string{"peanut"}}}},
		Inventory: []pantrygen.InventoryItem{
			{ID: "black_beans", Qty: 2, Unit: "can"},
			{ID: "spinach", Qty: 1, Unit: "bag", DaysLeft: pantrygen.Days(2)},
		},
		History:      []pantrygen.HistoryEntry{{RecipeID: "tacos", Cuisine: "mexican", CookedAt: now.AddDate(0, 0, -2)}},
		Now:          now,
		Days:         3,
		GuestCount:   4,
		BaseServings: 2,
	})
	require.NoError(t, err)

	require.Equal(t, pantrygen.StatusOK, res.Status)
	task := mustTask(t, "meal_plan")
	assert.Empty(t, schema.Validate(task.Schema, res.Payload))
	assert.Len(t, res.Payload["days"], 3)
	assert.Equal(t, "unassigned", res.Payload["plan_id"])
	assert.Empty(t, res.Dropped)
}
