package mock

import (
	"context"
	"errors"
	"testing"

	"pantrygen"
	"pantrygen/prompt"
	"pantrygen/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messagesFor(t *testing.T, task schema.TaskSpec, gctx pantrygen.GenerationContext) []pantrygen.Message {
	t.Helper()
	msgs, err := prompt.Build(task, gctx, "en")
	require.NoError(t, err)
	return msgs
}

func lookup(t *testing.T, name string) schema.TaskSpec {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	task, err := reg.Lookup(name)
	require.NoError(t, err)
	return task
}

func TestGenerator_RepairsIntoValidPayload(t *testing.T) {
	tests := []struct {
		name  string
		task  string
		days  int
		items string
		count int
	}{
		{name: "meal plan", task: "meal_plan", days: 3, items: "days", count: 3},
		{name: "recipe suggestions", task: "recipe_suggestions", items: "recipes", count: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := lookup(t, tt.task)
			gctx := pantrygen.GenerationContext{InventoryIDs: []string{"black_beans", "rice"}, Days: tt.days}

			raw, err := New().Generate(context.Background(), messagesFor(t, task, gctx), task.Schema)
			require.NoError(t, err)

			repaired := schema.NewRepairer(task).Repair(raw, task.Schema)
			assert.Empty(t, schema.Validate(task.Schema, repaired))
			assert.Len(t, repaired[tt.items], tt.count)
		})
	}
}

func TestGenerator_AsksWithoutInventory(t *testing.T) {
	task := lookup(t, "meal_plan")
	raw, err := New().Generate(context.Background(), messagesFor(t, task, pantrygen.GenerationContext{Days: 1}), task.Schema)
	require.NoError(t, err)
	assert.Equal(t, "needs_clarification", raw["status"])
	assert.NotEmpty(t, raw["clarifying_questions"])
}

func TestDishName(t *testing.T) {
	assert.Equal(t, "Black Beans Skillet", dishName("black_beans"))
	assert.Equal(t, "Rice Skillet", dishName("rice"))
}

func TestScripted(t *testing.T) {
	boom := errors.New("boom")
	s := NewScripted("scripted", Fail(boom), Reply(map[string]any{"status": "ok"}))

	_, err := s.Generate(context.Background(), []pantrygen.Message{{Role: "user", Content: "1"}}, nil)
	assert.ErrorIs(t, err, boom)

	for i := 0; i < 2; i++ {
		got, err := s.Generate(context.Background(), []pantrygen.Message{{Role: "user", Content: "2"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", got["status"])
	}

	assert.Equal(t, 3, s.Calls())
	assert.Equal(t, "1", s.Received(0)[0].Content)
	assert.Nil(t, s.Received(5))

	_, err = NewScripted("empty").Generate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrScriptEmpty)
}
