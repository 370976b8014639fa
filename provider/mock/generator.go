// Package mock provides deterministic generators for local runs and tests.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"pantrygen"
	"pantrygen/schema"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

const contextMarker = "CONTEXT:\n"

// Generator answers from the request context alone. Like a weak model it uses
// loose field names (days_planned, suggestions) and omits fields it does not
// know, which leaves the repairer something to do.
type Generator struct{}

func New() *Generator { return &Generator{} }

func (g *Generator) Name() string { return "mock" }

// Generate is a mock implementation that builds a plausible payload from the
// inventory ids and day count found in the prompt's CONTEXT block.
func (g *Generator) Generate(ctx context.Context, messages []pantrygen.Message, s *jsonschema.Schema) (map[string]any, error) {
	slog.Info("LLM_CLIENT: Invoked", "provider", g.Name(), "messages_len", len(messages))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gctx := contextFrom(messages)
	ids := schema.StringList(gctx["inventory_ids"])
	if len(ids) == 0 {
		return map[string]any{
			"status":               "needs_clarification",
			"clarifying_questions": []any{"What ingredients do you have on hand?"},
		}, nil
	}

	if s != nil {
		if _, ok := s.Properties["days"]; ok {
			slog.Info("LLM_CLIENT: Returning mock meal plan")
			return mealPlan(ids, dayCount(gctx)), nil
		}
		if _, ok := s.Properties["recipes"]; ok {
			slog.Info("LLM_CLIENT: Returning mock recipe suggestions")
			return map[string]any{"status": "ok", "suggestions": recipes(ids, 3)}, nil
		}
	}

	out, _ := schema.Skeleton(s).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	out["status"] = string(pantrygen.StatusOK)
	return out, nil
}

func mealPlan(ids []string, days int) map[string]any {
	planned := make([]any, 0, days)
	for d := 0; d < days; d++ {
		id := ids[d%len(ids)]
		planned = append(planned, map[string]any{
			"day": float64(d + 1),
			"meals": []any{
				map[string]any{
					"id":          fmt.Sprintf("dinner_%d_%s", d+1, id),
					"recipe_name": dishName(id),
					"servings":    float64(2),
					"ingredients": []any{map[string]any{"id": id}},
				},
			},
		})
	}
	return map[string]any{
		"summary":      fmt.Sprintf("Planned %d dinner(s) prioritizing items with low days_left.", days),
		"days_planned": planned,
	}
}

func recipes(ids []string, n int) []any {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		id := ids[i%len(ids)]
		out = append(out, map[string]any{
			"id":          fmt.Sprintf("recipe_%d_%s", i+1, id),
			"title":       dishName(id),
			"ingredients": []any{map[string]any{"id": id}},
		})
	}
	return out
}

func dishName(id string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(id))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ") + " Skillet"
}

// contextFrom decodes the CONTEXT document from the first user message.
func contextFrom(messages []pantrygen.Message) map[string]any {
	for _, m := range messages {
		if m.Role != pantrygen.RoleUser {
			continue
		}
		i := strings.Index(m.Content, contextMarker)
		if i < 0 {
			continue
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(m.Content[i+len(contextMarker):]), &out); err == nil {
			return out
		}
	}
	return map[string]any{}
}

func dayCount(gctx map[string]any) int {
	if d, ok := gctx["days"].(float64); ok && d >= 1 {
		return int(d)
	}
	return 1
}
