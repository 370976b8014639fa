package pantrygen

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// Generator is the uniform interface over generation backends. Implementations
// embed the schema into their outbound instructions however their API allows,
// but adherence is best effort only: callers always validate locally.
//
// A throttled backend must return a *RateLimitError and unparseable output a
// *MalformedOutputError so the controller can classify the failure.
type Generator interface {
	Name() string
	Generate(ctx context.Context, messages []Message, schema *jsonschema.Schema) (map[string]any, error)
}

// AlertSink receives operator-facing reports about items removed from a result.
type AlertSink interface {
	ReportDropped(ctx context.Context, task string, dropped []DroppedItem) error
}

// Message is a provider-neutral chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Member is one person covered by a safety profile. A nil Allergens slice means
// the member never declared allergens; an empty non-nil slice is an explicit
// "no allergens" declaration.
type Member struct {
	Name                string   `json:"name,omitempty"`
	Allergens           []string `json:"allergens"`
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
	HealthConditions    []string `json:"health_conditions,omitempty"`
}

// HasDeclaredAllergens reports whether the allergen field was explicitly provided.
func (m Member) HasDeclaredAllergens() bool {
	return m.Allergens != nil
}

// SafetyProfile is the ordered list of members a generation must be safe for.
type SafetyProfile struct {
	Members []Member `json:"members"`
}

// InventoryItem is a canonical-name-keyed item the household has on hand.
// A nil DaysLeft means no explicit freshness was recorded; zero or negative
// values mean the item expires today or already has.
type InventoryItem struct {
	ID             string  `json:"id"`
	Name           string  `json:"name,omitempty"`
	Qty            float64 `json:"qty,omitempty"`
	Unit           string  `json:"unit,omitempty"`
	DaysLeft       *int    `json:"days_left,omitempty"`
	PerishableDays int     `json:"perishable_days,omitempty"`
	AddedDay       int     `json:"added_day,omitempty"`
}

// NonPerishableDays is the freshness reported for items with no perishability data.
const NonPerishableDays = 9999

// Days returns a pointer to n for setting InventoryItem.DaysLeft.
func Days(n int) *int { return &n }

// FreshnessDaysRemaining returns the days left before the item spoils at currentDay.
func (it InventoryItem) FreshnessDaysRemaining(currentDay int) int {
	if it.DaysLeft != nil {
		return *it.DaysLeft
	}
	if it.PerishableDays == 0 {
		return NonPerishableDays
	}
	return it.PerishableDays - (currentDay - it.AddedDay)
}

// HistoryEntry is one timestamped past usage record.
type HistoryEntry struct {
	RecipeID string    `json:"recipe_id"`
	Cuisine  string    `json:"cuisine,omitempty"`
	Method   string    `json:"method,omitempty"`
	CookedAt time.Time `json:"cooked_at"`
}

// ValidationError is a single schema violation at a JSON path.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return e.Path + ": " + e.Message
}
