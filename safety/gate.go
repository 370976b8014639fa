// Package safety gates generation on complete safety data and re-checks every
// generated item against the same profile afterwards.
package safety

import (
	"fmt"
	"strings"

	"pantrygen"
)

const profileIncompleteMessage = "The household profile is incomplete: add at least one member with their allergens before generating."

// GateResult is the outcome of CheckPreconditions.
type GateResult struct {
	CanProceed bool
	Message    string
	Questions  []string
}

// Err returns a *pantrygen.PreconditionError for a failed gate, or nil.
func (r GateResult) Err() error {
	if r.CanProceed {
		return nil
	}
	return &pantrygen.PreconditionError{Message: r.Message}
}

// CheckPreconditions fails closed: an empty profile fails, and so does any
// member whose allergen list was never declared. An explicitly empty list passes.
func CheckPreconditions(profile pantrygen.SafetyProfile) GateResult {
	if len(profile.Members) == 0 {
		return GateResult{
			Message:   profileIncompleteMessage,
			Questions: []string{"Who are you cooking for, and what are their allergies?"},
		}
	}

	var missing []string
	for i, m := range profile.Members {
		if !m.HasDeclaredAllergens() {
			missing = append(missing, memberLabel(m, i))
		}
	}
	if len(missing) == 0 {
		return GateResult{CanProceed: true}
	}

	questions := make([]string, len(missing))
	for i, who := range missing {
		questions[i] = fmt.Sprintf("Does %s have any food allergies? Answer with an empty list if none.", who)
	}
	return GateResult{
		Message: fmt.Sprintf(
			"Allergens are not declared for %s. Allergens must be listed explicitly, even when there are none.",
			strings.Join(missing, ", "),
		),
		Questions: questions,
	}
}

func memberLabel(m pantrygen.Member, i int) string {
	if name := strings.TrimSpace(m.Name); name != "" {
		return name
	}
	return fmt.Sprintf("member %d", i+1)
}
