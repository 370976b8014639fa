// Package prompt assembles the messages sent to a generation backend.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"pantrygen"
	"pantrygen/schema"
)

const systemPrompt = `You are a structured data generator for a household meal-planning service.

OUTPUT FORMAT:
Return ONLY one JSON object that conforms to the JSON schema supplied with this request - no explanations, no text before or after, no markdown formatting. Start immediately with { and end with }.

CRITICAL RULES:
- The top-level "status" field is always present: "ok", "needs_clarification" or "error".
- Use "needs_clarification" with a "questions" list when the request cannot be fulfilled without more information.
- Use "error" with a "message" when the request cannot be fulfilled at all.
- Never invent identifiers; reference only ids that appear in CONTEXT.
- Never include ingredients that conflict with CONTEXT.safety; the result is re-checked and conflicting items are removed.
- If any field has no content, use an empty array [] or "" appropriately.
- The JSON must be valid UTF-8, with no commentary, no markdown, and no trailing commas.
`

// Build composes the request for one task: system instructions, task
// instructions, an optional bilingual directive and the context payload.
func Build(task schema.TaskSpec, gctx pantrygen.GenerationContext, baseline string) ([]pantrygen.Message, error) {
	payload, err := gctx.Payload()
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	ctxJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TASK: %s\n", task.Name)
	for _, line := range task.PromptLines {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	if directive := BilingualDirective(gctx.OutputLanguages, baseline); directive != "" {
		b.WriteString("\n")
		b.WriteString(directive)
		b.WriteString("\n")
	}
	b.WriteString("\nCONTEXT:\n")
	b.Write(ctxJSON)

	return []pantrygen.Message{
		{Role: pantrygen.RoleSystem, Content: systemPrompt},
		{Role: pantrygen.RoleUser, Content: b.String()},
	}, nil
}

// BilingualDirective returns the multi-language instruction, or "" unless the
// requested languages include the baseline and at least one other language.
func BilingualDirective(languages []string, baseline string) string {
	base := strings.ToLower(strings.TrimSpace(baseline))
	seen := map[string]bool{}
	var langs []string
	hasBaseline := false
	for _, l := range languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		if l == base {
			hasBaseline = true
			continue
		}
		langs = append(langs, l)
	}
	if !hasBaseline || len(langs) == 0 {
		return ""
	}

	all := append([]string{base}, langs...)
	return fmt.Sprintf(
		"BILINGUAL OUTPUT: write every human-readable string value in %s, each language separated by \" / \" in that order. Always include all of them: %s.",
		strings.Join(all, ", "),
		strings.Join(all, " / "),
	)
}
