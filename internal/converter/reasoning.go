package converter

import (
	"encoding/json"

	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
	"github.com/mixaill76/claude_openai_bridge/internal/models"
)

// DeriveReasoningEffort maps the client thinking request onto the upstream
// reasoning_effort knob. Returns "" when the upstream model does not accept
// the parameter or thinking is disabled.
//
// The effort is the maximum of the level derived from the absolute token
// budget, the level derived from the budget/max_tokens ratio, and the
// configured floor.
func DeriveReasoningEffort(thinking *anthropic.Thinking, maxTokens int, upstreamModel, minLevel string) string {
	if !models.SupportsReasoningEffort(upstreamModel) {
		return ""
	}

	if !thinking.Enabled() {
		return ""
	}

	effort := "medium"
	if thinking.BudgetTokens > 0 {
		effort = higherEffort(
			effortByAbsoluteBudget(thinking.BudgetTokens),
			effortByBudgetRatio(thinking.BudgetTokens, maxTokens),
		)
	}
	return higherEffort(effort, minLevel)
}

func effortByAbsoluteBudget(budgetTokens int) string {
	switch {
	case budgetTokens < 2048:
		return "low"
	case budgetTokens < 8192:
		return "medium"
	default:
		return "high"
	}
}

func effortByBudgetRatio(budgetTokens, maxTokens int) string {
	if maxTokens <= 0 {
		return "medium"
	}
	ratio := float64(budgetTokens) / float64(maxTokens)
	switch {
	case ratio < 0.25:
		return "low"
	case ratio <= 0.6:
		return "medium"
	default:
		return "high"
	}
}

func higherEffort(left, right string) string {
	if effortRank(left) >= effortRank(right) {
		return left
	}
	return right
}

func effortRank(value string) int {
	switch value {
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

// ExtractReasoningText folds the upstream reasoning polymorphism into plain
// text. Probes, in order: a JSON string, {"content": "..."}, {"text": "..."},
// {"summary": [{"text": "..."}]}. Returns "" when nothing matches.
func ExtractReasoningText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var object struct {
		Content string `json:"content"`
		Text    string `json:"text"`
		Summary []struct {
			Text string `json:"text"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(raw, &object); err != nil {
		return ""
	}
	if object.Content != "" {
		return object.Content
	}
	if object.Text != "" {
		return object.Text
	}

	var combined string
	for _, part := range object.Summary {
		combined += part.Text
	}
	return combined
}

// ReasoningTextFromMessage probes reasoning_content before reasoning,
// concatenating whatever each field yields; reasoning text identical to the
// reasoning_content text is not repeated.
func ReasoningTextFromMessage(reasoningContent, reasoning json.RawMessage) string {
	text := ExtractReasoningText(reasoningContent)
	if more := ExtractReasoningText(reasoning); more != "" && more != text {
		if text == "" {
			text = more
		} else {
			text += more
		}
	}
	return text
}
