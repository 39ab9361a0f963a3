package models

import "strings"

// passthroughPrefixes are model name prefixes that are forwarded to upstream
// unchanged. Anything else is treated as a Claude alias and mapped onto the
// configured model tiers.
var passthroughPrefixes = []string{"gpt-", "o1-", "o3-", "ep-", "doubao-", "deepseek-"}

// Mapper resolves requested model names to concrete upstream model names.
type Mapper struct {
	bigModel    string
	middleModel string
	smallModel  string
}

// NewMapper creates a Mapper for the configured model tiers.
// middleModel falls back to bigModel when empty.
func NewMapper(bigModel, middleModel, smallModel string) *Mapper {
	if middleModel == "" {
		middleModel = bigModel
	}
	return &Mapper{
		bigModel:    bigModel,
		middleModel: middleModel,
		smallModel:  smallModel,
	}
}

// Resolve maps a requested model to the concrete upstream model.
// Rules, in order:
//  1. Upstream-native prefixes pass through verbatim.
//  2. Alias substring match: haiku -> small, sonnet -> middle, anything else -> big.
func (m *Mapper) Resolve(requested string) string {
	if IsPassthrough(requested) {
		return requested
	}

	lower := strings.ToLower(requested)
	switch {
	case strings.Contains(lower, "haiku"):
		return m.smallModel
	case strings.Contains(lower, "sonnet"):
		return m.middleModel
	default:
		return m.bigModel
	}
}

// IsPassthrough reports whether the model name is upstream-native and must
// not be remapped. Resolving a passthrough model again yields itself.
func IsPassthrough(model string) bool {
	for _, prefix := range passthroughPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// SupportsReasoningEffort reports whether the upstream model accepts the
// reasoning_effort / reasoning.effort parameter.
func SupportsReasoningEffort(model string) bool {
	lower := strings.ToLower(model)

	if strings.HasPrefix(lower, "o1") || strings.HasPrefix(lower, "o3") || strings.HasPrefix(lower, "o4") {
		return true
	}
	if strings.HasPrefix(lower, "gpt-5") {
		return true
	}
	if strings.HasPrefix(lower, "deepseek-r") || strings.Contains(lower, "-reasoner") {
		return true
	}
	return false
}
