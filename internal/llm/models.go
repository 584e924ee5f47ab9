// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package llm

// DefaultModel is used when neither configuration nor design names a model.
const DefaultModel = "anthropic/claude-sonnet-4"

// ModelInfo names a model offered through OpenRouter.
type ModelInfo struct {
	ID   string
	Name string
}

// AvailableModels lists the models the designer has been exercised with.
var AvailableModels = []ModelInfo{
	{ID: "anthropic/claude-sonnet-4", Name: "Claude Sonnet 4"},
	{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet"},
	{ID: "openai/gpt-4o", Name: "GPT-4o"},
	{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini"},
	{ID: "google/gemini-2.0-flash-001", Name: "Gemini 2.0 Flash"},
	{ID: "deepseek/deepseek-chat", Name: "DeepSeek Chat"},
}

// LookupModel returns the catalogue entry for id.
func LookupModel(id string) (ModelInfo, bool) {
	for _, m := range AvailableModels {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}
