package ai

import "strings"

// Descriptor describes a model the user can pick.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        string `json:"size"`
	Description string `json:"description"`
	UseCase     string `json:"useCase"`
	Speed       string `json:"speed"`
	Quality     string `json:"quality"`
}

// Models is the catalog. The first entry is the default.
var Models = []Descriptor{
	{
		ID:          "Llama-3.2-3B-Instruct-q4f32_1-MLC",
		Name:        "Llama 3.2 3B",
		Size:        "~2GB",
		Description: "The sweet spot between speed and intelligence - perfect for most users",
		UseCase:     "Best for: Writing SQL queries, analyzing trends, answering complex questions about your data. Great all-around choice.",
		Speed:       "Fast",
		Quality:     "Better",
	},
	{
		ID:          "Llama-3.2-1B-Instruct-q4f32_1-MLC",
		Name:        "Llama 3.2 1B",
		Size:        "~0.6GB",
		Description: "Ultra-lightweight model that responds almost instantly",
		UseCase:     "Best for: Quick questions, simple SQL queries, fast data lookups. Choose this if you have limited storage or want the fastest responses.",
		Speed:       "Fast",
		Quality:     "Good",
	},
	{
		ID:          "Phi-3.5-mini-instruct-q4f16_1-MLC",
		Name:        "Phi 3.5 Mini",
		Size:        "~2.3GB",
		Description: "Microsoft's coding specialist - excellent at understanding technical queries",
		UseCase:     "Best for: Complex SQL optimization, technical data transformations, code-heavy analytics. Great if you need precise SQL generation.",
		Speed:       "Medium",
		Quality:     "Better",
	},
	{
		ID:          "Qwen2.5-3B-Instruct-q4f32_1-MLC",
		Name:        "Qwen 2.5 3B",
		Size:        "~1.9GB",
		Description: "Alibaba's smart model with strong reasoning and multilingual support",
		UseCase:     "Best for: Deep data analysis, complex reasoning tasks, working with international data. Supports multiple languages fluently.",
		Speed:       "Medium",
		Quality:     "Better",
	},
	{
		ID:          "gemma-2-2b-it-q4f32_1-MLC",
		Name:        "Gemma 2 2B",
		Size:        "~1.4GB",
		Description: "Google's efficient model - great balance of size and capability",
		UseCase:     "Best for: General analytics with low memory footprint. Good choice for older devices or when you need to save storage space.",
		Speed:       "Fast",
		Quality:     "Good",
	},
	{
		ID:          "Mistral-7B-Instruct-v0.3-q4f16_1-MLC",
		Name:        "Mistral 7B",
		Size:        "~4.2GB",
		Description: "The most powerful option - provides the highest quality insights and explanations",
		UseCase:     "Best for: Complex business intelligence, detailed explanations, advanced analytics. Choose this when quality matters more than speed.",
		Speed:       "Slow",
		Quality:     "Best",
	},
}

// DefaultModel returns the default model id.
func DefaultModel() string {
	return Models[0].ID
}

// Lookup returns the descriptor for id.
func Lookup(id string) (Descriptor, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return Descriptor{}, false
}

// cacheMarkers flag cache entries that belong to the model runtime even when
// they name no catalog model.
var cacheMarkers = []string{"webllm", "Llama", "Phi", "Qwen", "gemma", "Mistral"}

// isModelCacheKey reports whether a cache key belongs to the model runtime.
func isModelCacheKey(key string) bool {
	for _, m := range cacheMarkers {
		if strings.Contains(key, m) {
			return true
		}
	}
	_, ok := modelForKey(key)
	return ok
}

// modelForKey maps a cache key back to a catalog model by id or by name
// with spaces removed.
func modelForKey(key string) (Descriptor, bool) {
	for _, m := range Models {
		if strings.Contains(key, m.ID) || strings.Contains(key, strings.ReplaceAll(m.Name, " ", "")) {
			return m, true
		}
	}
	return Descriptor{}, false
}
