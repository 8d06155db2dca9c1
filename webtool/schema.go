package webtool

import "github.com/quaneh2/research-agent/llm"

// SearchDefinition declares the web_search tool schema.
func SearchDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "web_search",
		Description: "Search the web for information on a topic. Returns a list of search results with titles, URLs, and descriptions.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query. Be specific and concise.",
				},
			},
			"required": []string{"query"},
		},
	}
}

// FetchDefinition declares the web_fetch tool schema.
func FetchDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "web_fetch",
		Description: "Fetch and read the full content from a specific URL. Use this after finding relevant URLs through search.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The full URL to fetch content from.",
				},
			},
			"required": []string{"url"},
		},
	}
}
