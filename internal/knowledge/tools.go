package knowledge

import (
	"context"
	"encoding/json"

	"planforge/internal/tools"
)

// RegisterSearchTool exposes corpus retrieval to agents.
func RegisterSearchTool(registry *tools.Registry, store *Store) error {
	return registry.Register(&tools.Tool{
		Name:        "knowledge_search",
		Description: "Search the ingested document corpus for passages relevant to a query",
		Category:    tools.CategoryKnowledge,
		Priority:    60,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {
					Type:        "string",
					Description: "Natural-language search query",
				},
				"limit": {
					Type:        "integer",
					Description: "Max passages to return (default 5)",
					Default:     5,
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			limit := 0
			if v, ok := args["limit"].(float64); ok {
				limit = int(v)
			}

			entries, err := store.Search(ctx, query, limit)
			if err != nil {
				return "", err
			}
			if entries == nil {
				entries = []Entry{}
			}

			data, err := json.Marshal(map[string]any{
				"ok":      true,
				"query":   query,
				"results": entries,
			})
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	})
}
