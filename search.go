package anyworld

import (
	"context"
	"encoding/json"
	"fmt"
)

// SearchResult is one catalog entry returned by the /anything endpoint.
type SearchResult struct {
	ID              string          `json:"_id"`
	Name            string          `json:"name"`
	Type            string          `json:"type,omitempty"`
	ThemeCategories []string        `json:"themeCategories,omitempty"`
	Model           json.RawMessage `json:"model,omitempty"`
}

// Find queries the model catalog with a free-text search query, using the
// server's fuzzy matching.
func (c *Client) Find(ctx context.Context, searchQuery string) ([]SearchResult, error) {
	if searchQuery == "" {
		return nil, fmt.Errorf("anyworld: search query is required")
	}
	return c.anything(ctx, "", searchQuery)
}

// FindByName queries the model catalog for an exact model name.
func (c *Client) FindByName(ctx context.Context, modelName string) ([]SearchResult, error) {
	if modelName == "" {
		return nil, fmt.Errorf("anyworld: model name is required")
	}
	return c.anything(ctx, modelName, "")
}

func (c *Client) anything(ctx context.Context, modelName, searchQuery string) ([]SearchResult, error) {
	params := c.baseParams()
	params.Set("key", c.apiKey)
	params.Set("fuzzy", "true")
	if modelName != "" {
		params.Set("name", modelName)
	}
	if searchQuery != "" {
		params.Set("search", searchQuery)
	}

	// A single exact-name hit comes back as a bare object, a search as an
	// array; normalize to a slice either way.
	raw, err := c.do(ctx, "GET", c.apiURL+"/anything", params, nil, "")
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	if err := json.Unmarshal(raw, &results); err == nil {
		return results, nil
	}
	var single SearchResult
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decoding search response: %w", err)}
	}
	return []SearchResult{single}, nil
}
