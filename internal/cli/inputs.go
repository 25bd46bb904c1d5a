package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lunchbox-market/order-composer/internal/draft"
	"github.com/lunchbox-market/order-composer/internal/models"
)

// readCart loads a cart export: a bare array of line items or {"items": [...]}.
func readCart(path string) ([]models.CartLineItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	var items []models.CartLineItem
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Items []models.CartLineItem `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", path, err)
	}
	return wrapped.Items, nil
}

// readDraft loads a draft file. Each top-level key holds either the stored
// JSON object directly or that object encoded as a string, which is how the
// file draft store writes it.
func readDraft(path string, loc *time.Location) (models.DraftState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.DraftState{}, fmt.Errorf("read draft: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.DraftState{}, fmt.Errorf("decode draft %s: %w", path, err)
	}

	values := make(map[string][]byte, len(raw))
	for key, value := range raw {
		var inner string
		if err := json.Unmarshal(value, &inner); err == nil {
			values[key] = []byte(inner)
			continue
		}
		values[key] = value
	}
	return draft.Decode(values, loc), nil
}
