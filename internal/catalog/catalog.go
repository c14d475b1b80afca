// Package catalog loads the questionnaire definition and flattens it into
// the ordered item sequence that sessions and scoring work with.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"go2b/internal/models"
)

type rawItem struct {
	Text    string `json:"text"`
	Reverse bool   `json:"reverse"`
}

type rawScale struct {
	Name  string    `json:"name"`
	Items []rawItem `json:"items"`
}

type rawArea struct {
	Name   string     `json:"name"`
	Scales []rawScale `json:"scales"`
}

type rawCatalog struct {
	Areas []rawArea `json:"areas"`
}

// Catalog is the immutable, flattened questionnaire. Built once at startup;
// sessions snapshot Items so a reload cannot corrupt an in-flight session.
type Catalog struct {
	items []models.Item
}

// Load reads the nested area/scale/item definition from a JSON file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Catalog from raw JSON, preserving area and scale order.
func Parse(data []byte) (*Catalog, error) {
	var rc rawCatalog
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	var items []models.Item
	for _, area := range rc.Areas {
		for _, sc := range area.Scales {
			for _, it := range sc.Items {
				items = append(items, models.Item{Scale: sc.Name, Text: it.Text, Reverse: it.Reverse})
			}
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("parse catalog: no items defined")
	}
	return &Catalog{items: items}, nil
}

// Items returns a copy of the flattened item sequence.
func (c *Catalog) Items() []models.Item {
	out := make([]models.Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of items in the questionnaire.
func (c *Catalog) Len() int { return len(c.items) }
