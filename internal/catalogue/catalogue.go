// Package catalogue reads the static catalogue data and renders the
// browsing pages.
package catalogue

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnknownCategory = errors.New("unknown category")

// Index maps a category key to the path of its item-list file.
type Index map[string]string

// Keys returns the category keys in stable order.
func (ix Index) Keys() []string {
	keys := make([]string, 0, len(ix))
	for k := range ix {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Label turns a category key into its tile label: underscores become
// spaces and the result is upper-cased.
func Label(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "_", " "))
}

// Item is the canonical item shape. Price is already formatted and empty
// when the data has none.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Price       string `json:"price,omitempty"`
}

type rawItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       json.RawMessage `json:"price"`
	Images      []string        `json:"images"`
	Image       string          `json:"image"`
}

func (ri rawItem) normalize() Item {
	it := Item{
		Name:        strings.TrimSpace(ri.Name),
		Description: strings.TrimSpace(ri.Description),
		Image:       ri.Image,
		Price:       formatPrice(ri.Price),
	}
	if len(ri.Images) > 0 && ri.Images[0] != "" {
		it.Image = ri.Images[0]
	}
	return it
}

// formatPrice renders numeric prices (JSON numbers or numeric strings) with
// two decimals; any other string is shown as written.
func formatPrice(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if d, err := decimal.NewFromString(s); err == nil {
			return d.StringFixed(2)
		}
		return s
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return ""
	}
	return d.StringFixed(2)
}

// DecodeItems parses an item-list file into canonical items.
func DecodeItems(data []byte) ([]Item, error) {
	var raws []rawItem
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raws))
	for _, ri := range raws {
		items = append(items, ri.normalize())
	}
	return items, nil
}

// Source is where the catalogue JSON comes from.
type Source interface {
	Index(ctx context.Context) (Index, error)
	// Items loads the item list at path, as written in the index.
	Items(ctx context.Context, path string) ([]Item, error)
}

// CategoryItems resolves key through the index and loads its items.
func CategoryItems(ctx context.Context, src Source, key string) ([]Item, error) {
	ix, err := src.Index(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := ix[key]
	if !ok || key == "" {
		return nil, ErrUnknownCategory
	}
	return src.Items(ctx, p)
}
