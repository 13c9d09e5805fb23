// Package inventory implements the slot-based transaction layer: picking up,
// dropping, stacking, withdrawing, crafting and constructing. Every operation
// is a pure function over (actor, target, world objects) that either fails
// before any mutation or returns a Delta plus the request payload for the
// authority.
package inventory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ItemDef describes one item type. MaxStack zero means the item does not
// stack.
type ItemDef struct {
	ID       string `json:"id"`
	MaxStack int    `json:"max_stack,omitempty"`
	Price    int    `json:"price,omitempty"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Recipe turns inputs from the actor's inventory into outputs. Kind "ITEM"
// yields inventory items; "BUILDING" and "STOCKPILE" yield placed objects.
type Recipe struct {
	RecipeID string      `json:"recipe_id"`
	Kind     string      `json:"kind"`
	Inputs   []ItemCount `json:"inputs"`
	Outputs  []ItemCount `json:"outputs"`
}

// Catalog holds the item and recipe definitions with content digests.
type Catalog struct {
	Items         map[string]ItemDef
	Recipes       map[string]Recipe
	ItemsDigest   string
	RecipesDigest string
}

// Load reads items.json and recipes.json from configDir.
func Load(configDir string) (Catalog, error) {
	c := Catalog{
		Items:   map[string]ItemDef{},
		Recipes: map[string]Recipe{},
	}

	raw, err := os.ReadFile(filepath.Join(configDir, "items.json"))
	if err != nil {
		return c, fmt.Errorf("items.json: %w", err)
	}
	var items []ItemDef
	if err := json.Unmarshal(raw, &items); err != nil {
		return c, fmt.Errorf("items.json: %w", err)
	}
	for _, it := range items {
		if it.ID == "" {
			return c, fmt.Errorf("items.json: item with empty id")
		}
		c.Items[it.ID] = it
	}
	c.ItemsDigest = digest(raw)

	raw, err = os.ReadFile(filepath.Join(configDir, "recipes.json"))
	if err != nil {
		return c, fmt.Errorf("recipes.json: %w", err)
	}
	var recipes []Recipe
	if err := json.Unmarshal(raw, &recipes); err != nil {
		return c, fmt.Errorf("recipes.json: %w", err)
	}
	for _, r := range recipes {
		if r.RecipeID == "" {
			return c, fmt.Errorf("recipes.json: recipe with empty id")
		}
		c.Recipes[r.RecipeID] = r
	}
	c.RecipesDigest = digest(raw)

	return c, nil
}

// MaxStack returns the stack limit for an item type; 1 for non-stackables.
func (c Catalog) MaxStack(item string) int {
	if def, ok := c.Items[item]; ok && def.MaxStack > 0 {
		return def.MaxStack
	}
	return 1
}

func digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
