package sde

import (
	"strings"

	"eve-industry/internal/engine"
	"eve-industry/internal/matcher"
)

// Catalog answers name, id and classification questions over loaded SDE
// data. It satisfies engine.Catalog and matcher.Catalog.
type Catalog struct {
	data *Data
	// lowercase name -> canonical spelling, per classification key type
	keys map[matcher.KeyType]map[string]string
}

// NewCatalog indexes d.
func NewCatalog(d *Data) *Catalog {
	c := &Catalog{data: d, keys: make(map[matcher.KeyType]map[string]string)}
	for _, kt := range matcher.KeyTypes {
		c.keys[kt] = make(map[string]string)
	}
	add := func(kt matcher.KeyType, name string) {
		if name != "" {
			c.keys[kt][strings.ToLower(name)] = name
		}
	}
	for _, g := range d.MarketGroups {
		add(matcher.KeyMarketGroup, g.Name)
	}
	for _, g := range d.Groups {
		add(matcher.KeyGroup, g.Name)
	}
	for _, name := range d.MetaGroups {
		add(matcher.KeyMeta, name)
	}
	add(matcher.KeyMeta, "Tech I")
	for _, name := range d.Categories {
		add(matcher.KeyCategory, name)
	}
	if d.Industry != nil {
		for bpID := range d.Industry.Blueprints {
			add(matcher.KeyBlueprint, c.TypeName(bpID))
		}
	}
	return c
}

// TypeName returns the English name of typeID, or "" when unknown.
func (c *Catalog) TypeName(typeID int32) string {
	if t, ok := c.data.Types[typeID]; ok {
		return t.Name
	}
	return ""
}

// ItemByID implements engine.Catalog.
func (c *Catalog) ItemByID(typeID int32) (engine.Item, bool) {
	t, ok := c.data.Types[typeID]
	if !ok {
		return engine.Item{}, false
	}
	it := engine.Item{TypeID: t.ID, Name: t.Name, TechTier: "Tech I"}
	if name, ok := c.data.MetaGroups[t.MetaGroupID]; ok && name != "" {
		it.TechTier = name
	}
	if g, ok := c.data.Groups[t.GroupID]; ok {
		it.Group = g.Name
	}
	it.Category = c.data.Categories[t.CategoryID]
	if mg, ok := c.data.MarketGroups[t.MarketGroupID]; ok {
		it.MarketGroup = mg.Name
	}
	if c.data.Industry != nil {
		if bp, ok := c.data.Industry.GetBlueprintForProduct(typeID); ok {
			it.Blueprint = c.TypeName(bp.BlueprintTypeID)
		}
	}
	return it, true
}

// ItemByName implements engine.Catalog. Names match case-insensitively.
func (c *Catalog) ItemByName(name string) (engine.Item, bool) {
	id, ok := c.data.TypeByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return engine.Item{}, false
	}
	return c.ItemByID(id)
}

// CanonicalKey implements matcher.Catalog. Blueprint keys accept either the
// blueprint or its product and resolve to the blueprint name; the other key
// types match their SDE names case-insensitively.
func (c *Catalog) CanonicalKey(kt matcher.KeyType, key string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(key))
	if name, ok := c.keys[kt][lower]; ok {
		return name, true
	}
	if kt != matcher.KeyBlueprint || c.data.Industry == nil {
		return "", false
	}
	id, ok := c.data.TypeByName[lower]
	if !ok {
		return "", false
	}
	bp, ok := c.data.Industry.GetBlueprintForProduct(id)
	if !ok {
		return "", false
	}
	name := c.TypeName(bp.BlueprintTypeID)
	return name, name != ""
}
