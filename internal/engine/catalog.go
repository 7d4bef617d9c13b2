package engine

// TechTierFaction is the meta group name that triggers the faction surcharge.
const TechTierFaction = "Faction"

// Item is the catalog view of one type: its name and the classification
// the matcher key types refer to.
type Item struct {
	TypeID      int32
	Name        string
	TechTier    string // meta group name, "Tech I" when the type has none
	Group       string
	Category    string
	MarketGroup string
	Blueprint   string // blueprint that builds it, empty when none
}

// Catalog resolves item names and ids.
type Catalog interface {
	ItemByName(name string) (Item, bool)
	ItemByID(typeID int32) (Item, bool)
}

// MapCatalog is an in-memory Catalog keyed by type id.
type MapCatalog map[int32]Item

func (c MapCatalog) ItemByID(typeID int32) (Item, bool) {
	it, ok := c[typeID]
	return it, ok
}

func (c MapCatalog) ItemByName(name string) (Item, bool) {
	for _, it := range c {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}
