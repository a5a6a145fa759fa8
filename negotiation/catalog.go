package negotiation

import (
	"fmt"
	"path"
	"sort"
)

// Item names the two icons of a tradable item: how it looks in the inventory
// and how it looks inside the trade window.
type Item struct {
	Inventory string `mapstructure:"inventory"`
	Window    string `mapstructure:"window"`
}

// Catalog maps item names to icons. Icon names are relative to the locator's
// template directory.
type Catalog map[string]Item

// DefaultCatalog lists the items known out of the box.
func DefaultCatalog() Catalog {
	icon := func(name string) string { return path.Join("Items", name) }
	return Catalog{
		"dino_egg":         {Inventory: icon("dino_egg_inventory.png"), Window: icon("dino_egg.png")},
		"icecream_machine": {Inventory: icon("icm_inventory.png"), Window: icon("icm.png")},
		"majestic_chair":   {Inventory: icon("MJS_INVENTORY.png"), Window: icon("MJS.png")},
		"petal_patch":      {Inventory: icon("petal_inventory.png"), Window: icon("petal.png")},
		"purple_pillow":    {Inventory: icon("pillow_inventory.png"), Window: icon("Pillow.png")},
		"hc_sofa":          {Inventory: icon("Sofa_inv.png"), Window: icon("Sofa.png")},
		"cola_machine":     {Inventory: icon("Cola_inventory.png"), Window: icon("cola.png")},
	}
}

// Lookup returns the icons of name.
func (c Catalog) Lookup(name string) (Item, error) {
	it, ok := c[name]
	if !ok {
		return Item{}, fmt.Errorf("unknown item %q", name)
	}
	return it, nil
}

// Names returns the item names sorted.
func (c Catalog) Names() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
