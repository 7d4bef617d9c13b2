package engine

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultRefineEfficiency is the reprocessing yield applied to compressed ore.
const DefaultRefineEfficiency = 0.906

// Base minerals.
const (
	Tritanium int32 = 34
	Pyerite   int32 = 35
	Mexallon  int32 = 36
	Isogen    int32 = 37
	Nocxium   int32 = 38
	Zydrine   int32 = 39
	Megacyte  int32 = 40
	Morphite  int32 = 11399
)

// BaseResources lists the refine targets in type id order.
var BaseResources = []int32{Tritanium, Pyerite, Mexallon, Isogen, Nocxium, Zydrine, Megacyte, Morphite}

var baseNames = map[int32]string{
	Tritanium: "Tritanium",
	Pyerite:   "Pyerite",
	Mexallon:  "Mexallon",
	Isogen:    "Isogen",
	Nocxium:   "Nocxium",
	Zydrine:   "Zydrine",
	Megacyte:  "Megacyte",
	Morphite:  "Morphite",
}

// Recipe turns one batch of SourceID into raw Yield units of each target.
// Compressed recipes lose yield to refining; identity recipes (buying the
// mineral itself) do not.
type Recipe struct {
	SourceID   int32
	BatchSize  int
	Yield      map[int32]float64
	Compressed bool
}

// EffectiveYield is the per-batch output of target after refine losses.
func (r Recipe) EffectiveYield(target int32, efficiency float64) float64 {
	y := r.Yield[target]
	if r.Compressed {
		return y * efficiency
	}
	return y
}

// RecipeBook is the set of recipes the compression optimizer may use.
type RecipeBook struct {
	Recipes    []Recipe
	Efficiency float64
}

// compressed ore yields per 100 units
var compressedYields = map[int32]map[int32]float64{
	62520: {Tritanium: 150, Pyerite: 90},
	62528: {Tritanium: 175, Mexallon: 70},
	62536: {Mexallon: 60, Isogen: 120},
	62552: {Isogen: 800, Pyerite: 2000, Mexallon: 1500},
	62524: {Pyerite: 90, Mexallon: 30},
	62516: {Tritanium: 400},
	62586: {Morphite: 140},
	62560: {Pyerite: 800, Mexallon: 2000, Nocxium: 800},
	62564: {Pyerite: 3200, Mexallon: 1200, Zydrine: 160},
	62568: {Pyerite: 3200, Mexallon: 1200, Megacyte: 120},
}

// DefaultRecipeBook returns the compressed ore table plus one identity
// recipe per base mineral.
func DefaultRecipeBook() *RecipeBook {
	book := &RecipeBook{Efficiency: DefaultRefineEfficiency}
	for id, yields := range compressedYields {
		y := make(map[int32]float64, len(yields))
		for k, v := range yields {
			y[k] = v
		}
		book.Recipes = append(book.Recipes, Recipe{SourceID: id, BatchSize: 100, Yield: y, Compressed: true})
	}
	for _, id := range BaseResources {
		book.Recipes = append(book.Recipes, Recipe{SourceID: id, BatchSize: 1, Yield: map[int32]float64{id: 1}})
	}
	book.sort()
	return book
}

func (b *RecipeBook) sort() {
	sort.Slice(b.Recipes, func(i, j int) bool { return b.Recipes[i].SourceID < b.Recipes[j].SourceID })
}

// Validate rejects duplicate sources, non-positive batches, negative
// yields and an efficiency outside (0,1].
func (b *RecipeBook) Validate() error {
	if b.Efficiency <= 0 || b.Efficiency > 1 {
		return fmt.Errorf("recipe book: efficiency %v outside (0,1]", b.Efficiency)
	}
	if len(b.Recipes) == 0 {
		return errors.New("recipe book: no recipes")
	}
	seen := make(map[int32]bool, len(b.Recipes))
	for _, r := range b.Recipes {
		if seen[r.SourceID] {
			return fmt.Errorf("recipe book: duplicate source %d", r.SourceID)
		}
		seen[r.SourceID] = true
		if r.BatchSize <= 0 {
			return fmt.Errorf("recipe book: source %d batch size %d", r.SourceID, r.BatchSize)
		}
		for p, y := range r.Yield {
			if y < 0 {
				return fmt.Errorf("recipe book: source %d yields %v of %d", r.SourceID, y, p)
			}
		}
	}
	return nil
}

// Targets is every type some recipe yields.
func (b *RecipeBook) Targets() map[int32]bool {
	out := make(map[int32]bool)
	for _, r := range b.Recipes {
		for p, y := range r.Yield {
			if y > 0 {
				out[p] = true
			}
		}
	}
	return out
}

// Sources lists the recipe source ids in book order.
func (b *RecipeBook) Sources() []int32 {
	out := make([]int32, len(b.Recipes))
	for i, r := range b.Recipes {
		out[i] = r.SourceID
	}
	return out
}

// YieldSource provides per-unit reprocessing yields, usually the SDE.
type YieldSource interface {
	RefineYields(typeID int32, targets map[int32]bool) map[int32]float64
}

// ApplyYields replaces compressed recipe yields with the ones src knows,
// scaled to the batch size. Recipes src has no data for keep their table.
// It returns how many recipes were updated.
func (b *RecipeBook) ApplyYields(src YieldSource) int {
	targets := b.Targets()
	n := 0
	for i, r := range b.Recipes {
		if !r.Compressed {
			continue
		}
		y := src.RefineYields(r.SourceID, targets)
		if len(y) == 0 {
			continue
		}
		for k := range y {
			y[k] *= float64(r.BatchSize)
		}
		b.Recipes[i].Yield = y
		n++
	}
	return n
}

// BaseName returns the English name of a base mineral.
func BaseName(typeID int32) (string, bool) {
	n, ok := baseNames[typeID]
	return n, ok
}
