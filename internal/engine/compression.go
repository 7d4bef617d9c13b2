package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"eve-industry/internal/config"
	"eve-industry/internal/esi"
	"eve-industry/internal/logger"
)

// PriceSide picks which side of the book prices a purchase or a valuation.
type PriceSide int

const (
	SideBuy  PriceSide = iota // highest buy order
	SideSell                  // lowest sell order
)

func (s PriceSide) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// ParsePriceSide accepts "buy" or "sell".
func ParsePriceSide(s string) (PriceSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	}
	return SideBuy, fmt.Errorf("price side %q: want buy or sell", s)
}

func (s PriceSide) pick(q esi.Quote) float64 {
	if s == SideSell {
		return q.Sell
	}
	return q.Buy
}

// PriceSource returns best quotes for a set of types at a market.
type PriceSource interface {
	Quotes(ctx context.Context, market config.Market, typeIDs []int32) (map[int32]esi.Quote, error)
}

// ResourceAmount is a quantity of one type.
type ResourceAmount struct {
	TypeID   int32
	Quantity int64
}

// CompressionRequest asks for the cheapest ore purchase covering Required.
type CompressionRequest struct {
	Required   []ResourceAmount
	SourceSide PriceSide // how ore and minerals are bought
	TargetSide PriceSide // how produced minerals are valued
}

// SourceLine is one ore (or mineral) to buy.
type SourceLine struct {
	TypeID  int32
	Name    string
	Batches int
	Units   int64
	Price   float64 // total ISK for Units
}

// ProductLine compares the requirement with what the plan yields after
// refine losses, floored per source.
type ProductLine struct {
	TypeID       int32
	Name         string
	Need         int64
	Actual       int64
	Surplus      int64
	SurplusValue float64
}

// CompressionPlan is the result of one optimisation.
type CompressionPlan struct {
	Need    map[int32]SourceLine
	Product map[int32]ProductLine
	// Connect[source][target] is the floored output of target from source.
	Connect map[int32]map[int32]int64

	TotalSourceCost   float64
	TotalSurplusValue float64
	TotalOutputValue  float64
}

// Sources returns the plan lines sorted by type id.
func (p *CompressionPlan) Sources() []SourceLine {
	out := make([]SourceLine, 0, len(p.Need))
	for _, l := range p.Need {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

// Products returns the product lines sorted by type id.
func (p *CompressionPlan) Products() []ProductLine {
	out := make([]ProductLine, 0, len(p.Product))
	for _, l := range p.Product {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

func emptyPlan() *CompressionPlan {
	return &CompressionPlan{
		Need:    map[int32]SourceLine{},
		Product: map[int32]ProductLine{},
		Connect: map[int32]map[int32]int64{},
	}
}

// CompressionOptimizer picks the ore purchase that covers a mineral
// requirement at the best blend of cost and output value.
type CompressionOptimizer struct {
	book    *RecipeBook
	prices  PriceSource
	hub     config.Market
	catalog Catalog
}

// NewCompressionOptimizer creates an optimizer. catalog may be nil; names
// then fall back to the base mineral table.
func NewCompressionOptimizer(book *RecipeBook, prices PriceSource, hub config.Market, catalog Catalog) *CompressionOptimizer {
	return &CompressionOptimizer{book: book, prices: prices, hub: hub, catalog: catalog}
}

// Optimize fetches hub quotes and solves the plan.
func (o *CompressionOptimizer) Optimize(ctx context.Context, req CompressionRequest) (*CompressionPlan, error) {
	need, err := normaliseNeed(req.Required, o.book.Targets())
	if err != nil {
		return nil, err
	}
	if len(need) == 0 {
		return emptyPlan(), nil
	}

	ids := o.book.Sources()
	seen := make(map[int32]bool, len(ids)+len(need))
	for _, id := range ids {
		seen[id] = true
	}
	for p := range need {
		if !seen[p] {
			seen[p] = true
			ids = append(ids, p)
		}
	}
	quotes, err := o.prices.Quotes(ctx, o.hub, ids)
	if err != nil {
		return nil, fmt.Errorf("hub quotes: %w", err)
	}
	srcPrice := make(map[int32]float64, len(quotes))
	tgtPrice := make(map[int32]float64, len(quotes))
	for id, q := range quotes {
		srcPrice[id] = req.SourceSide.pick(q)
		tgtPrice[id] = req.TargetSide.pick(q)
	}

	start := time.Now()
	plan, err := SolveCompression(o.book, need, srcPrice, tgtPrice)
	if err != nil {
		return nil, err
	}
	o.name(plan)
	logger.Info("REFINE", fmt.Sprintf("plan for %d minerals: %d sources, cost %.0f ISK (%v)",
		len(need), len(plan.Need), plan.TotalSourceCost, time.Since(start).Round(time.Millisecond)))
	return plan, nil
}

func (o *CompressionOptimizer) name(plan *CompressionPlan) {
	lookup := func(id int32) string {
		if n, ok := BaseName(id); ok {
			return n
		}
		if o.catalog != nil {
			if it, ok := o.catalog.ItemByID(id); ok {
				return it.Name
			}
		}
		return fmt.Sprintf("type %d", id)
	}
	for id, l := range plan.Need {
		l.Name = lookup(id)
		plan.Need[id] = l
	}
	for id, l := range plan.Product {
		l.Name = lookup(id)
		plan.Product[id] = l
	}
}

// normaliseNeed sums duplicate requirements and drops non-positive amounts.
// A positive amount of a type no recipe yields is infeasible.
func normaliseNeed(req []ResourceAmount, targets map[int32]bool) (map[int32]int64, error) {
	need := make(map[int32]int64)
	for _, r := range req {
		need[r.TypeID] += r.Quantity
	}
	for id, q := range need {
		if q <= 0 {
			delete(need, id)
			continue
		}
		if !targets[id] {
			return nil, fmt.Errorf("type %d is not produced by any recipe: %w", id, ErrInfeasible)
		}
	}
	return need, nil
}

// compressionProblem lays out the cover problem: one variable per priced
// recipe that yields a needed type, one row per needed type, both by id.
func compressionProblem(book *RecipeBook, need map[int32]int64, srcPrice, tgtPrice map[int32]float64) (*coverProblem, []int32, []Recipe, error) {
	targets := make([]int32, 0, len(need))
	for p := range need {
		targets = append(targets, p)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	var recipes []Recipe
	for _, r := range book.Recipes {
		if srcPrice[r.SourceID] <= 0 {
			continue
		}
		for _, p := range targets {
			if r.Yield[p] > 0 {
				recipes = append(recipes, r)
				break
			}
		}
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].SourceID < recipes[j].SourceID })

	prob := &coverProblem{
		c:     make([]float64, len(recipes)),
		cover: make([][]float64, len(targets)),
		need:  make([]float64, len(targets)),
		lo:    make([]float64, len(recipes)),
		hi:    make([]float64, len(recipes)),
	}
	for i, p := range targets {
		prob.need[i] = float64(need[p])
		prob.cover[i] = make([]float64, len(recipes))
		covered := false
		for m, r := range recipes {
			eff := r.EffectiveYield(p, book.Efficiency)
			prob.cover[i][m] = eff
			if eff > 0 {
				covered = true
			}
		}
		if !covered {
			return nil, nil, nil, fmt.Errorf("type %d: no recipe with a price yields it: %w", p, ErrInfeasible)
		}
	}
	for m, r := range recipes {
		value := 0.0
		bound := 0.0
		for i, p := range targets {
			eff := prob.cover[i][m]
			if eff <= 0 {
				continue
			}
			value += eff * tgtPrice[p]
			bound = math.Max(bound, math.Ceil(prob.need[i]/eff))
		}
		// 0.5*cost - 0.5*(value - cost)
		prob.c[m] = float64(r.BatchSize)*srcPrice[r.SourceID] - 0.5*value
		prob.hi[m] = bound
	}
	return prob, targets, recipes, nil
}

// SolveCompression solves the integer plan for positive needs with the
// given source and target unit prices. Sources without a positive price
// cannot be bought and are left out.
func SolveCompression(book *RecipeBook, need map[int32]int64, srcPrice, tgtPrice map[int32]float64) (*CompressionPlan, error) {
	plan := emptyPlan()
	if len(need) == 0 {
		return plan, nil
	}
	prob, targets, recipes, err := compressionProblem(book, need, srcPrice, tgtPrice)
	if err != nil {
		return nil, err
	}
	x, _, err := prob.solve()
	if err != nil {
		return nil, err
	}

	actual := make(map[int32]int64, len(targets))
	for m, r := range recipes {
		if x[m] <= 0 {
			continue
		}
		units := int64(x[m]) * int64(r.BatchSize)
		line := SourceLine{
			TypeID:  r.SourceID,
			Batches: x[m],
			Units:   units,
			Price:   srcPrice[r.SourceID] * float64(units),
		}
		plan.Need[r.SourceID] = line
		plan.TotalSourceCost += line.Price

		conn := make(map[int32]int64)
		for _, p := range targets {
			if r.Yield[p] <= 0 {
				continue
			}
			out := int64(math.Floor(float64(x[m])*r.EffectiveYield(p, book.Efficiency) + 1e-9))
			conn[p] = out
			actual[p] += out
		}
		plan.Connect[r.SourceID] = conn
	}

	for _, p := range targets {
		surplus := actual[p] - need[p]
		if surplus < 0 {
			surplus = 0
		}
		line := ProductLine{
			TypeID:       p,
			Need:         need[p],
			Actual:       actual[p],
			Surplus:      surplus,
			SurplusValue: tgtPrice[p] * float64(surplus),
		}
		plan.Product[p] = line
		plan.TotalSurplusValue += line.SurplusValue
		plan.TotalOutputValue += tgtPrice[p] * float64(actual[p])
	}
	return plan, nil
}
