package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"eve-industry/internal/config"
	"eve-industry/internal/esi"
	"eve-industry/internal/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ProductQuantity is one line of a cost request.
type ProductQuantity struct {
	TypeID   int32
	Name     string
	Quantity int
}

// CostEngine prices a batch of products under a user's production plan.
// UnitCosts returns ISK per unit keyed by type id and ErrPlanNotFound for an
// unknown plan.
type CostEngine interface {
	UnitCosts(ctx context.Context, user int64, plan string, items []ProductQuantity) (map[int32]float64, error)
}

// MarketData is the market view the advisor ranks against.
type MarketData interface {
	PriceSource
	MonthlyStats(ctx context.Context, market config.Market, typeID int32) (esi.WindowStats, error)
}

// AdvisoryParams are the friction factors and faction surcharges.
type AdvisoryParams struct {
	SaleFactor           float64 // share of the sell price kept after tax and broker
	CostFactor           float64 // overhead on the unit cost
	FactionSurcharge     float64
	FactionLineSurcharge float64 // Navy / Fleet hulls
	Concurrency          int
}

// DefaultAdvisoryParams mirrors config.Default.
func DefaultAdvisoryParams() AdvisoryParams {
	return AdvisoryParams{
		SaleFactor:           0.956,
		CostFactor:           1.01,
		FactionSurcharge:     200_000_000,
		FactionLineSurcharge: 100_000_000,
		Concurrency:          10,
	}
}

// AdvisoryParamsFromConfig reads the advisory settings of cfg.
func AdvisoryParamsFromConfig(cfg *config.Config) AdvisoryParams {
	return AdvisoryParams{
		SaleFactor:           cfg.SaleFactor,
		CostFactor:           cfg.CostFactor,
		FactionSurcharge:     cfg.FactionSurcharge,
		FactionLineSurcharge: cfg.FactionLineSurcharge,
		Concurrency:          cfg.QuoteConcurrency,
	}
}

// AdvisoryRow is the ranked economics of producing one product.
type AdvisoryRow struct {
	TypeID    int32   `json:"type_id"`
	Name      string  `json:"name"`
	TechTier  string  `json:"tech_tier"`
	UnitCost  float64 `json:"unit_cost"`
	Surcharge float64 `json:"surcharge"` // faction hull premium added to UnitCost

	SecondarySell float64 `json:"secondary_sell"`
	SecondaryBuy  float64 `json:"secondary_buy"`
	HubSell       float64 `json:"hub_sell"`
	HubBuy        float64 `json:"hub_buy"`

	MonthlyVolume int64   `json:"monthly_volume"`
	MonthlyFlow   float64 `json:"monthly_flow"` // ISK traded at the secondary market

	Profit           float64 `json:"profit"`
	ProfitRate       float64 `json:"profit_rate"`
	MonthlyPotential float64 `json:"monthly_potential"`

	Err error `json:"-"`
}

// Cost is the unit cost including any surcharge.
func (r AdvisoryRow) Cost() float64 { return r.UnitCost + r.Surcharge }

// Evaluate computes profit, rate and monthly potential from the row's
// prices. A row without a positive unit cost is marked with ErrZeroCost
// whatever its surcharge, and its rate and potential stay zero.
func (r *AdvisoryRow) Evaluate(p AdvisoryParams) {
	cost := r.Cost()
	r.Profit = r.SecondarySell*p.SaleFactor - cost*p.CostFactor
	r.ProfitRate, r.MonthlyPotential, r.Err = 0, 0, nil
	if r.UnitCost <= 0 || cost <= 0 {
		r.Err = ErrZeroCost
		return
	}
	r.ProfitRate = r.Profit / cost
	r.MonthlyPotential = r.MonthlyFlow * r.ProfitRate
}

// FactionSurcharge returns the premium for a faction hull: the line
// surcharge for Navy and Fleet issue, the full one otherwise. Other tiers
// pay nothing.
func FactionSurcharge(item Item, p AdvisoryParams) float64 {
	if item.TechTier != TechTierFaction {
		return 0
	}
	if strings.Contains(item.Name, "Navy") || strings.Contains(item.Name, "Fleet") {
		return p.FactionLineSurcharge
	}
	return p.FactionSurcharge
}

// AdvisoryReport is the outcome of one Rank call.
type AdvisoryReport struct {
	ID      string
	Owner   int64
	Plan    string
	Created time.Time
	Rows    map[int32]AdvisoryRow
	Unknown []string // product names the catalog did not know
}

// Sorted returns rows by monthly potential, best first.
func (r *AdvisoryReport) Sorted() []AdvisoryRow {
	out := make([]AdvisoryRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlyPotential != out[j].MonthlyPotential {
			return out[i].MonthlyPotential > out[j].MonthlyPotential
		}
		return out[i].TypeID < out[j].TypeID
	})
	return out
}

// Advisor ranks products by monthly profit potential at the secondary
// market.
type Advisor struct {
	catalog   Catalog
	costs     CostEngine
	market    MarketData
	hub       config.Market
	secondary config.Market
	params    AdvisoryParams
	now       func() time.Time
}

// NewAdvisor creates an Advisor.
func NewAdvisor(catalog Catalog, costs CostEngine, market MarketData, hub, secondary config.Market, params AdvisoryParams) *Advisor {
	if params.Concurrency <= 0 {
		params.Concurrency = 1
	}
	return &Advisor{
		catalog:   catalog,
		costs:     costs,
		market:    market,
		hub:       hub,
		secondary: secondary,
		params:    params,
		now:       time.Now,
	}
}

// Rank prices products under the user's plan and ranks them. Unknown names
// are reported in the result; an empty list of known products is an error.
func (a *Advisor) Rank(ctx context.Context, user int64, plan string, products []string) (*AdvisoryReport, error) {
	start := a.now()
	report := &AdvisoryReport{
		ID:      uuid.NewString(),
		Owner:   user,
		Plan:    plan,
		Created: start,
		Rows:    make(map[int32]AdvisoryRow),
	}

	var items []Item
	seen := make(map[int32]bool)
	for _, name := range products {
		it, ok := a.catalog.ItemByName(strings.TrimSpace(name))
		if !ok {
			report.Unknown = append(report.Unknown, name)
			continue
		}
		if seen[it.TypeID] {
			continue
		}
		seen[it.TypeID] = true
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w", strings.Join(report.Unknown, ", "), ErrUnknownProduct)
	}

	req := make([]ProductQuantity, len(items))
	ids := make([]int32, len(items))
	for i, it := range items {
		req[i] = ProductQuantity{TypeID: it.TypeID, Name: it.Name, Quantity: 1}
		ids[i] = it.TypeID
	}
	costs, err := a.costs.UnitCosts(ctx, user, plan, req)
	if err != nil {
		return nil, err
	}

	var (
		secQuotes, hubQuotes map[int32]esi.Quote
		mu                   sync.Mutex
		stats                = make(map[int32]esi.WindowStats, len(items))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.params.Concurrency)
	g.Go(func() error {
		q, err := a.market.Quotes(gctx, a.secondary, ids)
		if err != nil {
			return fmt.Errorf("%s quotes: %w", a.secondary.Name, err)
		}
		secQuotes = q
		return nil
	})
	g.Go(func() error {
		q, err := a.market.Quotes(gctx, a.hub, ids)
		if err != nil {
			return fmt.Errorf("%s quotes: %w", a.hub.Name, err)
		}
		hubQuotes = q
		return nil
	})
	for _, it := range items {
		g.Go(func() error {
			w, err := a.market.MonthlyStats(gctx, a.secondary, it.TypeID)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				logger.Warn("ADVICE", fmt.Sprintf("history %s: %v", it.Name, err))
				return nil
			}
			mu.Lock()
			stats[it.TypeID] = w
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, it := range items {
		sec, hub := secQuotes[it.TypeID], hubQuotes[it.TypeID]
		row := AdvisoryRow{
			TypeID:        it.TypeID,
			Name:          it.Name,
			TechTier:      it.TechTier,
			UnitCost:      costs[it.TypeID],
			Surcharge:     FactionSurcharge(it, a.params),
			SecondarySell: sec.Sell,
			SecondaryBuy:  sec.Buy,
			HubSell:       hub.Sell,
			HubBuy:        hub.Buy,
			MonthlyVolume: stats[it.TypeID].Volume,
			MonthlyFlow:   stats[it.TypeID].Flow,
		}
		row.Evaluate(a.params)
		if row.Err != nil {
			logger.Warn("ADVICE", fmt.Sprintf("%s: %v", it.Name, row.Err))
		}
		report.Rows[it.TypeID] = row
	}

	logger.Info("ADVICE", fmt.Sprintf("ranked %d products for plan %q in %v",
		len(report.Rows), plan, a.now().Sub(start).Round(time.Millisecond)))
	return report, nil
}
