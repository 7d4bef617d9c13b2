package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eve-industry/internal/config"
	"eve-industry/internal/esi"
	"eve-industry/internal/logger"

	"golang.org/x/sync/errgroup"
)

// ESIMarket serves quotes and history from ESI. Structure markets are read
// as one full order book; NPC stations are read per type from the region.
// History goes through the optional persistent cache.
type ESIMarket struct {
	client  *esi.Client
	history esi.HistoryCache

	weekDays, monthDays, yearDays int
	structureBegin, structureStep int
	concurrency                   int
	now                           func() time.Time
}

// NewESIMarket creates a market view. history may be nil.
func NewESIMarket(client *esi.Client, history esi.HistoryCache, cfg *config.Config) *ESIMarket {
	return &ESIMarket{
		client:         client,
		history:        history,
		weekDays:       cfg.WeekDays,
		monthDays:      cfg.MonthDays,
		yearDays:       cfg.YearDays,
		structureBegin: cfg.StructureOrderBegin,
		structureStep:  cfg.StructureOrderStep,
		concurrency:    max(1, cfg.QuoteConcurrency),
		now:            time.Now,
	}
}

// Quotes returns the best bid and ask per type at market. A type without
// orders gets a zero quote. Per-type region failures are logged and leave a
// zero quote; a failed structure sweep is an error.
func (m *ESIMarket) Quotes(ctx context.Context, market config.Market, typeIDs []int32) (map[int32]esi.Quote, error) {
	out := make(map[int32]esi.Quote, len(typeIDs))
	if market.StructureID != 0 {
		orders, err := m.client.FetchStructureOrders(ctx, market.StructureID, m.structureBegin, m.structureStep)
		if err != nil {
			return nil, err
		}
		for _, id := range typeIDs {
			out[id] = esi.BestQuote(orders, id, market.StructureID)
		}
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, id := range typeIDs {
		g.Go(func() error {
			orders, err := m.client.FetchRegionOrdersByType(gctx, market.RegionID, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("ESI", fmt.Sprintf("%s orders for %d: %v", market.Name, id, err))
				return nil
			}
			q := esi.BestQuote(orders, id, market.LocationID)
			mu.Lock()
			out[id] = q
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the raw daily history, cached when a cache is set.
func (m *ESIMarket) History(ctx context.Context, market config.Market, typeID int32) ([]esi.HistoryEntry, error) {
	if m.history != nil {
		if entries, ok := m.history.GetMarketHistory(market.RegionID, typeID); ok {
			return entries, nil
		}
	}
	entries, err := m.client.FetchMarketHistory(ctx, market.RegionID, typeID)
	if err != nil {
		return nil, err
	}
	if m.history != nil {
		m.history.SetMarketHistory(market.RegionID, typeID, entries)
	}
	return entries, nil
}

// Summary aggregates the week, month and year windows.
func (m *ESIMarket) Summary(ctx context.Context, market config.Market, typeID int32) (esi.HistorySummary, error) {
	entries, err := m.History(ctx, market, typeID)
	if err != nil {
		return esi.HistorySummary{}, err
	}
	return esi.Summarize(entries, m.now(), m.weekDays, m.monthDays, m.yearDays), nil
}

// MonthlyStats is the month window of Summary.
func (m *ESIMarket) MonthlyStats(ctx context.Context, market config.Market, typeID int32) (esi.WindowStats, error) {
	entries, err := m.History(ctx, market, typeID)
	if err != nil {
		return esi.WindowStats{}, err
	}
	return esi.ComputeWindow(entries, m.now().UTC(), m.monthDays), nil
}
