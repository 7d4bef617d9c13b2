package esi

import (
	"context"
	"fmt"
)

// MarketOrder mirrors the ESI market order response.
type MarketOrder struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int32   `json:"type_id"`
	LocationID   int64   `json:"location_id"`
	SystemID     int32   `json:"system_id"`
	Price        float64 `json:"price"`
	VolumeRemain int32   `json:"volume_remain"`
	IsBuyOrder   bool    `json:"is_buy_order"`
}

// Quote is the best bid and ask for one type at one location.
// Missing sides are zero.
type Quote struct {
	Buy  float64 // highest buy order
	Sell float64 // lowest sell order
}

// BestQuote reduces an order book to the best buy/sell for typeID at
// locationID. locationID 0 accepts every location.
func BestQuote(orders []MarketOrder, typeID int32, locationID int64) Quote {
	var q Quote
	for _, o := range orders {
		if o.TypeID != typeID {
			continue
		}
		if locationID != 0 && o.LocationID != locationID {
			continue
		}
		if o.IsBuyOrder {
			if o.Price > q.Buy {
				q.Buy = o.Price
			}
		} else if q.Sell == 0 || o.Price < q.Sell {
			q.Sell = o.Price
		}
	}
	return q
}

// FetchRegionOrdersByType fetches all market orders for a specific type in a
// region. Page 1 carries X-Pages; the rest are fetched through FetchAllPages.
// Results are cached per region and type.
func (c *Client) FetchRegionOrdersByType(ctx context.Context, regionID, typeID int32) ([]MarketOrder, error) {
	key := fmt.Sprintf("region:%d:%d", regionID, typeID)
	return c.orderCache.Load(key, func() ([]MarketOrder, error) {
		urlFor := func(page int) string {
			return fmt.Sprintf("%s/markets/%d/orders/?datasource=tranquility&order_type=all&type_id=%d&page=%d",
				c.baseURL, regionID, typeID, page)
		}
		var first []MarketOrder
		totalPages, err := c.get(ctx, urlFor(1), false, &first)
		if err != nil {
			return nil, err
		}
		if totalPages <= 1 {
			return first, nil
		}
		rest, err := FetchAllPages(ctx, func(ctx context.Context, page int) ([]MarketOrder, error) {
			return pageFetcher[MarketOrder](c, urlFor, false)(ctx, page+1)
		}, totalPages-1, Named(key))
		if err != nil {
			return nil, err
		}
		return append(first, flatten(rest)...), nil
	})
}

// FetchStructureOrders fetches the full order book of a player structure.
// The structure endpoint is swept with FindMaxPage starting at begin and
// stepping by interval, then every page is fetched concurrently.
func (c *Client) FetchStructureOrders(ctx context.Context, structureID int64, begin, interval int) ([]MarketOrder, error) {
	if !c.HasToken() {
		return nil, fmt.Errorf("structure %d orders: no ESI token configured", structureID)
	}
	key := fmt.Sprintf("structure:%d", structureID)
	return c.orderCache.Load(key, func() ([]MarketOrder, error) {
		urlFor := func(page int) string {
			return fmt.Sprintf("%s/markets/structures/%d/?datasource=tranquility&page=%d", c.baseURL, structureID, page)
		}
		return findAndFetch[MarketOrder](ctx, c, urlFor, true, begin, interval, Named(key))
	})
}

// FetchRegionOrders sweeps the whole order book of a region. Region books are
// large, so the page count is discovered with FindMaxPage from begin/interval
// instead of trusting a single X-Pages read.
func (c *Client) FetchRegionOrders(ctx context.Context, regionID int32, begin, interval int) ([]MarketOrder, error) {
	key := fmt.Sprintf("region:%d", regionID)
	return c.orderCache.Load(key, func() ([]MarketOrder, error) {
		urlFor := func(page int) string {
			return fmt.Sprintf("%s/markets/%d/orders/?datasource=tranquility&order_type=all&page=%d", c.baseURL, regionID, page)
		}
		return findAndFetch[MarketOrder](ctx, c, urlFor, false, begin, interval, Named(key), RequireData())
	})
}
