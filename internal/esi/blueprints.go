package esi

import (
	"context"
	"fmt"
)

// Blueprint is one blueprint item owned by a corporation or character.
// Quantity -1 marks an original, -2 a copy (then Runs is the remaining runs).
type Blueprint struct {
	ItemID             int64  `json:"item_id"`
	TypeID             int32  `json:"type_id"`
	LocationID         int64  `json:"location_id"`
	LocationFlag       string `json:"location_flag"`
	Quantity           int32  `json:"quantity"`
	Runs               int32  `json:"runs"`
	MaterialEfficiency int32  `json:"material_efficiency"`
	TimeEfficiency     int32  `json:"time_efficiency"`
}

// IsCopy reports whether the blueprint is a BPC.
func (b Blueprint) IsCopy() bool { return b.Quantity == -2 }

// FetchCorporationBlueprints fetches every page of a corporation's
// blueprints. Page 1 carries X-Pages; missing pages are dropped.
func (c *Client) FetchCorporationBlueprints(ctx context.Context, corporationID int64) ([]Blueprint, error) {
	if !c.HasToken() {
		return nil, fmt.Errorf("corporation %d blueprints: no ESI token configured", corporationID)
	}
	urlFor := func(page int) string {
		return fmt.Sprintf("%s/corporations/%d/blueprints/?datasource=tranquility&page=%d", c.baseURL, corporationID, page)
	}
	var first []Blueprint
	totalPages, err := c.get(ctx, urlFor(1), true, &first)
	if err != nil {
		return nil, fmt.Errorf("blueprints page 1: %w", err)
	}
	if totalPages <= 1 {
		return first, nil
	}
	rest, err := FetchAllPages(ctx, func(ctx context.Context, page int) ([]Blueprint, error) {
		return pageFetcher[Blueprint](c, urlFor, true)(ctx, page+1)
	}, totalPages-1, Named("corp-blueprints"))
	if err != nil {
		return nil, err
	}
	return append(first, flatten(rest)...), nil
}

// BestEfficiency returns the highest ME (then TE) seen for each blueprint
// type among originals, which is what a bp matcher would normally be set to.
func BestEfficiency(bps []Blueprint) map[int32][2]int32 {
	out := make(map[int32][2]int32)
	for _, b := range bps {
		if b.IsCopy() {
			continue
		}
		cur, ok := out[b.TypeID]
		if !ok || b.MaterialEfficiency > cur[0] ||
			(b.MaterialEfficiency == cur[0] && b.TimeEfficiency > cur[1]) {
			out[b.TypeID] = [2]int32{b.MaterialEfficiency, b.TimeEfficiency}
		}
	}
	return out
}
