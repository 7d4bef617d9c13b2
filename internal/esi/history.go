package esi

import (
	"context"
	"fmt"
	"time"
)

// HistoryEntry represents a single day of market history for an item in a region.
type HistoryEntry struct {
	Date       string  `json:"date"`
	Average    float64 `json:"average"`
	Highest    float64 `json:"highest"`
	Lowest     float64 `json:"lowest"`
	Volume     int64   `json:"volume"`
	OrderCount int64   `json:"order_count"`
}

// HistoryCache is a persistent cache for market history data.
type HistoryCache interface {
	GetMarketHistory(regionID, typeID int32) ([]HistoryEntry, bool)
	SetMarketHistory(regionID, typeID int32, entries []HistoryEntry)
}

// WindowStats aggregates daily history over one lookback window.
type WindowStats struct {
	Days       int     // window length
	Entries    int     // days with data inside the window
	Flow       float64 // sum(average * volume), ISK traded
	Volume     int64   // units traded
	AvgHighest float64
	AvgLowest  float64
}

// HistorySummary holds the week / month / year windows used by the advisor.
type HistorySummary struct {
	Week  WindowStats
	Month WindowStats
	Year  WindowStats
}

// FetchMarketHistory fetches market history for a type in a region from ESI.
func (c *Client) FetchMarketHistory(ctx context.Context, regionID, typeID int32) ([]HistoryEntry, error) {
	url := fmt.Sprintf("%s/markets/%d/history/?datasource=tranquility&type_id=%d",
		c.baseURL, regionID, typeID)

	var entries []HistoryEntry
	if err := c.GetJSON(ctx, url, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ComputeWindow aggregates entries dated on or after midnight (UTC) of
// now minus days.
func ComputeWindow(entries []HistoryEntry, now time.Time, days int) WindowStats {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := midnight.AddDate(0, 0, -days).Format("2006-01-02")

	w := WindowStats{Days: days}
	var high, low float64
	for _, e := range entries {
		if e.Date < cutoff {
			continue
		}
		w.Entries++
		w.Flow += e.Average * float64(e.Volume)
		w.Volume += e.Volume
		high += e.Highest
		low += e.Lowest
	}
	if w.Entries > 0 {
		w.AvgHighest = high / float64(w.Entries)
		w.AvgLowest = low / float64(w.Entries)
	}
	return w
}

// Summarize computes the three standard windows.
func Summarize(entries []HistoryEntry, now time.Time, weekDays, monthDays, yearDays int) HistorySummary {
	now = now.UTC()
	return HistorySummary{
		Week:  ComputeWindow(entries, now, weekDays),
		Month: ComputeWindow(entries, now, monthDays),
		Year:  ComputeWindow(entries, now, yearDays),
	}
}
