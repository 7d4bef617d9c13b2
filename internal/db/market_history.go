package db

import (
	"fmt"
	"time"

	"eve-industry/internal/esi"
	"eve-industry/internal/logger"
)

const (
	// historyFreshness is how long a cached region/type history is served.
	historyFreshness = 12 * time.Hour
	// historyRetainDays covers the year window plus slack.
	historyRetainDays = 400
)

// GetMarketHistory retrieves cached market history for a region/type pair.
// Returns nil, false if not cached or older than historyFreshness.
func (d *DB) GetMarketHistory(regionID int32, typeID int32) ([]esi.HistoryEntry, bool) {
	var updatedAt string
	err := d.sql.QueryRow(
		"SELECT updated_at FROM market_history_meta WHERE region_id=? AND type_id=?",
		regionID, typeID,
	).Scan(&updatedAt)
	if err != nil {
		return nil, false
	}

	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil || time.Since(t) > historyFreshness {
		return nil, false
	}

	rows, err := d.sql.Query(
		"SELECT date, average, highest, lowest, volume, order_count FROM market_history WHERE region_id=? AND type_id=? ORDER BY date",
		regionID, typeID,
	)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	var entries []esi.HistoryEntry
	for rows.Next() {
		var e esi.HistoryEntry
		if err := rows.Scan(&e.Date, &e.Average, &e.Highest, &e.Lowest, &e.Volume, &e.OrderCount); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	// An item that never traded is cached as an empty history.
	return entries, true
}

// SetMarketHistory replaces the cached history for a region/type pair,
// keeping only the last historyRetainDays days.
func (d *DB) SetMarketHistory(regionID int32, typeID int32, entries []esi.HistoryEntry) {
	tx, err := d.sql.Begin()
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("SetMarketHistory begin tx: %v", err))
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM market_history WHERE region_id=? AND type_id=?", regionID, typeID); err != nil {
		logger.Warn("DB", fmt.Sprintf("SetMarketHistory delete: %v", err))
		return
	}

	stmt, err := tx.Prepare("INSERT INTO market_history (region_id, type_id, date, average, highest, lowest, volume, order_count) VALUES (?,?,?,?,?,?,?,?)")
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("SetMarketHistory prepare: %v", err))
		return
	}
	defer stmt.Close()

	cutoff := time.Now().UTC().AddDate(0, 0, -historyRetainDays).Format("2006-01-02")
	for _, e := range entries {
		if e.Date >= cutoff {
			stmt.Exec(regionID, typeID, e.Date, e.Average, e.Highest, e.Lowest, e.Volume, e.OrderCount)
		}
	}

	tx.Exec(
		"INSERT OR REPLACE INTO market_history_meta (region_id, type_id, updated_at) VALUES (?,?,?)",
		regionID, typeID, time.Now().UTC().Format(time.RFC3339),
	)

	if err := tx.Commit(); err != nil {
		logger.Warn("DB", fmt.Sprintf("SetMarketHistory commit: %v", err))
	}
}

// CleanupOldHistory drops history rows past the retention window and meta
// rows not refreshed in 30 days, then orphaned rows. Returns rows removed.
func (d *DB) CleanupOldHistory() int64 {
	cutoffDate := time.Now().UTC().AddDate(0, 0, -historyRetainDays).Format("2006-01-02")
	cutoffMeta := time.Now().UTC().AddDate(0, 0, -30).Format(time.RFC3339)

	var total int64
	exec := func(label, query string, args ...any) {
		res, err := d.sql.Exec(query, args...)
		if err != nil {
			logger.Warn("DB", fmt.Sprintf("CleanupOldHistory: %s: %v", label, err))
			return
		}
		if n, _ := res.RowsAffected(); n > 0 {
			total += n
			logger.Info("DB", fmt.Sprintf("CleanupOldHistory: removed %d %s", n, label))
		}
	}
	exec("old history rows", "DELETE FROM market_history WHERE date < ?", cutoffDate)
	exec("stale meta entries", "DELETE FROM market_history_meta WHERE updated_at < ?", cutoffMeta)
	exec("orphaned history rows", `
		DELETE FROM market_history
		WHERE (region_id, type_id) NOT IN (
			SELECT region_id, type_id FROM market_history_meta
		)`)
	return total
}
