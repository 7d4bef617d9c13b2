package db

import (
	"errors"
	"fmt"

	"eve-industry/internal/engine"
	"eve-industry/internal/logger"
)

// InsertAdvisoryRows bulk-inserts advisory rows linked to a run.
func (d *DB) InsertAdvisoryRows(runID string, rows []engine.AdvisoryRow) error {
	if runID == "" || len(rows) == 0 {
		return nil
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("advisory rows begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO advisory_results (
		run_id, type_id, name, tech_tier, unit_cost, surcharge,
		secondary_sell, secondary_buy, hub_sell, hub_buy,
		monthly_volume, monthly_flow, profit, profit_rate, monthly_potential, error
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("advisory rows prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		if _, err := stmt.Exec(
			runID, r.TypeID, r.Name, r.TechTier, r.UnitCost, r.Surcharge,
			r.SecondarySell, r.SecondaryBuy, r.HubSell, r.HubBuy,
			r.MonthlyVolume, r.MonthlyFlow, r.Profit, r.ProfitRate, r.MonthlyPotential, errText,
		); err != nil {
			logger.Warn("DB", fmt.Sprintf("advisory row %d: %v", r.TypeID, err))
		}
	}
	return tx.Commit()
}

// GetAdvisoryRows returns a run's rows ordered by monthly potential, best first.
func (d *DB) GetAdvisoryRows(runID string) []engine.AdvisoryRow {
	rows, err := d.sql.Query(`
		SELECT type_id, name, tech_tier, unit_cost, surcharge,
			secondary_sell, secondary_buy, hub_sell, hub_buy,
			monthly_volume, monthly_flow, profit, profit_rate, monthly_potential, COALESCE(error, '')
		FROM advisory_results WHERE run_id = ? ORDER BY monthly_potential DESC, type_id`, runID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []engine.AdvisoryRow
	for rows.Next() {
		var r engine.AdvisoryRow
		var errText string
		if err := rows.Scan(
			&r.TypeID, &r.Name, &r.TechTier, &r.UnitCost, &r.Surcharge,
			&r.SecondarySell, &r.SecondaryBuy, &r.HubSell, &r.HubBuy,
			&r.MonthlyVolume, &r.MonthlyFlow, &r.Profit, &r.ProfitRate, &r.MonthlyPotential, &errText,
		); err != nil {
			continue
		}
		r.Err = restoreRowError(errText)
		out = append(out, r)
	}
	return out
}

func restoreRowError(text string) error {
	switch text {
	case "":
		return nil
	case engine.ErrZeroCost.Error():
		return engine.ErrZeroCost
	}
	return errors.New(text)
}
