// Package service wires the gate, the worker pool, the engines and run
// history into the operations the CLI exposes.
package service

import (
	"context"
	"fmt"
	"time"

	"eve-industry/internal/db"
	"eve-industry/internal/engine"
	"eve-industry/internal/gate"
	"eve-industry/internal/logger"
	"eve-industry/internal/worker"
)

// Optimizer solves compression plans.
type Optimizer interface {
	Optimize(ctx context.Context, req engine.CompressionRequest) (*engine.CompressionPlan, error)
}

// Ranker produces advisory reports.
type Ranker interface {
	Rank(ctx context.Context, user int64, plan string, products []string) (*engine.AdvisoryReport, error)
}

// RunStore records finished computations. *db.DB implements it.
type RunStore interface {
	InsertRun(r db.RunRecord, params any) (string, error)
	InsertAdvisoryRows(runID string, rows []engine.AdvisoryRow) error
}

// Service runs heavy computations one at a time.
type Service struct {
	gate      *gate.Gate
	pool      *worker.Pool
	optimizer Optimizer
	ranker    Ranker
	runs      RunStore
	timeout   time.Duration
}

// New creates a Service. runs may be nil to skip run history.
func New(g *gate.Gate, pool *worker.Pool, optimizer Optimizer, ranker Ranker, runs RunStore, timeout time.Duration) *Service {
	return &Service{gate: g, pool: pool, optimizer: optimizer, ranker: ranker, runs: runs, timeout: timeout}
}

// Refine solves a compression plan on the worker pool. The gate is held
// until the solve finishes, even when ctx ends the wait early.
func (s *Service) Refine(ctx context.Context, user int64, req engine.CompressionRequest) (*engine.CompressionPlan, error) {
	release, ok := s.gate.TryAcquire(ctx, s.timeout)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", s.gate.Name(), gate.ErrBusy)
	}

	start := time.Now()
	f, err := worker.Submit(ctx, s.pool, func() (*engine.CompressionPlan, error) {
		defer release()
		return s.optimizer.Optimize(ctx, req)
	})
	if err != nil {
		release()
		return nil, err
	}
	plan, err := f.Wait(ctx)
	if err != nil {
		return nil, err
	}

	s.record(db.RunRecord{
		Kind:       "refine",
		Owner:      user,
		Count:      len(plan.Need),
		TopValue:   plan.TotalOutputValue,
		TotalValue: plan.TotalSourceCost,
		DurationMs: time.Since(start).Milliseconds(),
	}, req)
	return plan, nil
}

// Advise ranks products under the gate. Ranking is network bound, so it
// runs on the caller's goroutine.
func (s *Service) Advise(ctx context.Context, user int64, plan string, products []string) (*engine.AdvisoryReport, error) {
	var report *engine.AdvisoryReport
	start := time.Now()
	err := s.gate.Run(ctx, s.timeout, func(ctx context.Context) error {
		r, err := s.ranker.Rank(ctx, user, plan, products)
		if err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := report.Sorted()
	var top, total float64
	if len(rows) > 0 {
		top = rows[0].MonthlyPotential
	}
	for _, r := range rows {
		if r.MonthlyPotential > 0 {
			total += r.MonthlyPotential
		}
	}
	id := s.record(db.RunRecord{
		ID:         report.ID,
		Kind:       "advise",
		Owner:      user,
		Plan:       plan,
		Count:      len(rows),
		TopValue:   top,
		TotalValue: total,
		DurationMs: time.Since(start).Milliseconds(),
	}, products)
	if id != "" {
		if err := s.runs.InsertAdvisoryRows(id, rows); err != nil {
			logger.Warn("ADVICE", fmt.Sprintf("store rows for run %s: %v", id, err))
		}
	}
	return report, nil
}

// record stores a run and returns its id, or "" when history is off or
// the write failed. History is best effort.
func (s *Service) record(r db.RunRecord, params any) string {
	if s.runs == nil {
		return ""
	}
	id, err := s.runs.InsertRun(r, params)
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("record %s run: %v", r.Kind, err))
		return ""
	}
	return id
}
