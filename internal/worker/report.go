// Package worker runs the periodic valuation loop for daemon mode.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hivefolio/tracker/internal/domain"
)

// PortfolioBuilder builds a complete account valuation.
type PortfolioBuilder interface {
	Build(ctx context.Context, account string, symbols []domain.Symbol, includeLayer1 bool) domain.Portfolio
}

// SnapshotStore archives a portfolio valuation.
type SnapshotStore interface {
	Store(ctx context.Context, p domain.Portfolio) ([]string, error)
}

// AfterSnapshotHook is called after each successful snapshot.
type AfterSnapshotHook interface {
	Export(ctx context.Context, p domain.Portfolio) error
}

// ReportWorker periodically values an account and archives the result.
type ReportWorker struct {
	builder       PortfolioBuilder
	store         SnapshotStore
	account       string
	symbols       []domain.Symbol
	includeLayer1 bool
	interval      time.Duration
	hook          AfterSnapshotHook // optional

	// AfterRun, when set, runs at the end of every cycle whether or not
	// the snapshot succeeded. Used for cache maintenance.
	AfterRun func()
}

// NewReportWorker creates a ReportWorker with an optional post-snapshot hook.
func NewReportWorker(builder PortfolioBuilder, store SnapshotStore, account string,
	symbols []domain.Symbol, includeLayer1 bool, interval time.Duration, hook AfterSnapshotHook) *ReportWorker {
	return &ReportWorker{
		builder:       builder,
		store:         store,
		account:       account,
		symbols:       symbols,
		includeLayer1: includeLayer1,
		interval:      interval,
		hook:          hook,
	}
}

func (w *ReportWorker) runOnce(ctx context.Context) {
	defer func() {
		if w.AfterRun != nil {
			w.AfterRun()
		}
	}()

	p := w.builder.Build(ctx, w.account, w.symbols, w.includeLayer1)
	paths, err := w.store.Store(ctx, p)
	if err != nil {
		slog.Error("ReportWorker: snapshot failed", "account", w.account, "error", err)
		return
	}
	slog.Info("ReportWorker: snapshot stored", "account", w.account, "files", len(paths),
		"totalUSD", p.Total.USD)

	if w.hook == nil {
		return
	}
	if err := w.hook.Export(ctx, p); err != nil {
		slog.Error("ReportWorker: export hook failed", "error", err)
	} else {
		slog.Info("ReportWorker: export hook completed")
	}
}

// Run starts the report worker loop. It blocks until the context is cancelled.
func (w *ReportWorker) Run(ctx context.Context) {
	slog.Info("ReportWorker: starting", "account", w.account, "interval", w.interval)

	// Run immediately on startup, then on every tick.
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ReportWorker: shutting down")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}
