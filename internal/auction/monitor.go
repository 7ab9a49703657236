package auction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lvr-auction-hook/auction-engine/internal/metrics"
	"github.com/lvr-auction-hook/auction-engine/internal/model"
	"github.com/lvr-auction-hook/auction-engine/internal/store"
)

// DefaultMonitorInterval is the polling cadence for deadline scans.
const DefaultMonitorInterval = 5 * time.Second

// Monitor advances auctions past their wall-clock deadlines independently of
// request traffic: open bidding windows close, reveal windows settle or
// expire. Every transition goes through the same compare-and-set path as
// explicit commands, so a lost race just defers to the next tick.
//
// The monitor is owned by its caller: Run blocks until ctx is cancelled, so
// no background mutation can outlive the store it references.
type Monitor struct {
	svc      *Service
	interval time.Duration
}

// NewMonitor creates a lifecycle monitor over the engine. A non-positive
// interval falls back to DefaultMonitorInterval.
func NewMonitor(svc *Service, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Monitor{svc: svc, interval: interval}
}

// Run polls until ctx is cancelled and returns ctx.Err().
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("lifecycle monitor started", "interval", m.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("lifecycle monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one deadline scan. Exposed so tests and operational tooling can
// advance auctions deterministically without waiting for the ticker.
func (m *Monitor) Tick(ctx context.Context) {
	now := time.Now().UTC()
	m.activatePending(ctx)
	m.closeBidding(ctx, now)
	m.settleRevealing(ctx, now)
}

// activatePending opens stragglers left in pending, e.g. after a crash
// between creation and activation. Creation normally activates inline.
func (m *Monitor) activatePending(ctx context.Context) {
	pending := model.StatusPending
	auctions, err := m.svc.store.ListAuctions(ctx, &pending, 0, 0)
	if err != nil {
		slog.Error("monitor: list pending auctions failed", "err", err)
		return
	}
	for i := range auctions {
		a := &auctions[i]
		if _, err := m.svc.transition(ctx, a.ID, model.StatusPending, model.StatusActive, nil); err != nil {
			m.skip("activate", a.ID, err)
		}
	}
}

// closeBidding transitions active auctions whose bidding window has elapsed:
// to revealing when bids exist, directly to expired when none were ever
// placed.
func (m *Monitor) closeBidding(ctx context.Context, now time.Time) {
	active := model.StatusActive
	auctions, err := m.svc.store.ListAuctions(ctx, &active, 0, 0)
	if err != nil {
		slog.Error("monitor: list active auctions failed", "err", err)
		return
	}

	for i := range auctions {
		a := &auctions[i]
		if a.BidDeadline().After(now) {
			continue
		}

		if a.TotalBids == 0 {
			if _, err := m.svc.transition(ctx, a.ID, model.StatusActive, model.StatusExpired, nil); err != nil {
				m.skip("expire", a.ID, err)
			}
			continue
		}

		deadline := now.Add(m.svc.cfg.RevealWindow)
		if _, err := m.svc.transition(ctx, a.ID, model.StatusActive, model.StatusRevealing, func(a *model.Auction) error {
			a.RevealDeadline = deadline
			return nil
		}); err != nil {
			m.skip("close bidding", a.ID, err)
		}
	}
}

// settleRevealing settles revealing auctions whose reveal deadline has
// elapsed: completed with the computed winner, or expired when no valid
// reveal arrived.
func (m *Monitor) settleRevealing(ctx context.Context, now time.Time) {
	revealing := model.StatusRevealing
	auctions, err := m.svc.store.ListAuctions(ctx, &revealing, 0, 0)
	if err != nil {
		slog.Error("monitor: list revealing auctions failed", "err", err)
		return
	}

	for i := range auctions {
		a := &auctions[i]
		if a.RevealDeadline.IsZero() || a.RevealDeadline.After(now) {
			continue
		}
		if _, err := m.svc.settle(ctx, a.ID); err != nil {
			m.skip("settle", a.ID, err)
		}
	}
}

// skip logs a deferred transition. Conflicts are expected under races with
// explicit commands and are retried naturally on the next tick.
func (m *Monitor) skip(op, auctionID string, err error) {
	if errors.Is(err, store.ErrConflict) {
		metrics.MonitorConflicts.Inc()
		slog.Debug("monitor: transition lost race, deferring", "op", op, "auction", auctionID)
		return
	}
	slog.Error("monitor: transition failed", "op", op, "auction", auctionID, "err", err)
}
