// Package auction implements the sealed-bid auction lifecycle engine:
// creation, sealed bidding, commitment reveal, winner determination, and
// settlement, plus the background monitor that advances auctions past their
// wall-clock deadlines.
//
// Every mutation funnels through the store's per-auction compare-and-set,
// so explicit commands and monitor transitions can never both apply to the
// same auction. All monetary values use shopspring/decimal, never float64
// for money.
package auction

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/commitment"
	"github.com/lvr-auction-hook/auction-engine/internal/metrics"
	"github.com/lvr-auction-hook/auction-engine/internal/model"
	"github.com/lvr-auction-hook/auction-engine/internal/store"
)

var (
	// ErrInvalidArgument is returned for out-of-bounds parameters, malformed
	// commitments, or a reveal with no matching unrevealed bid.
	ErrInvalidArgument = errors.New("auction: invalid argument")

	// ErrWinnerMismatch is returned when an externally claimed winner does
	// not match the internally recomputed one. Treated as a conflict by the
	// boundary layer; external claims are advisory only.
	ErrWinnerMismatch = errors.New("auction: claimed winner does not match computed winner")
)

const (
	// MinDuration and MaxDuration bound the bidding window, in minutes.
	MinDuration = 1
	MaxDuration = 60

	// DefaultDuration matches the 12-second block cadence of one epoch worth
	// of blocks, expressed in minutes.
	DefaultDuration = 12
)

// Config carries the engine's tunables. Zero values fall back to defaults.
type Config struct {
	// MinBidFloor is the smallest acceptable min_bid at auction creation.
	MinBidFloor decimal.Decimal

	// RevealWindow is how long an auction stays in revealing once its
	// bidding deadline passes before the monitor settles or expires it.
	RevealWindow time.Duration

	// Split divides recovered MEV on completion.
	Split FeeSplit
}

// DefaultConfig returns the production defaults: 0.001 bid floor,
// 2 minute reveal window, 85/10/5 fee split.
func DefaultConfig() Config {
	return Config{
		MinBidFloor:  decimal.NewFromFloat(0.001),
		RevealWindow: 2 * time.Minute,
		Split:        DefaultFeeSplit(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinBidFloor.IsZero() {
		c.MinBidFloor = d.MinBidFloor
	}
	if c.RevealWindow <= 0 {
		c.RevealWindow = d.RevealWindow
	}
	if !c.Split.Valid() {
		c.Split = d.Split
	}
	return c
}

// Service is the auction lifecycle engine. It owns no background work of
// its own; the Monitor drives time-based transitions through the same
// compare-and-set paths used by explicit commands.
type Service struct {
	store store.Store
	cfg   Config
	sink  Sink // optional event sink; nil disables notifications
}

// NewService creates an engine over the given store. Pass nil for sink if
// event notifications are not needed.
func NewService(st store.Store, cfg Config, sink Sink) *Service {
	return &Service{
		store: st,
		cfg:   cfg.withDefaults(),
		sink:  sink,
	}
}

// --- Commands ---

// CreateAuction validates the parameters, persists a new pending auction,
// and immediately advances it to active through the normal transition path.
func (s *Service) CreateAuction(ctx context.Context, poolID string, duration int, minBid decimal.Decimal, blockNumber uint64) (*model.Auction, error) {
	if poolID == "" {
		return nil, fmt.Errorf("pool_id is required: %w", ErrInvalidArgument)
	}
	if duration < MinDuration || duration > MaxDuration {
		return nil, fmt.Errorf("duration %d outside [%d,%d] minutes: %w",
			duration, MinDuration, MaxDuration, ErrInvalidArgument)
	}
	if minBid.LessThan(s.cfg.MinBidFloor) {
		return nil, fmt.Errorf("min_bid %s below floor %s: %w",
			minBid, s.cfg.MinBidFloor, ErrInvalidArgument)
	}

	now := time.Now().UTC()
	a := &model.Auction{
		ID:           uuid.New().String(),
		PoolID:       poolID,
		StartTime:    now,
		Duration:     duration,
		MinBid:       minBid,
		Status:       model.StatusPending,
		WinningBid:   decimal.Zero,
		MEVRecovered: decimal.Zero,
		BlockNumber:  blockNumber,
	}

	if err := s.store.CreateAuction(ctx, a); err != nil {
		return nil, err
	}

	metrics.AuctionsCreated.WithLabelValues(poolID).Inc()
	s.publish(Event{
		Type:      EventAuctionCreated,
		AuctionID: a.ID,
		PoolID:    a.PoolID,
		Status:    a.Status,
		Timestamp: now,
	})
	slog.Info("auction created",
		"auction", a.ID,
		"pool", poolID,
		"duration_min", duration,
		"min_bid", minBid.String(),
		"block", blockNumber,
	)

	// There is no scheduled-start path: start_time is always now, so the
	// auction opens for bidding immediately.
	return s.transition(ctx, a.ID, model.StatusPending, model.StatusActive, nil)
}

// SubmitBid records a sealed bid on an active auction. Only the commitment
// is stored; the amount stays unknown until reveal and is deliberately not
// checked against min_bid here.
func (s *Service) SubmitBid(ctx context.Context, auctionID, bidder, bidCommitment string) (*model.Bid, error) {
	if bidder == "" {
		return nil, fmt.Errorf("bidder is required: %w", ErrInvalidArgument)
	}
	if !wellFormedCommitment(bidCommitment) {
		return nil, fmt.Errorf("malformed commitment: %w", ErrInvalidArgument)
	}

	bid := &model.Bid{
		BidID:      uuid.New().String(),
		AuctionID:  auctionID,
		Bidder:     bidder,
		Commitment: bidCommitment,
		Amount:     decimal.Zero,
		Timestamp:  time.Now().UTC(),
	}

	if err := s.store.AppendBid(ctx, auctionID, bid); err != nil {
		return nil, err
	}

	metrics.BidsSubmitted.Inc()
	s.publish(Event{
		Type:      EventBidSubmitted,
		AuctionID: auctionID,
		BidID:     bid.BidID,
		Bidder:    bidder,
		Timestamp: bid.Timestamp,
	})
	slog.Info("sealed bid accepted", "auction", auctionID, "bid", bid.BidID, "bidder", bidder)
	return bid, nil
}

// RevealBid opens a previously submitted commitment. The bidder's unrevealed
// bids on the auction are checked in arrival order; the first whose
// commitment matches (amount, nonce) is marked revealed. A mismatch is a
// false result with ErrInvalidArgument, not an internal failure.
//
// Reveals are accepted while the auction is active or revealing, so early
// revealers do not have to wait for the bidding deadline.
func (s *Service) RevealBid(ctx context.Context, auctionID, bidder string, amount decimal.Decimal, nonce string) (bool, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return false, err
	}
	if a.Status != model.StatusActive && a.Status != model.StatusRevealing {
		return false, fmt.Errorf("auction %s is %s, reveals require active or revealing: %w",
			auctionID, a.Status, store.ErrInvalidState)
	}

	bids, err := s.store.ListBids(ctx, auctionID)
	if err != nil {
		return false, err
	}

	revealed := countRevealed(bids)

	for _, b := range bids {
		if b.Bidder != bidder || b.Revealed {
			continue
		}
		if !commitment.Verify(b.Commitment, amount, nonce) {
			continue
		}

		err := s.store.UpdateBidReveal(ctx, b.BidID, amount, nonce, time.Now().UTC())
		if errors.Is(err, store.ErrConflict) {
			// Lost a concurrent reveal race for this bid; try the next one.
			continue
		}
		if errors.Is(err, store.ErrInvalidState) {
			// The auction settled or expired between the status read above and
			// the commit; the store's commit-time check is authoritative.
			return false, err
		}
		if err != nil {
			return false, err
		}

		metrics.BidsRevealed.Inc()
		s.publish(Event{
			Type:      EventBidRevealed,
			AuctionID: auctionID,
			BidID:     b.BidID,
			Bidder:    bidder,
			Timestamp: time.Now().UTC(),
		})
		slog.Info("bid revealed", "auction", auctionID, "bid", b.BidID, "bidder", bidder)

		// Once the last outstanding reveal lands after the bidding deadline,
		// settle without waiting for the next monitor tick. A racing
		// explicit completion simply wins the compare-and-set.
		if a.Status == model.StatusRevealing && revealed+1 == len(bids) {
			if _, err := s.settle(ctx, auctionID); err != nil && !errors.Is(err, store.ErrConflict) {
				slog.Warn("auto-settle after final reveal failed", "auction", auctionID, "err", err)
			}
		}
		return true, nil
	}

	metrics.RevealRejections.Inc()
	return false, fmt.Errorf("no unrevealed bid by %s matches the commitment: %w", bidder, ErrInvalidArgument)
}

// CompleteAuction settles an auction against an externally claimed winner.
// The claim is advisory: the engine recomputes the winner from revealed bids
// and rejects a mismatch with ErrWinnerMismatch rather than trusting the
// caller.
func (s *Service) CompleteAuction(ctx context.Context, auctionID, claimedWinner string, claimedBid decimal.Decimal) (bool, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return false, err
	}
	if a.Status != model.StatusActive && a.Status != model.StatusRevealing {
		return false, fmt.Errorf("auction %s is %s, completion requires active or revealing: %w",
			auctionID, a.Status, store.ErrInvalidState)
	}

	bids, err := s.store.ListBids(ctx, auctionID)
	if err != nil {
		return false, err
	}
	winner, ok := DetermineWinner(bids, a.MinBid)
	if !ok {
		return false, fmt.Errorf("auction %s has no qualifying revealed bid: %w",
			auctionID, store.ErrInvalidState)
	}
	if winner.Bidder != claimedWinner || !winner.Amount.Equal(claimedBid) {
		return false, fmt.Errorf("claimed %s@%s, computed %s@%s: %w",
			claimedWinner, claimedBid, winner.Bidder, winner.Amount, ErrWinnerMismatch)
	}

	// Completion from the bidding window first closes it, keeping the status
	// ordering strictly forward: active → revealing → completed.
	if a.Status == model.StatusActive {
		now := time.Now().UTC()
		if a, err = s.transition(ctx, auctionID, model.StatusActive, model.StatusRevealing, func(a *model.Auction) error {
			a.RevealDeadline = now
			return nil
		}); err != nil {
			return false, err
		}
	}

	if _, err := s.complete(ctx, a, winner, countRevealed(bids)); err != nil {
		return false, err
	}
	return true, nil
}

// CancelAuction is the administrative escape hatch: terminal, and only
// reachable before settlement begins.
func (s *Service) CancelAuction(ctx context.Context, auctionID string) (*model.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusPending && a.Status != model.StatusActive {
		return nil, fmt.Errorf("auction %s is %s, cancel requires pending or active: %w",
			auctionID, a.Status, store.ErrInvalidState)
	}
	return s.transition(ctx, auctionID, a.Status, model.StatusCancelled, nil)
}

// --- Queries ---

// GetAuction returns a single auction by id.
func (s *Service) GetAuction(ctx context.Context, id string) (*model.Auction, error) {
	return s.store.GetAuction(ctx, id)
}

// GetAuctions returns an insertion-ordered page of auctions, optionally
// filtered by status. Limit is clamped to [1,100], defaulting to 50.
func (s *Service) GetAuctions(ctx context.Context, status *model.AuctionStatus, limit, offset int) ([]model.Auction, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", *status, ErrInvalidArgument)
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListAuctions(ctx, status, clampLimit(limit, 50), offset)
}

// GetActiveAuctions returns every auction currently accepting bids.
func (s *Service) GetActiveAuctions(ctx context.Context) ([]model.Auction, error) {
	active := model.StatusActive
	return s.store.ListAuctions(ctx, &active, 0, 0)
}

// GetPoolAuctions returns a pool's auctions, newest first. Limit is clamped
// to [1,100], defaulting to 20.
func (s *Service) GetPoolAuctions(ctx context.Context, poolID string, limit int) ([]model.Auction, error) {
	return s.store.ListPoolAuctions(ctx, poolID, clampLimit(limit, 20))
}

// GetAuctionBids returns an auction's bids in arrival order.
func (s *Service) GetAuctionBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	return s.store.ListBids(ctx, auctionID)
}

// Stats returns the aggregate auction summary.
func (s *Service) Stats(ctx context.Context) (*model.AuctionStats, error) {
	return s.store.Stats(ctx)
}

// --- Internal transitions ---

// transition applies one forward status move through the store's
// compare-and-set, then records metrics and publishes the transition event.
// Extra runs against the authoritative record inside the commit and may
// abort it by returning an error.
func (s *Service) transition(ctx context.Context, id string, from, to model.AuctionStatus, extra func(*model.Auction) error) (*model.Auction, error) {
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("transition %s → %s not permitted: %w", from, to, store.ErrInvalidState)
	}

	a, err := s.store.UpdateAuction(ctx, id, from, func(a *model.Auction) error {
		a.Status = to
		if extra != nil {
			return extra(a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AuctionTransitions.WithLabelValues(string(to)).Inc()
	if to == model.StatusActive {
		metrics.ActiveAuctions.Inc()
	} else if from == model.StatusActive {
		metrics.ActiveAuctions.Dec()
	}

	s.publish(Event{
		Type:         eventTypeFor(to),
		AuctionID:    a.ID,
		PoolID:       a.PoolID,
		Status:       to,
		Winner:       a.Winner,
		WinningBid:   nonZeroString(a.WinningBid),
		MEVRecovered: nonZeroString(a.MEVRecovered),
		Timestamp:    time.Now().UTC(),
	})
	slog.Info("auction transition", "auction", id, "from", from, "to", to)
	return a, nil
}

// settle resolves a revealing auction: completed with the computed winner,
// or expired when no qualifying reveal exists. Used by the monitor, by
// auto-settlement after the final reveal, and indirectly by explicit
// completion.
func (s *Service) settle(ctx context.Context, auctionID string) (*model.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusRevealing {
		return nil, fmt.Errorf("auction %s is %s, settle requires revealing: %w",
			auctionID, a.Status, store.ErrConflict)
	}

	bids, err := s.store.ListBids(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	winner, ok := DetermineWinner(bids, a.MinBid)
	if !ok {
		return s.transition(ctx, auctionID, model.StatusRevealing, model.StatusExpired, func(a *model.Auction) error {
			if a.RevealedBids != countRevealed(bids) {
				return fmt.Errorf("auction %s: reveal landed after winner computation: %w", a.ID, store.ErrConflict)
			}
			return nil
		})
	}
	return s.complete(ctx, a, winner, countRevealed(bids))
}

// complete commits the revealing → completed transition with the winner's
// fields, then publishes the MEV distribution. Winner and winning bid are
// written exactly once here and never change afterwards.
//
// The commit re-checks the auction's revealed-bid count against the listing
// the winner was computed from: a reveal landing in between aborts with
// ErrConflict, and the caller (or the next monitor tick) recomputes the
// winner with that reveal included. winning_bid can therefore never settle
// below the maximum revealed amount.
func (s *Service) complete(ctx context.Context, a *model.Auction, winner model.Bid, revealedCount int) (*model.Auction, error) {
	updated, err := s.transition(ctx, a.ID, model.StatusRevealing, model.StatusCompleted, func(a *model.Auction) error {
		if a.RevealedBids != revealedCount {
			return fmt.Errorf("auction %s: reveal landed after winner computation: %w", a.ID, store.ErrConflict)
		}
		a.Winner = winner.Bidder
		a.WinningBid = winner.Amount
		a.MEVRecovered = winner.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dist := s.cfg.Split.Distribute(updated, now)
	s.publish(Event{
		Type:         EventMEVDistributed,
		AuctionID:    updated.ID,
		PoolID:       updated.PoolID,
		Winner:       updated.Winner,
		WinningBid:   updated.WinningBid.String(),
		MEVRecovered: updated.MEVRecovered.String(),
		Distribution: &dist,
		Timestamp:    now,
	})
	slog.Info("auction completed",
		"auction", updated.ID,
		"winner", updated.Winner,
		"winning_bid", updated.WinningBid.String(),
		"lp_amount", dist.LPAmount.String(),
	)
	return updated, nil
}

func (s *Service) publish(e Event) {
	if s.sink != nil {
		s.sink.Publish(e)
	}
}

// wellFormedCommitment accepts a 32-byte hex digest with optional 0x prefix.
func wellFormedCommitment(c string) bool {
	c = strings.TrimPrefix(strings.TrimPrefix(c, "0x"), "0X")
	if len(c) != 64 {
		return false
	}
	_, err := hex.DecodeString(c)
	return err == nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// countRevealed reports how many of the listed bids are revealed.
func countRevealed(bids []model.Bid) int {
	n := 0
	for _, b := range bids {
		if b.Revealed {
			n++
		}
	}
	return n
}

func nonZeroString(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
