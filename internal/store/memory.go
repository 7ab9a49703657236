package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
//
// A single mutex guards all state; the compare-and-set check inside
// UpdateAuction gives the same per-auction transition semantics as the
// PostgreSQL backend.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]*model.Auction
	order    []string // auction ids in insertion order
	bids     map[string]*model.Bid
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]*model.Auction),
		bids:     make(map[string]*model.Bid),
	}
}

// cloneAuction returns a deep copy so callers never alias stored state.
func cloneAuction(a *model.Auction) *model.Auction {
	c := *a
	c.BidIDs = append([]string(nil), a.BidIDs...)
	return &c
}

func (s *MemoryStore) CreateAuction(_ context.Context, a *model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[a.ID]; ok {
		return fmt.Errorf("auction %s already exists: %w", a.ID, ErrConflict)
	}
	s.auctions[a.ID] = cloneAuction(a)
	s.order = append(s.order, a.ID)
	return nil
}

func (s *MemoryStore) GetAuction(_ context.Context, id string) (*model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", id, ErrNotFound)
	}
	return cloneAuction(a), nil
}

func (s *MemoryStore) ListAuctions(_ context.Context, status *model.AuctionStatus, limit, offset int) ([]model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Auction, 0)
	skipped := 0
	for _, id := range s.order {
		a := s.auctions[id]
		if status != nil && a.Status != *status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, *cloneAuction(a))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) ListPoolAuctions(_ context.Context, poolID string, limit int) ([]model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Auction, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.auctions[s.order[i]]
		if a.PoolID != poolID {
			continue
		}
		result = append(result, *cloneAuction(a))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) UpdateAuction(_ context.Context, id string, expect model.AuctionStatus, mutate func(*model.Auction) error) (*model.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", id, ErrNotFound)
	}
	if a.Status != expect {
		return nil, fmt.Errorf("auction %s is %s, expected %s: %w", id, a.Status, expect, ErrConflict)
	}

	updated := cloneAuction(a)
	if err := mutate(updated); err != nil {
		return nil, err
	}
	s.auctions[id] = updated
	return cloneAuction(updated), nil
}

func (s *MemoryStore) AppendBid(_ context.Context, auctionID string, bid *model.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if a.Status != model.StatusActive {
		return fmt.Errorf("auction %s is %s, bids require active: %w", auctionID, a.Status, ErrInvalidState)
	}

	b := *bid
	s.bids[bid.BidID] = &b
	a.BidIDs = append(a.BidIDs, bid.BidID)
	a.TotalBids = len(a.BidIDs)
	return nil
}

func (s *MemoryStore) GetBid(_ context.Context, bidID string) (*model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bids[bidID]
	if !ok {
		return nil, fmt.Errorf("bid %s: %w", bidID, ErrNotFound)
	}
	c := *b
	return &c, nil
}

func (s *MemoryStore) ListBids(_ context.Context, auctionID string) ([]model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}

	result := make([]model.Bid, 0, len(a.BidIDs))
	for _, id := range a.BidIDs {
		if b, ok := s.bids[id]; ok {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (s *MemoryStore) UpdateBidReveal(_ context.Context, bidID string, amount decimal.Decimal, nonce string, revealedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bids[bidID]
	if !ok {
		return fmt.Errorf("bid %s: %w", bidID, ErrNotFound)
	}
	if b.Revealed {
		return fmt.Errorf("bid %s already revealed: %w", bidID, ErrConflict)
	}

	// The status check and the reveal write happen under the same lock as
	// auction transitions, so a reveal can never slip past a settled auction.
	a, ok := s.auctions[b.AuctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", b.AuctionID, ErrNotFound)
	}
	if a.Status != model.StatusActive && a.Status != model.StatusRevealing {
		return fmt.Errorf("auction %s is %s, reveals require active or revealing: %w",
			b.AuctionID, a.Status, ErrInvalidState)
	}

	b.Revealed = true
	b.Amount = amount
	b.RevealNonce = nonce
	b.RevealedAt = revealedAt
	a.RevealedBids++
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (*model.AuctionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.AuctionStats{
		CountByStatus:     make(map[model.AuctionStatus]int),
		TotalMEVRecovered: decimal.Zero,
		AverageWinningBid: decimal.Zero,
	}

	winningSum := decimal.Zero
	completed := 0
	for _, a := range s.auctions {
		stats.TotalAuctions++
		stats.CountByStatus[a.Status]++
		stats.TotalBids += a.TotalBids
		if a.Status == model.StatusCompleted {
			completed++
			stats.TotalMEVRecovered = stats.TotalMEVRecovered.Add(a.MEVRecovered)
			winningSum = winningSum.Add(a.WinningBid)
		}
	}
	if completed > 0 {
		stats.AverageWinningBid = winningSum.Div(decimal.NewFromInt(int64(completed))).Round(8)
	}
	return stats, nil
}
