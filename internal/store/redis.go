package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for single-auction reads. Mutations go to the primary store and
// invalidate the cached record; the next read re-populates it. Lifecycle
// correctness never depends on the cache; transitions always CAS against
// the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write paths (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAuction(ctx context.Context, a *model.Auction) error {
	if err := s.primary.CreateAuction(ctx, a); err != nil {
		return err
	}
	s.cacheAuction(ctx, a)
	return nil
}

func (s *CachedStore) UpdateAuction(ctx context.Context, id string, expect model.AuctionStatus, mutate func(*model.Auction) error) (*model.Auction, error) {
	a, err := s.primary.UpdateAuction(ctx, id, expect, mutate)
	if err != nil {
		return nil, err
	}
	// Invalidate rather than write-back; next read re-populates.
	s.rdb.Del(ctx, auctionKey(id))
	return a, nil
}

func (s *CachedStore) AppendBid(ctx context.Context, auctionID string, bid *model.Bid) error {
	if err := s.primary.AppendBid(ctx, auctionID, bid); err != nil {
		return err
	}
	s.rdb.Del(ctx, auctionKey(auctionID), bidsKey(auctionID))
	return nil
}

func (s *CachedStore) UpdateBidReveal(ctx context.Context, bidID string, amount decimal.Decimal, nonce string, revealedAt time.Time) error {
	if err := s.primary.UpdateBidReveal(ctx, bidID, amount, nonce, revealedAt); err != nil {
		return err
	}
	if b, err := s.primary.GetBid(ctx, bidID); err == nil {
		s.rdb.Del(ctx, bidsKey(b.AuctionID))
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAuction(ctx context.Context, id string) (*model.Auction, error) {
	data, err := s.rdb.Get(ctx, auctionKey(id)).Bytes()
	if err == nil {
		var a model.Auction
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheAuction(ctx, a)
	return a, nil
}

func (s *CachedStore) ListBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	data, err := s.rdb.Get(ctx, bidsKey(auctionID)).Bytes()
	if err == nil {
		var bids []model.Bid
		if json.Unmarshal(data, &bids) == nil {
			return bids, nil
		}
	}

	bids, err := s.primary.ListBids(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(bids); err == nil {
		s.rdb.Set(ctx, bidsKey(auctionID), data, s.ttl)
	}
	return bids, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListAuctions(ctx context.Context, status *model.AuctionStatus, limit, offset int) ([]model.Auction, error) {
	return s.primary.ListAuctions(ctx, status, limit, offset)
}

func (s *CachedStore) ListPoolAuctions(ctx context.Context, poolID string, limit int) ([]model.Auction, error) {
	return s.primary.ListPoolAuctions(ctx, poolID, limit)
}

func (s *CachedStore) GetBid(ctx context.Context, bidID string) (*model.Bid, error) {
	return s.primary.GetBid(ctx, bidID)
}

func (s *CachedStore) Stats(ctx context.Context) (*model.AuctionStats, error) {
	return s.primary.Stats(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAuction(ctx context.Context, a *model.Auction) {
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, auctionKey(a.ID), data, s.ttl)
	}
}

func auctionKey(id string) string  { return fmt.Sprintf("auction:%s", id) }
func bidsKey(id string) string     { return fmt.Sprintf("auction:%s:bids", id) }
