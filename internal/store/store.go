// Package store defines the persistence interface for the auction engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/model"
)

var (
	// ErrNotFound is returned when the referenced auction or bid does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when an optimistic precondition fails: the
	// auction's status changed under a racing mutator, the record already
	// exists, or a write-once field was already written.
	ErrConflict = errors.New("store: conflict")

	// ErrInvalidState is returned when an operation requires a status the
	// auction is not in, e.g. appending a bid to a non-active auction.
	ErrInvalidState = errors.New("store: invalid state")
)

// Store is the persistence interface. Every per-auction mutation is atomic
// relative to other mutators on the same auction; status transitions use an
// optimistic compare-and-set on the expected prior status.
type Store interface {
	// --- Auction operations ---

	// CreateAuction persists a new auction. ErrConflict if the id exists.
	CreateAuction(ctx context.Context, a *model.Auction) error

	// GetAuction retrieves an auction by its ID.
	GetAuction(ctx context.Context, id string) (*model.Auction, error)

	// ListAuctions returns an insertion-ordered page of auctions, optionally
	// filtered by status. A nil status means all statuses.
	ListAuctions(ctx context.Context, status *model.AuctionStatus, limit, offset int) ([]model.Auction, error)

	// ListPoolAuctions returns the auctions belonging to one pool, newest first.
	ListPoolAuctions(ctx context.Context, poolID string, limit int) ([]model.Auction, error)

	// UpdateAuction applies mutate to the auction iff its stored status still
	// equals expect at commit time. ErrConflict on a lost race. Mutate runs
	// against the authoritative record, serialized with every other mutation
	// on the same auction; returning an error aborts the commit and surfaces
	// that error unchanged.
	UpdateAuction(ctx context.Context, id string, expect model.AuctionStatus, mutate func(*model.Auction) error) (*model.Auction, error)

	// --- Bid operations ---

	// AppendBid records a sealed bid on an active auction and increments its
	// bid count. ErrInvalidState if the auction is not active.
	AppendBid(ctx context.Context, auctionID string, bid *model.Bid) error

	// GetBid retrieves a bid by its ID.
	GetBid(ctx context.Context, bidID string) (*model.Bid, error)

	// ListBids returns an auction's bids in arrival order.
	ListBids(ctx context.Context, auctionID string) ([]model.Bid, error)

	// UpdateBidReveal marks a bid revealed with the disclosed amount and nonce,
	// and bumps the owning auction's revealed-bid count in the same atomic step.
	// The write commits only while the owning auction is active or revealing,
	// checked at commit time against the authoritative status, never a cached
	// read: ErrInvalidState once the auction has moved on. Write-once:
	// ErrConflict if the bid was already revealed.
	UpdateBidReveal(ctx context.Context, bidID string, amount decimal.Decimal, nonce string, revealedAt time.Time) error

	// --- Aggregates ---

	// Stats computes the aggregate auction summary. Snapshot-consistent per
	// record only; advisory, not settlement-critical.
	Stats(ctx context.Context) (*model.AuctionStats, error)
}
