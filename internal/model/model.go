// Package model defines the core domain types shared across the auction engine.
// All monetary values use shopspring/decimal, never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction. Transitions only move
// forward: pending → active → revealing → {completed, expired}, with
// cancelled reachable from pending/active only.
type AuctionStatus string

const (
	StatusPending   AuctionStatus = "pending"
	StatusActive    AuctionStatus = "active"
	StatusRevealing AuctionStatus = "revealing"
	StatusCompleted AuctionStatus = "completed"
	StatusExpired   AuctionStatus = "expired"
	StatusCancelled AuctionStatus = "cancelled"
)

// Valid reports whether s is a known status value.
func (s AuctionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusRevealing,
		StatusCompleted, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is an end state. Terminal auctions are skipped
// by the lifecycle monitor and accept no further mutations.
func (s AuctionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusCancelled
}

// CanTransitionTo reports whether the forward-only status ordering permits
// moving from s to next.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusActive || next == StatusCancelled || next == StatusExpired
	case StatusActive:
		return next == StatusRevealing || next == StatusCancelled || next == StatusExpired
	case StatusRevealing:
		return next == StatusCompleted || next == StatusExpired
	}
	return false
}

// Auction represents one sealed-bid auction redistributing the MEV captured
// from a single pool at a single block.
type Auction struct {
	ID           string          `json:"id" db:"id"`
	PoolID       string          `json:"pool_id" db:"pool_id"`
	StartTime    time.Time       `json:"start_time" db:"start_time"`
	Duration     int             `json:"duration" db:"duration"` // bidding window, minutes
	MinBid       decimal.Decimal `json:"min_bid" db:"min_bid"`
	Status       AuctionStatus   `json:"status" db:"status"`
	Winner       string          `json:"winner,omitempty" db:"winner"`
	WinningBid   decimal.Decimal `json:"winning_bid" db:"winning_bid"`
	TotalBids    int             `json:"total_bids" db:"total_bids"`
	MEVRecovered decimal.Decimal `json:"mev_recovered" db:"mev_recovered"`
	BlockNumber  uint64          `json:"block_number" db:"block_number"`

	// RevealedBids counts committed reveals. Bumped atomically with each
	// reveal write, so settlement can detect reveals that landed after it
	// computed the winner.
	RevealedBids int `json:"revealed_bids" db:"revealed_bids"`

	// RevealDeadline is zero until the auction enters revealing; set by the
	// transition that opens the reveal window.
	RevealDeadline time.Time `json:"reveal_deadline,omitempty" db:"reveal_deadline"`

	// BidIDs holds the auction's bids in arrival order.
	BidIDs []string `json:"bid_ids,omitempty"`
}

// BidDeadline returns the instant the bidding window closes.
func (a *Auction) BidDeadline() time.Time {
	return a.StartTime.Add(time.Duration(a.Duration) * time.Minute)
}

// Bid represents a sealed bid. Amount is unknown (zero) until a reveal
// matching the commitment is accepted; Commitment is immutable once set.
type Bid struct {
	BidID      string          `json:"bid_id" db:"bid_id"`
	AuctionID  string          `json:"auction_id" db:"auction_id"`
	Bidder     string          `json:"bidder" db:"bidder"`
	Commitment string          `json:"commitment" db:"commitment"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
	Revealed   bool            `json:"revealed" db:"revealed"`

	// RevealNonce and RevealedAt are set only by a successful reveal.
	RevealNonce string    `json:"reveal_nonce,omitempty" db:"reveal_nonce"`
	RevealedAt  time.Time `json:"revealed_at,omitempty" db:"revealed_at"`
}

// AuctionStats is the aggregate summary over all auctions. Advisory only:
// values are snapshot-consistent per record, not across records.
type AuctionStats struct {
	TotalAuctions     int                   `json:"total_auctions"`
	CountByStatus     map[AuctionStatus]int `json:"count_by_status"`
	TotalBids         int                   `json:"total_bids"`
	TotalMEVRecovered decimal.Decimal       `json:"total_mev_recovered"`
	AverageWinningBid decimal.Decimal       `json:"average_winning_bid"`
}

// MEVDistribution is the fee split of a completed auction's recovered value
// between liquidity providers, the AVS, and the protocol.
type MEVDistribution struct {
	AuctionID      string          `json:"auction_id"`
	PoolID         string          `json:"pool_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	LPAmount       decimal.Decimal `json:"lp_amount"`
	AVSAmount      decimal.Decimal `json:"avs_amount"`
	ProtocolAmount decimal.Decimal `json:"protocol_amount"`
	BlockNumber    uint64          `json:"block_number"`
	Timestamp      time.Time       `json:"timestamp"`
}
