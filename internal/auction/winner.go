package auction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/model"
)

// DetermineWinner selects the winning bid among the revealed bids of an
// auction: the maximum revealed amount at or above minBid, ties broken by
// earliest reveal time, then by lexicographically smallest bidder. The
// result is deterministic for any input ordering.
//
// Returns false when no revealed bid qualifies; the auction then expires
// rather than completes.
func DetermineWinner(bids []model.Bid, minBid decimal.Decimal) (model.Bid, bool) {
	var best *model.Bid
	for i := range bids {
		b := &bids[i]
		if !b.Revealed || b.Amount.LessThan(minBid) {
			continue
		}
		if best == nil || beats(b, best) {
			best = b
		}
	}
	if best == nil {
		return model.Bid{}, false
	}
	return *best, true
}

// beats reports whether b wins over current under the tiebreak ordering.
func beats(b, current *model.Bid) bool {
	if cmp := b.Amount.Cmp(current.Amount); cmp != 0 {
		return cmp > 0
	}
	bt, ct := revealTime(b), revealTime(current)
	if !bt.Equal(ct) {
		return bt.Before(ct)
	}
	return b.Bidder < current.Bidder
}

// revealTime falls back to the submission timestamp for records persisted
// before reveal times were tracked.
func revealTime(b *model.Bid) time.Time {
	if b.RevealedAt.IsZero() {
		return b.Timestamp
	}
	return b.RevealedAt
}
