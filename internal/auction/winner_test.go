package auction_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/auction"
	"github.com/lvr-auction-hook/auction-engine/internal/model"
)

func revealedBid(bidder string, amount float64, revealedAt time.Time) model.Bid {
	return model.Bid{
		BidID:      "bid-" + bidder,
		Bidder:     bidder,
		Amount:     d(amount),
		Revealed:   true,
		Timestamp:  revealedAt.Add(-time.Minute),
		RevealedAt: revealedAt,
	}
}

func TestDetermineWinner_MaxAmount(t *testing.T) {
	base := time.Now().UTC()
	bids := []model.Bid{
		revealedBid("alice", 0.5, base),
		revealedBid("bob", 0.9, base.Add(time.Second)),
		revealedBid("carol", 0.7, base.Add(2*time.Second)),
	}

	winner, ok := auction.DetermineWinner(bids, decimal.Zero)
	if !ok {
		t.Fatal("expected a winner")
	}
	if winner.Bidder != "bob" {
		t.Errorf("expected bob, got %s", winner.Bidder)
	}
}

func TestDetermineWinner_TieBrokenByEarliestReveal(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	bids := []model.Bid{
		revealedBid("a", 5, base.Add(10*time.Second)),
		revealedBid("b", 7, base.Add(12*time.Second)),
		revealedBid("c", 7, base.Add(9*time.Second)),
	}

	winner, ok := auction.DetermineWinner(bids, decimal.Zero)
	if !ok {
		t.Fatal("expected a winner")
	}
	if winner.Bidder != "c" {
		t.Errorf("tie at max amount must go to earliest reveal: expected c, got %s", winner.Bidder)
	}
}

func TestDetermineWinner_TieBrokenByBidder(t *testing.T) {
	base := time.Now().UTC()
	bids := []model.Bid{
		revealedBid("zed", 3, base),
		revealedBid("amy", 3, base),
	}

	winner, _ := auction.DetermineWinner(bids, decimal.Zero)
	if winner.Bidder != "amy" {
		t.Errorf("equal amount and reveal time must go to smallest bidder: got %s", winner.Bidder)
	}
}

func TestDetermineWinner_DeterministicAcrossOrdering(t *testing.T) {
	base := time.Now().UTC()
	forward := []model.Bid{
		revealedBid("a", 5, base.Add(time.Second)),
		revealedBid("b", 7, base.Add(2*time.Second)),
		revealedBid("c", 7, base),
	}
	reversed := []model.Bid{forward[2], forward[1], forward[0]}

	w1, _ := auction.DetermineWinner(forward, decimal.Zero)
	w2, _ := auction.DetermineWinner(reversed, decimal.Zero)
	if w1.Bidder != w2.Bidder {
		t.Errorf("winner depends on input order: %s vs %s", w1.Bidder, w2.Bidder)
	}
}

func TestDetermineWinner_IgnoresUnrevealedAndBelowFloor(t *testing.T) {
	base := time.Now().UTC()
	sealed := model.Bid{BidID: "sealed", Bidder: "dan", Amount: d(100), Timestamp: base}
	low := revealedBid("eve", 0.0005, base)
	bids := []model.Bid{sealed, low, revealedBid("alice", 0.01, base)}

	winner, ok := auction.DetermineWinner(bids, d(0.001))
	if !ok {
		t.Fatal("expected a winner")
	}
	if winner.Bidder != "alice" {
		t.Errorf("sealed and below-floor bids must not win: got %s", winner.Bidder)
	}
}

func TestDetermineWinner_NoRevealedBids(t *testing.T) {
	bids := []model.Bid{
		{BidID: "b1", Bidder: "alice", Timestamp: time.Now().UTC()},
	}
	if _, ok := auction.DetermineWinner(bids, decimal.Zero); ok {
		t.Error("no revealed bids must yield no winner")
	}
	if _, ok := auction.DetermineWinner(nil, decimal.Zero); ok {
		t.Error("empty bid set must yield no winner")
	}
}

func TestFeeSplit_Distribute(t *testing.T) {
	split := auction.DefaultFeeSplit()
	if !split.Valid() {
		t.Fatal("default split must be valid")
	}

	a := &model.Auction{
		ID:           "a1",
		PoolID:       "pool-1",
		MEVRecovered: d(1),
		BlockNumber:  42,
	}
	dist := split.Distribute(a, time.Now().UTC())

	if !dist.LPAmount.Equal(d(0.85)) || !dist.AVSAmount.Equal(d(0.10)) || !dist.ProtocolAmount.Equal(d(0.05)) {
		t.Errorf("unexpected split: lp=%s avs=%s protocol=%s",
			dist.LPAmount, dist.AVSAmount, dist.ProtocolAmount)
	}
	sum := dist.LPAmount.Add(dist.AVSAmount).Add(dist.ProtocolAmount)
	if !sum.Equal(dist.TotalAmount) {
		t.Errorf("parts must sum to total: %s != %s", sum, dist.TotalAmount)
	}
}

func TestFeeSplit_Invalid(t *testing.T) {
	bad := auction.FeeSplit{
		LPShare:       d(0.5),
		AVSShare:      d(0.5),
		ProtocolShare: d(0.5),
	}
	if bad.Valid() {
		t.Error("shares summing past 1 must be invalid")
	}
}
