package auction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/model"
)

// FeeSplit configures how a completed auction's recovered MEV is divided
// between liquidity providers, the AVS operator set, and the protocol.
// Shares must sum to 1.
type FeeSplit struct {
	LPShare       decimal.Decimal
	AVSShare      decimal.Decimal
	ProtocolShare decimal.Decimal
}

// DefaultFeeSplit is the 85/10/5 LP/AVS/protocol split.
func DefaultFeeSplit() FeeSplit {
	return FeeSplit{
		LPShare:       decimal.NewFromFloat(0.85),
		AVSShare:      decimal.NewFromFloat(0.10),
		ProtocolShare: decimal.NewFromFloat(0.05),
	}
}

// Valid reports whether the shares are non-negative and sum to exactly 1.
func (f FeeSplit) Valid() bool {
	if f.LPShare.IsNegative() || f.AVSShare.IsNegative() || f.ProtocolShare.IsNegative() {
		return false
	}
	return f.LPShare.Add(f.AVSShare).Add(f.ProtocolShare).Equal(decimal.NewFromInt(1))
}

// Distribute computes the fee split for a completed auction. The protocol
// share takes the rounding remainder so the parts always sum to the total.
func (f FeeSplit) Distribute(a *model.Auction, now time.Time) model.MEVDistribution {
	total := a.MEVRecovered
	lp := total.Mul(f.LPShare).Round(8)
	avs := total.Mul(f.AVSShare).Round(8)
	return model.MEVDistribution{
		AuctionID:      a.ID,
		PoolID:         a.PoolID,
		TotalAmount:    total,
		LPAmount:       lp,
		AVSAmount:      avs,
		ProtocolAmount: total.Sub(lp).Sub(avs),
		BlockNumber:    a.BlockNumber,
		Timestamp:      now,
	}
}
