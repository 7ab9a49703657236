package auction

import (
	"time"

	"github.com/lvr-auction-hook/auction-engine/internal/model"
)

// EventType labels the engine events emitted on committed transitions and
// bid activity.
type EventType string

const (
	EventAuctionCreated   EventType = "auction_created"
	EventAuctionActivated EventType = "auction_activated"
	EventAuctionRevealing EventType = "auction_revealing"
	EventAuctionCompleted EventType = "auction_completed"
	EventAuctionExpired   EventType = "auction_expired"
	EventAuctionCancelled EventType = "auction_cancelled"
	EventBidSubmitted     EventType = "bid_submitted"
	EventBidRevealed      EventType = "bid_revealed"
	EventMEVDistributed   EventType = "mev_distributed"
)

// Event is one engine notification. Exactly one event is published per
// committed status transition, plus bid activity events. Delivery is
// best-effort and at-least-once; consumers must be idempotent, and a failed
// delivery never rolls back the state transition it describes.
type Event struct {
	Type         EventType              `json:"type"`
	AuctionID    string                 `json:"auction_id"`
	PoolID       string                 `json:"pool_id,omitempty"`
	Status       model.AuctionStatus    `json:"status,omitempty"`
	BidID        string                 `json:"bid_id,omitempty"`
	Bidder       string                 `json:"bidder,omitempty"`
	Winner       string                 `json:"winner,omitempty"`
	WinningBid   string                 `json:"winning_bid,omitempty"`
	MEVRecovered string                 `json:"mev_recovered,omitempty"`
	Distribution *model.MEVDistribution `json:"distribution,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Sink receives engine events. Implementations must not block; the engine
// calls Publish inline on its mutation paths.
type Sink interface {
	Publish(Event)
}

// eventTypeFor maps a committed transition target to its event type.
func eventTypeFor(to model.AuctionStatus) EventType {
	switch to {
	case model.StatusActive:
		return EventAuctionActivated
	case model.StatusRevealing:
		return EventAuctionRevealing
	case model.StatusCompleted:
		return EventAuctionCompleted
	case model.StatusExpired:
		return EventAuctionExpired
	case model.StatusCancelled:
		return EventAuctionCancelled
	}
	return EventType(string(to))
}
