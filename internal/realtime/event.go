package realtime

import (
	"fmt"

	"github.com/openbid/auction-api/pkg/apperrors"
)

// EventType enumerates the tagged event variants carried over a channel.
type EventType string

const (
	EventTypeBidUpdate     EventType = "bidUpdate"
	EventTypeAuctionEnd    EventType = "auctionEnd"
	EventTypeProductUpdate EventType = "productUpdate"
	EventTypeImageUpdate   EventType = "imageUpdate"
)

// Event is the wire shape delivered to subscribers: {type, auctionId, payload}.
type Event struct {
	Type      EventType   `json:"type"`
	AuctionID string      `json:"auctionId"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Validate is applied at the publish boundary; events with an unknown type or
// no auction id never enter the fanout.
func (e Event) Validate() error {
	switch e.Type {
	case EventTypeBidUpdate, EventTypeAuctionEnd, EventTypeProductUpdate, EventTypeImageUpdate:
	default:
		return fmt.Errorf("unknown event type %q: %w", e.Type, apperrors.ErrValidation)
	}
	if e.AuctionID == "" {
		return fmt.Errorf("event missing auction id: %w", apperrors.ErrValidation)
	}
	return nil
}

// BidUpdatePayload accompanies EventTypeBidUpdate.
type BidUpdatePayload struct {
	Amount     float64 `json:"amount"`
	BidderName string  `json:"bidder_name"`
	BidCount   int     `json:"bid_count"`
}

// AuctionEndPayload accompanies EventTypeAuctionEnd. WinnerID is empty when
// there were no bids or the reserve was not met.
type AuctionEndPayload struct {
	WinnerID   string  `json:"winner_id,omitempty"`
	FinalPrice float64 `json:"final_price"`
	BidCount   int     `json:"bid_count"`
	ReserveMet bool    `json:"reserve_met"`
}

// ProductUpdatePayload accompanies EventTypeProductUpdate.
type ProductUpdatePayload struct {
	Status string `json:"status"`
	Title  string `json:"title,omitempty"`
}

// ImageUpdatePayload accompanies EventTypeImageUpdate.
type ImageUpdatePayload struct {
	ImageURL string `json:"image_url"`
}

// Publisher is what the bid admission and lifecycle components hold. The hub
// satisfies it directly; the Redis bridge satisfies it for multi-node setups.
type Publisher interface {
	Publish(event Event) error
}
