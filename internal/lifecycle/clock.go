package lifecycle

import (
	"context"
	"time"

	"github.com/openbid/auction-api/internal/realtime"
	"github.com/openbid/auction-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Settler creates the transaction for a winning bid. Implementations must be
// idempotent on the auction id; the clock will call it again on the next
// sweep if it fails.
type Settler interface {
	SettleAuction(auction *types.Auction, winnerID string, amount float64) error
}

// Clock moves auctions through their lifecycle on a periodic sweep:
// approved pending auctions go active once their start time passes, and
// active auctions are finalized exactly once after their end time. A bid
// arriving between end time and the sweep is rejected by bid admission's own
// time check, so nothing here is latency-sensitive for correctness.
type Clock struct {
	db        *Database
	settler   Settler
	publisher realtime.Publisher
	interval  time.Duration
}

func NewClock(gormDB *gorm.DB, settler Settler, publisher realtime.Publisher, interval time.Duration) *Clock {
	return &Clock{
		db:        NewDatabase(gormDB),
		settler:   settler,
		publisher: publisher,
		interval:  interval,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (c *Clock) Start(ctx context.Context) {
	logger := log.With().Str("component", "lifecycle_clock").Logger()
	logger.Info().Dur("interval", c.interval).Msg("starting lifecycle clock")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down lifecycle clock")
			return
		case <-ticker.C:
			if err := c.Sweep(); err != nil {
				logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep runs one pass: activation, finalization, settlement reconciliation.
// Per-auction failures are logged and left for the next sweep rather than
// aborting the pass.
func (c *Clock) Sweep() error {
	now := time.Now()

	if err := c.activateScheduled(now); err != nil {
		return err
	}
	if err := c.finalizeExpired(now); err != nil {
		return err
	}
	return c.reconcileSettlements()
}

func (c *Clock) activateScheduled(now time.Time) error {
	logger := log.With().Str("component", "lifecycle_clock").Logger()

	auctions, err := c.db.GetActivatable(now)
	if err != nil {
		return err
	}

	for _, auction := range auctions {
		ok, err := c.db.ActivateAuction(auction.AuctionID)
		if err != nil {
			logger.Error().Err(err).Str("auction_id", auction.AuctionID).Msg("failed to activate auction")
			continue
		}
		if !ok {
			// Another sweep or a cancellation got there first.
			continue
		}

		logger.Info().Str("auction_id", auction.AuctionID).Msg("auction activated")

		c.publish(realtime.Event{
			Type:      realtime.EventTypeProductUpdate,
			AuctionID: auction.AuctionID,
			Payload: realtime.ProductUpdatePayload{
				Status: types.AuctionStatusActive,
				Title:  auction.Title,
			},
		})
	}

	return nil
}

func (c *Clock) finalizeExpired(now time.Time) error {
	logger := log.With().Str("component", "lifecycle_clock").Logger()

	auctions, err := c.db.GetExpiredActive(now)
	if err != nil {
		return err
	}

	for _, auction := range auctions {
		winnerID, err := c.determineWinner(&auction)
		if err != nil {
			logger.Error().Err(err).Str("auction_id", auction.AuctionID).Msg("failed to determine winner")
			continue
		}

		ok, err := c.db.FinalizeAuction(auction.AuctionID, winnerID)
		if err != nil {
			logger.Error().Err(err).Str("auction_id", auction.AuctionID).Msg("failed to finalize auction")
			continue
		}
		if !ok {
			// Already finalized by a concurrent sweep; that sweep owns the
			// event and the settlement kickoff.
			continue
		}

		logger.Info().
			Str("auction_id", auction.AuctionID).
			Str("winner_id", winnerID).
			Float64("final_price", auction.CurrentBid).
			Int("bid_count", auction.BidCount).
			Msg("auction ended")

		c.publish(realtime.Event{
			Type:      realtime.EventTypeAuctionEnd,
			AuctionID: auction.AuctionID,
			Payload: realtime.AuctionEndPayload{
				WinnerID:   winnerID,
				FinalPrice: auction.CurrentBid,
				BidCount:   auction.BidCount,
				ReserveMet: auction.ReserveMet(),
			},
		})
	}

	return nil
}

// determineWinner applies the close rules: highest bidder wins when bids
// exist and the reserve (if any) is met; otherwise there is no winner.
func (c *Clock) determineWinner(auction *types.Auction) (string, error) {
	if auction.BidCount == 0 || !auction.ReserveMet() {
		return "", nil
	}

	top, err := c.db.GetHighestBid(auction.AuctionID)
	if err != nil {
		return "", err
	}
	if top == nil {
		return "", nil
	}
	return top.BidderID, nil
}

// reconcileSettlements creates transactions for won auctions that don't have
// one yet. This covers both the freshly-ended case and retries after a
// settlement failure in an earlier sweep.
func (c *Clock) reconcileSettlements() error {
	logger := log.With().Str("component", "lifecycle_clock").Logger()

	auctions, err := c.db.GetEndedUnsettled()
	if err != nil {
		return err
	}

	for _, auction := range auctions {
		if err := c.settler.SettleAuction(&auction, auction.WinnerID, auction.CurrentBid); err != nil {
			logger.Error().Err(err).Str("auction_id", auction.AuctionID).Msg("settlement failed, will retry next sweep")
		}
	}

	return nil
}

func (c *Clock) publish(event realtime.Event) {
	if err := c.publisher.Publish(event); err != nil {
		log.Error().
			Err(err).
			Str("component", "lifecycle_clock").
			Str("auction_id", event.AuctionID).
			Str("event_type", string(event.Type)).
			Msg("failed to publish event")
	}
}
