package lifecycle_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openbid/auction-api/internal/database"
	"github.com/openbid/auction-api/internal/lifecycle"
	"github.com/openbid/auction-api/internal/realtime"
	"github.com/openbid/auction-api/internal/settlement"
	"github.com/openbid/auction-api/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(event realtime.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) EventsOfType(eventType realtime.EventType) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Event
	for _, event := range p.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)
	return db
}

func newTestClock(t *testing.T, db *gorm.DB, publisher realtime.Publisher) *lifecycle.Clock {
	t.Helper()
	settler := settlement.NewService(db, 0.05)
	return lifecycle.NewClock(db, settler, publisher, time.Minute)
}

func seedAuction(t *testing.T, db *gorm.DB, modify func(*types.Auction)) *types.Auction {
	t.Helper()
	auction := &types.Auction{
		AuctionID:  "AUC_" + uuid.NewString(),
		Title:      "Vintage camera",
		Category:   "electronics",
		SellerID:   "USR_seller",
		Status:     types.AuctionStatusActive,
		StartPrice: 100,
		StartTime:  time.Now().Add(-2 * time.Hour),
		EndTime:    time.Now().Add(-time.Hour),
		Approved:   true,
	}
	if modify != nil {
		modify(auction)
	}
	require.NoError(t, db.Create(auction).Error)
	return auction
}

func seedBid(t *testing.T, db *gorm.DB, auctionID, bidderID string, amount float64) {
	t.Helper()
	bid := &types.Bid{
		BidID:      "BID_" + uuid.NewString(),
		AuctionID:  auctionID,
		BidderID:   bidderID,
		BidderName: bidderID + " name",
		Amount:     amount,
		PlacedAt:   time.Now(),
		CreatedAt:  time.Now(),
	}
	require.NoError(t, db.Create(bid).Error)
	require.NoError(t, db.Model(&types.Auction{}).
		Where("auction_id = ?", auctionID).
		Updates(map[string]interface{}{
			"current_bid": amount,
			"bid_count":   gorm.Expr("bid_count + 1"),
		}).Error)
}

func loadAuction(t *testing.T, db *gorm.DB, auctionID string) *types.Auction {
	t.Helper()
	var auction types.Auction
	require.NoError(t, db.Where("auction_id = ?", auctionID).First(&auction).Error)
	return &auction
}

func TestSweepActivatesScheduledAuctions(t *testing.T) {
	db := newTestDB(t)
	publisher := &recordingPublisher{}
	clock := newTestClock(t, db, publisher)

	due := seedAuction(t, db, func(a *types.Auction) {
		a.Status = types.AuctionStatusPending
		a.StartTime = time.Now().Add(-time.Minute)
		a.EndTime = time.Now().Add(time.Hour)
	})
	unapproved := seedAuction(t, db, func(a *types.Auction) {
		a.Status = types.AuctionStatusPending
		a.StartTime = time.Now().Add(-time.Minute)
		a.EndTime = time.Now().Add(time.Hour)
		a.Approved = false
	})
	future := seedAuction(t, db, func(a *types.Auction) {
		a.Status = types.AuctionStatusPending
		a.StartTime = time.Now().Add(time.Hour)
		a.EndTime = time.Now().Add(2 * time.Hour)
	})

	require.NoError(t, clock.Sweep())

	require.Equal(t, types.AuctionStatusActive, loadAuction(t, db, due.AuctionID).Status)
	require.Equal(t, types.AuctionStatusPending, loadAuction(t, db, unapproved.AuctionID).Status)
	require.Equal(t, types.AuctionStatusPending, loadAuction(t, db, future.AuctionID).Status)

	updates := publisher.EventsOfType(realtime.EventTypeProductUpdate)
	require.Len(t, updates, 1)
	require.Equal(t, due.AuctionID, updates[0].AuctionID)
}

func TestSweepFinalizesWithWinner(t *testing.T) {
	db := newTestDB(t)
	publisher := &recordingPublisher{}
	clock := newTestClock(t, db, publisher)

	auction := seedAuction(t, db, nil)
	seedBid(t, db, auction.AuctionID, "USR_alice", 150)
	seedBid(t, db, auction.AuctionID, "USR_bob", 250)

	require.NoError(t, clock.Sweep())

	ended := loadAuction(t, db, auction.AuctionID)
	require.Equal(t, types.AuctionStatusEnded, ended.Status)
	require.Equal(t, "USR_bob", ended.WinnerID)

	ends := publisher.EventsOfType(realtime.EventTypeAuctionEnd)
	require.Len(t, ends, 1)
	payload, ok := ends[0].Payload.(realtime.AuctionEndPayload)
	require.True(t, ok)
	require.Equal(t, "USR_bob", payload.WinnerID)
	require.Equal(t, 250.0, payload.FinalPrice)
	require.Equal(t, 2, payload.BidCount)
	require.True(t, payload.ReserveMet)

	// Settlement was kicked off in the same sweep.
	var txns []settlement.Transaction
	require.NoError(t, db.Where("auction_id = ?", auction.AuctionID).Find(&txns).Error)
	require.Len(t, txns, 1)
	require.Equal(t, "USR_bob", txns[0].BuyerID)
	require.Equal(t, "USR_seller", txns[0].SellerID)
	require.Equal(t, 250.0, txns[0].Amount)

	// A second sweep finds nothing to do: no new events, no new transactions.
	require.NoError(t, clock.Sweep())
	require.Len(t, publisher.EventsOfType(realtime.EventTypeAuctionEnd), 1)
	require.NoError(t, db.Where("auction_id = ?", auction.AuctionID).Find(&txns).Error)
	require.Len(t, txns, 1)
}

func TestSweepReserveNotMet(t *testing.T) {
	db := newTestDB(t)
	publisher := &recordingPublisher{}
	clock := newTestClock(t, db, publisher)

	auction := seedAuction(t, db, func(a *types.Auction) {
		a.ReservePrice = 500
	})
	seedBid(t, db, auction.AuctionID, "USR_alice", 400)

	require.NoError(t, clock.Sweep())

	ended := loadAuction(t, db, auction.AuctionID)
	require.Equal(t, types.AuctionStatusEnded, ended.Status)
	require.Empty(t, ended.WinnerID, "reserve not met, nobody wins")

	ends := publisher.EventsOfType(realtime.EventTypeAuctionEnd)
	require.Len(t, ends, 1)
	payload := ends[0].Payload.(realtime.AuctionEndPayload)
	require.Empty(t, payload.WinnerID)
	require.False(t, payload.ReserveMet)

	var count int64
	require.NoError(t, db.Model(&settlement.Transaction{}).Where("auction_id = ?", auction.AuctionID).Count(&count).Error)
	require.Zero(t, count, "no settlement without a winner")
}

func TestSweepNoBids(t *testing.T) {
	db := newTestDB(t)
	publisher := &recordingPublisher{}
	clock := newTestClock(t, db, publisher)

	auction := seedAuction(t, db, nil)

	require.NoError(t, clock.Sweep())

	ended := loadAuction(t, db, auction.AuctionID)
	require.Equal(t, types.AuctionStatusEnded, ended.Status)
	require.Empty(t, ended.WinnerID)

	var count int64
	require.NoError(t, db.Model(&settlement.Transaction{}).Where("auction_id = ?", auction.AuctionID).Count(&count).Error)
	require.Zero(t, count)
}

func TestSweepLeavesRunningAuctionsAlone(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock(t, db, &recordingPublisher{})

	running := seedAuction(t, db, func(a *types.Auction) {
		a.EndTime = time.Now().Add(time.Hour)
	})
	seedBid(t, db, running.AuctionID, "USR_alice", 150)

	require.NoError(t, clock.Sweep())

	require.Equal(t, types.AuctionStatusActive, loadAuction(t, db, running.AuctionID).Status)
}
