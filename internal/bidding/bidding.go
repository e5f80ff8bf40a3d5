package bidding

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/openbid/auction-api/internal/realtime"
	"github.com/openbid/auction-api/internal/types"
	"github.com/openbid/auction-api/pkg/apperrors"
	"github.com/openbid/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrAuctionNotFound  = fmt.Errorf("auction: %w", apperrors.ErrNotFound)
	ErrAuctionNotActive = fmt.Errorf("auction is not active: %w", apperrors.ErrConflict)
	ErrAuctionClosed    = fmt.Errorf("auction has closed: %w", apperrors.ErrConflict)
	ErrSelfBid          = fmt.Errorf("sellers cannot bid on their own auctions: %w", apperrors.ErrForbidden)
	ErrBidTooLow        = fmt.Errorf("bid amount is too low: %w", apperrors.ErrConflict)
	ErrInvalidBid       = fmt.Errorf("invalid bid: %w", apperrors.ErrValidation)
	ErrConcurrentUpdate = fmt.Errorf("auction changed during bid placement, retry with fresh state: %w", apperrors.ErrConflict)
)

// maxAdmissionRetries bounds how often a single submission re-reads after
// losing the compare-and-swap to a concurrent writer.
const maxAdmissionRetries = 3

// Policy is the configurable bid admission rule. A bid must exceed
// CurrentBid by more than MinIncrement (strictly greater when zero), or meet
// StartPrice when no bids exist yet.
type Policy struct {
	MinIncrement float64
}

// NameResolver supplies the bidder display name carried in bid events.
type NameResolver interface {
	DisplayName(userID string) (string, error)
}

// Service admits or rejects bids. Admission for one auction is serialized by
// a per-auction mutex; bids on different auctions never contend. The
// compare-and-swap in the store is a second guard against the lifecycle
// clock finalizing the auction mid-flight.
type Service struct {
	db        *Database
	publisher realtime.Publisher
	names     NameResolver
	policy    Policy

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(gormDB *gorm.DB, publisher realtime.Publisher, names NameResolver, policy Policy) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		publisher: publisher,
		names:     names,
		policy:    policy,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Service) auctionLock(auctionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[auctionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[auctionID] = lock
	}
	return lock
}

// PlaceBid validates a bid against current auction state and, on acceptance,
// atomically advances the auction and persists the bid. Exactly one
// bidUpdate event is published per accepted bid, after the commit. Rejected
// bids mutate nothing and emit nothing.
func (s *Service) PlaceBid(auctionID, bidderID string, amount float64) (*types.Bid, error) {
	if auctionID == "" || bidderID == "" {
		return nil, fmt.Errorf("%w: missing auction or bidder id", ErrInvalidBid)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrInvalidBid)
	}

	lock := s.auctionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; attempt < maxAdmissionRetries; attempt++ {
		auction, err := s.db.GetAuction(auctionID)
		if err != nil {
			return nil, err
		}
		if auction == nil {
			return nil, ErrAuctionNotFound
		}

		if err := s.validate(auction, bidderID, amount); err != nil {
			return nil, err
		}

		bidderName, err := s.names.DisplayName(bidderID)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		bid := &types.Bid{
			BidID:      "BID_" + uuid.New().String(),
			AuctionID:  auctionID,
			BidderID:   bidderID,
			BidderName: bidderName,
			Amount:     amount,
			PlacedAt:   now,
			CreatedAt:  now,
		}

		admitted, err := s.db.AdmitBid(auction, bid)
		if err != nil {
			return nil, err
		}
		if !admitted {
			// Lost the compare-and-swap; go around with fresh state.
			log.Debug().
				Str("auction_id", auctionID).
				Str("bidder_id", bidderID).
				Int("attempt", attempt+1).
				Msg("bid admission lost update race, retrying")
			continue
		}

		s.publishBidUpdate(auction, bid)

		log.Info().
			Str("auction_id", auctionID).
			Str("bid_id", bid.BidID).
			Str("bidder_id", bidderID).
			Float64("amount", amount).
			Int("bid_count", auction.BidCount+1).
			Msg("bid accepted")

		return bid, nil
	}

	return nil, ErrConcurrentUpdate
}

// validate applies the admission rules against a snapshot of auction state.
// The time check is the bid path's own responsibility: a bid arriving after
// endTime is rejected here even if the lifecycle sweep has not fired yet.
func (s *Service) validate(auction *types.Auction, bidderID string, amount float64) error {
	if auction.Status != types.AuctionStatusActive {
		return ErrAuctionNotActive
	}
	if !time.Now().Before(auction.EndTime) {
		return ErrAuctionClosed
	}
	if auction.SellerID == bidderID {
		return ErrSelfBid
	}

	if auction.BidCount == 0 {
		if amount < auction.StartPrice {
			return fmt.Errorf("%w: first bid must be at least the start price %.2f", ErrBidTooLow, auction.StartPrice)
		}
		return nil
	}
	if amount <= auction.CurrentBid+s.policy.MinIncrement {
		return fmt.Errorf("%w: must exceed %.2f", ErrBidTooLow, auction.CurrentBid+s.policy.MinIncrement)
	}
	return nil
}

func (s *Service) publishBidUpdate(auction *types.Auction, bid *types.Bid) {
	err := s.publisher.Publish(realtime.Event{
		Type:      realtime.EventTypeBidUpdate,
		AuctionID: auction.AuctionID,
		Payload: realtime.BidUpdatePayload{
			Amount:     bid.Amount,
			BidderName: bid.BidderName,
			BidCount:   auction.BidCount + 1,
		},
	})
	if err != nil {
		// Fanout is best-effort; the bid itself is already committed.
		log.Error().Err(err).Str("auction_id", auction.AuctionID).Msg("failed to publish bid update")
	}
}

// ListBids returns the bid history for an auction, highest first.
func (s *Service) ListBids(auctionID string) ([]types.Bid, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, ErrAuctionNotFound
	}
	return s.db.GetBidsByAuction(auctionID)
}

// PlaceBidRequest is the body for POST /auctions/:auction_id/bids. The
// amount is the only client input; everything else comes from auth claims
// and server state.
type PlaceBidRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// GinHandlers contains HTTP handlers for bidding endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceBidHandler handles POST requests to place bids.
// Requires a valid JWT token; the bidder is the authenticated user.
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		var req PlaceBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		bid, err := h.service.PlaceBid(c.Param("auction_id"), userID, req.Amount)
		response.Handle(c, bid, err)
	}
}

// ListBidsHandler handles GET requests for an auction's bid history
func (h *GinHandlers) ListBidsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bids, err := h.service.ListBids(c.Param("auction_id"))
		response.Handle(c, bids, err)
	}
}
