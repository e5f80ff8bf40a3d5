package auction

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/openbid/auction-api/internal/auth"
	"github.com/openbid/auction-api/internal/realtime"
	"github.com/openbid/auction-api/internal/types"
	"github.com/openbid/auction-api/pkg/apperrors"
	"github.com/openbid/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrAuctionNotFound = fmt.Errorf("auction: %w", apperrors.ErrNotFound)
	ErrNotOwner        = fmt.Errorf("only the seller or an admin may modify this auction: %w", apperrors.ErrForbidden)
	ErrAlreadyFinal    = fmt.Errorf("auction has already ended or been cancelled: %w", apperrors.ErrConflict)
	ErrHasBids         = fmt.Errorf("auction with bids cannot be cancelled: %w", apperrors.ErrConflict)
	ErrNotDraft        = fmt.Errorf("only draft auctions can be submitted: %w", apperrors.ErrConflict)
	ErrNotApprovable   = fmt.Errorf("only pending auctions can be approved: %w", apperrors.ErrConflict)
)

// CreateAuctionRequest is the body for POST /auctions
type CreateAuctionRequest struct {
	Title        string    `json:"title" binding:"required"`
	Description  string    `json:"description"`
	Category     string    `json:"category" binding:"required"`
	StartPrice   float64   `json:"start_price" binding:"required"`
	ReservePrice float64   `json:"reserve_price"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time" binding:"required"`
	Draft        bool      `json:"draft"`
}

// ListFilter narrows and paginates auction listings.
type ListFilter struct {
	Category string
	Status   string
	Page     int
	PageSize int
}

// Service handles auction creation and listing. CurrentBid and WinnerID are
// out of its hands; those belong to bid admission and the lifecycle clock.
type Service struct {
	db        *Database
	publisher realtime.Publisher
}

func NewService(gormDB *gorm.DB, publisher realtime.Publisher) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		publisher: publisher,
	}
}

// Create validates and persists a new auction. Sellers' auctions start
// PENDING and need admin approval; admin-created auctions are pre-approved.
// A draft is parked until the seller submits it.
func (s *Service) Create(sellerID, role string, req CreateAuctionRequest) (*types.Auction, error) {
	now := time.Now()

	if req.StartPrice <= 0 {
		return nil, fmt.Errorf("start price must be positive: %w", apperrors.ErrValidation)
	}
	if req.ReservePrice < 0 {
		return nil, fmt.Errorf("reserve price cannot be negative: %w", apperrors.ErrValidation)
	}
	if req.ReservePrice > 0 && req.ReservePrice < req.StartPrice {
		return nil, fmt.Errorf("reserve price cannot be below start price: %w", apperrors.ErrValidation)
	}

	startTime := req.StartTime
	if startTime.IsZero() {
		startTime = now
	}
	if !req.EndTime.After(startTime) || !req.EndTime.After(now) {
		return nil, fmt.Errorf("end time must be in the future and after start time: %w", apperrors.ErrValidation)
	}

	status := types.AuctionStatusPending
	if req.Draft {
		status = types.AuctionStatusDraft
	}

	auction := &types.Auction{
		AuctionID:    "AUC_" + uuid.New().String(),
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		StartPrice:   req.StartPrice,
		ReservePrice: req.ReservePrice,
		SellerID:     sellerID,
		StartTime:    startTime,
		EndTime:      req.EndTime,
		Status:       status,
		Approved:     role == auth.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.CreateAuction(auction); err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auction.AuctionID).
		Str("seller_id", sellerID).
		Str("status", auction.Status).
		Float64("start_price", auction.StartPrice).
		Msg("auction created")

	return auction, nil
}

// List returns a page of auctions matching the filter.
func (s *Service) List(filter ListFilter) (*types.AuctionList, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}

	auctions, total, err := s.db.ListAuctions(filter)
	if err != nil {
		return nil, err
	}

	return &types.AuctionList{
		Items:    auctions,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// Get retrieves one auction.
func (s *Service) Get(auctionID string) (*types.Auction, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, ErrAuctionNotFound
	}
	return auction, nil
}

// Submit moves a draft into the approval queue. Seller-of-auction or admin.
func (s *Service) Submit(auctionID, callerID, role string) (*types.Auction, error) {
	auction, err := s.Get(auctionID)
	if err != nil {
		return nil, err
	}
	if auction.SellerID != callerID && role != auth.RoleAdmin {
		return nil, ErrNotOwner
	}
	if auction.Status != types.AuctionStatusDraft {
		return nil, ErrNotDraft
	}

	ok, err := s.db.TransitionStatus(auctionID, []string{types.AuctionStatusDraft}, types.AuctionStatusPending)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotDraft
	}

	return s.Get(auctionID)
}

// Approve flags a pending auction for activation by the lifecycle clock.
// Admin only (enforced by middleware); idempotent.
func (s *Service) Approve(auctionID string) (*types.Auction, error) {
	auction, err := s.Get(auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Approved {
		return auction, nil
	}
	if auction.Status != types.AuctionStatusPending {
		return nil, ErrNotApprovable
	}

	if err := s.db.SetApproved(auctionID); err != nil {
		return nil, err
	}

	log.Info().Str("auction_id", auctionID).Msg("auction approved")
	return s.Get(auctionID)
}

// Cancel withdraws an auction that has attracted no bids. Allowed for the
// seller or an admin while the auction is DRAFT, PENDING or ACTIVE.
func (s *Service) Cancel(auctionID, callerID, role string) (*types.Auction, error) {
	auction, err := s.Get(auctionID)
	if err != nil {
		return nil, err
	}
	if auction.SellerID != callerID && role != auth.RoleAdmin {
		return nil, ErrNotOwner
	}
	if auction.Status == types.AuctionStatusEnded || auction.Status == types.AuctionStatusCancelled {
		return nil, ErrAlreadyFinal
	}
	if auction.BidCount > 0 {
		return nil, ErrHasBids
	}

	cancellable := []string{types.AuctionStatusDraft, types.AuctionStatusPending, types.AuctionStatusActive}
	ok, err := s.db.TransitionStatus(auctionID, cancellable, types.AuctionStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyFinal
	}

	if err := s.publisher.Publish(realtime.Event{
		Type:      realtime.EventTypeProductUpdate,
		AuctionID: auctionID,
		Payload: realtime.ProductUpdatePayload{
			Status: types.AuctionStatusCancelled,
			Title:  auction.Title,
		},
	}); err != nil {
		log.Error().Err(err).Str("auction_id", auctionID).Msg("failed to publish cancellation event")
	}

	log.Info().Str("auction_id", auctionID).Str("caller_id", callerID).Msg("auction cancelled")
	return s.Get(auctionID)
}

// GinHandlers contains HTTP handlers for auction endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateAuctionHandler handles POST requests to create auctions.
// Requires a seller or admin role.
func (h *GinHandlers) CreateAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAuctionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		auction, err := h.service.Create(c.GetString("userID"), c.GetString("role"), req)
		response.Handle(c, auction, err)
	}
}

// ListAuctionsHandler handles GET requests for auction listings.
// Query parameters: category, status, page, page_size
func (h *GinHandlers) ListAuctionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

		list, err := h.service.List(ListFilter{
			Category: c.Query("category"),
			Status:   c.Query("status"),
			Page:     page,
			PageSize: pageSize,
		})
		response.Handle(c, list, err)
	}
}

// GetAuctionHandler handles GET requests for a single auction.
// URL parameter: auction_id
func (h *GinHandlers) GetAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auction, err := h.service.Get(c.Param("auction_id"))
		response.Handle(c, auction, err)
	}
}

// SubmitAuctionHandler handles POST requests to move drafts into the
// approval queue
func (h *GinHandlers) SubmitAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auction, err := h.service.Submit(c.Param("auction_id"), c.GetString("userID"), c.GetString("role"))
		response.Handle(c, auction, err)
	}
}

// ApproveAuctionHandler handles POST requests to approve pending auctions.
// Admin only.
func (h *GinHandlers) ApproveAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auction, err := h.service.Approve(c.Param("auction_id"))
		response.Handle(c, auction, err)
	}
}

// CancelAuctionHandler handles POST requests to cancel an auction
func (h *GinHandlers) CancelAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auction, err := h.service.Cancel(c.Param("auction_id"), c.GetString("userID"), c.GetString("role"))
		response.Handle(c, auction, err)
	}
}
