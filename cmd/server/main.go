package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/openbid/auction-api/internal/auction"
	"github.com/openbid/auction-api/internal/auth"
	"github.com/openbid/auction-api/internal/bidding"
	"github.com/openbid/auction-api/internal/config"
	"github.com/openbid/auction-api/internal/database"
	"github.com/openbid/auction-api/internal/lifecycle"
	"github.com/openbid/auction-api/internal/realtime"
	"github.com/openbid/auction-api/internal/settlement"
	"github.com/openbid/auction-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the auction API server with graceful shutdown
// support. It sets up the store, services, background loops and API routes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to access database handle")
	}
	defer sqlDB.Close()

	// Background loops stop with this context.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Real-time fanout: in-process hub, optionally bridged over Redis so
	// events reach subscribers on every node.
	hub := realtime.NewHub()
	var publisher realtime.Publisher = hub
	if cfg.RedisAddr != "" {
		redisClient, err := realtime.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			zlog.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redisClient.Close()

		bridge := realtime.NewRedisBridge(hub, redisClient)
		go bridge.Start(bgCtx)
		publisher = bridge
	}

	// Initialize services and handlers
	authService := auth.NewService(db, cfg.JWTSecret, cfg.TokenTTL)
	authHandlers := auth.NewGinHandlers(authService)

	auctionService := auction.NewService(db, publisher)
	auctionHandlers := auction.NewGinHandlers(auctionService)

	biddingService := bidding.NewService(db, publisher, authService, bidding.Policy{
		MinIncrement: cfg.MinBidIncrement,
	})
	biddingHandlers := bidding.NewGinHandlers(biddingService)

	settlementService := settlement.NewService(db, cfg.PlatformFeeRate)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	wsHandler := realtime.NewWSHandler(hub, auctionService)

	// Lifecycle clock: activates approved auctions and finalizes expired
	// ones, kicking off settlement for winning bids.
	clock := lifecycle.NewClock(db, settlementService, publisher, cfg.SweepInterval)
	go clock.Start(bgCtx)

	// Settlement processor advances pending transactions.
	processor := settlement.NewProcessor(settlementService.GetDB(), cfg.SettlementInterval)
	go processor.Start(bgCtx)

	// Initialize router
	router := gin.Default()
	router.Use(middleware.RateLimit())

	setupRoutes(router, cfg.JWTSecret, authHandlers, auctionHandlers, biddingHandlers, settlementHandlers, wsHandler)

	// Create server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop background loops, then give outstanding requests 5 seconds
	bgCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by access level:
// - Public routes: registration, login, auction browsing, bid history, ws channel
// - Authenticated routes: profile, bidding, transactions
// - Seller routes: auction creation and management
// - Admin routes: auction approval
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auction.GinHandlers,
	biddingHandlers *bidding.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
	wsHandler *realtime.WSHandler,
) {
	// Real-time channel; subscription only, no auth needed to watch.
	router.GET("/ws/auctions/:auction_id", wsHandler.ServeAuctionChannel())

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// Public browsing
		v1.GET("/auctions", auctionHandlers.ListAuctionsHandler())
		v1.GET("/auctions/:auction_id", auctionHandlers.GetAuctionHandler())
		v1.GET("/auctions/:auction_id/bids", biddingHandlers.ListBidsHandler())

		// Authenticated routes
		authed := v1.Group("")
		authed.Use(middleware.JWTAuth(jwtSecret))
		{
			authed.GET("/users/me", authHandlers.GetProfileHandler())
			authed.PUT("/users/me", authHandlers.UpdateProfileHandler())

			authed.POST("/auctions/:auction_id/bids", biddingHandlers.PlaceBidHandler())
			authed.POST("/auctions/:auction_id/submit", auctionHandlers.SubmitAuctionHandler())
			authed.POST("/auctions/:auction_id/cancel", auctionHandlers.CancelAuctionHandler())

			authed.GET("/transactions", settlementHandlers.GetUserTransactionsHandler())
			authed.GET("/transactions/:transaction_id", settlementHandlers.GetTransactionHandler())

			// Auction creation is limited to sellers and admins.
			sellers := authed.Group("")
			sellers.Use(middleware.RequireRole(auth.RoleSeller, auth.RoleAdmin))
			{
				sellers.POST("/auctions", auctionHandlers.CreateAuctionHandler())
			}

			// Admin routes
			admin := authed.Group("/admin")
			admin.Use(middleware.RequireRole(auth.RoleAdmin))
			{
				admin.POST("/auctions/:auction_id/approve", auctionHandlers.ApproveAuctionHandler())
			}
		}
	}
}
