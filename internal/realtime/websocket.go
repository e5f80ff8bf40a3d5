package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/openbid/auction-api/internal/types"
	"github.com/openbid/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API is served behind its own origin checks; the channel itself is
	// read-only so cross-origin reads carry no mutation risk.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AuctionFinder lets the gateway reject subscriptions to auctions that don't
// exist without importing the auction service.
type AuctionFinder interface {
	Get(auctionID string) (*types.Auction, error)
}

// WSHandler upgrades HTTP requests to per-auction event streams.
type WSHandler struct {
	hub      *Hub
	auctions AuctionFinder
}

func NewWSHandler(hub *Hub, auctions AuctionFinder) *WSHandler {
	return &WSHandler{
		hub:      hub,
		auctions: auctions,
	}
}

// ServeAuctionChannel handles GET /ws/auctions/:auction_id. The connection is
// one-way: the server pushes events, the client only answers pings. There is
// no replay of missed events; a reconnecting client re-subscribes and
// re-fetches auction state over HTTP.
func (h *WSHandler) ServeAuctionChannel() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")
		if _, err := h.auctions.Get(auctionID); err != nil {
			response.Handle(c, nil, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade writes its own error response.
			return
		}
		defer conn.Close()

		clientID := uuid.New().String()
		logger := log.With().
			Str("component", "ws_gateway").
			Str("auction_id", auctionID).
			Str("client_id", clientID).
			Logger()

		events := h.hub.Subscribe(auctionID, clientID)
		defer h.hub.Unsubscribe(auctionID, clientID)

		logger.Debug().Msg("client subscribed")

		// Writer: events plus keepalive pings. Exits when Unsubscribe closes
		// the channel or the connection dies.
		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()
			for {
				select {
				case event, ok := <-events:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteJSON(event); err != nil {
						return
					}
				case <-ticker.C:
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		// Read loop exists to detect disconnects and keep pong handling alive.
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		// Closing the subscription lets the writer drain and exit before the
		// connection is torn down.
		h.hub.Unsubscribe(auctionID, clientID)
		<-done

		logger.Debug().Msg("client disconnected")
	}
}
