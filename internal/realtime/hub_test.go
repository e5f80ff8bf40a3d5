package realtime_test

import (
	"errors"
	"testing"
	"time"

	"github.com/openbid/auction-api/internal/realtime"
	"github.com/openbid/auction-api/pkg/apperrors"
	"github.com/stretchr/testify/require"
)

func bidEvent(auctionID string) realtime.Event {
	return realtime.Event{
		Type:      realtime.EventTypeBidUpdate,
		AuctionID: auctionID,
		Payload: realtime.BidUpdatePayload{
			Amount:     150,
			BidderName: "alice",
			BidCount:   1,
		},
	}
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name        string
		event       realtime.Event
		expectError bool
	}{
		{
			name:        "valid_bid_update",
			event:       bidEvent("AUC_1"),
			expectError: false,
		},
		{
			name:        "valid_auction_end",
			event:       realtime.Event{Type: realtime.EventTypeAuctionEnd, AuctionID: "AUC_1"},
			expectError: false,
		},
		{
			name:        "valid_product_update",
			event:       realtime.Event{Type: realtime.EventTypeProductUpdate, AuctionID: "AUC_1"},
			expectError: false,
		},
		{
			name:        "valid_image_update",
			event:       realtime.Event{Type: realtime.EventTypeImageUpdate, AuctionID: "AUC_1"},
			expectError: false,
		},
		{
			name:        "unknown_type",
			event:       realtime.Event{Type: "priceAlert", AuctionID: "AUC_1"},
			expectError: true,
		},
		{
			name:        "missing_auction_id",
			event:       realtime.Event{Type: realtime.EventTypeBidUpdate},
			expectError: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.event.Validate()
			if tc.expectError {
				require.Error(t, err)
				require.True(t, errors.Is(err, apperrors.ErrValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHubChannelIsolation(t *testing.T) {
	hub := realtime.NewHub()

	subA := hub.Subscribe("AUC_A", "client-1")
	subB := hub.Subscribe("AUC_B", "client-2")

	require.NoError(t, hub.Publish(bidEvent("AUC_A")))

	select {
	case event := <-subA:
		require.Equal(t, realtime.EventTypeBidUpdate, event.Type)
		require.Equal(t, "AUC_A", event.AuctionID)
	case <-time.After(time.Second):
		t.Fatal("subscriber of AUC_A did not receive the event")
	}

	select {
	case event := <-subB:
		t.Fatalf("subscriber of AUC_B received event for %s", event.AuctionID)
	default:
	}
}

func TestHubPublishRejectsInvalidEvent(t *testing.T) {
	hub := realtime.NewHub()
	sub := hub.Subscribe("AUC_A", "client-1")

	err := hub.Publish(realtime.Event{Type: "bogus", AuctionID: "AUC_A"})
	require.Error(t, err)

	select {
	case <-sub:
		t.Fatal("invalid event must not reach subscribers")
	default:
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := realtime.NewHub()

	sub := hub.Subscribe("AUC_A", "client-1")
	require.Equal(t, 1, hub.SubscriberCount("AUC_A"))

	hub.Unsubscribe("AUC_A", "client-1")
	require.Equal(t, 0, hub.SubscriberCount("AUC_A"))

	_, ok := <-sub
	require.False(t, ok, "channel should be closed after unsubscribe")

	// Publishing to a channel with no subscribers is a no-op.
	require.NoError(t, hub.Publish(bidEvent("AUC_A")))
}

func TestHubResubscribeReplacesStream(t *testing.T) {
	hub := realtime.NewHub()

	old := hub.Subscribe("AUC_A", "client-1")
	fresh := hub.Subscribe("AUC_A", "client-1")

	_, ok := <-old
	require.False(t, ok, "old stream should be closed on re-subscribe")

	require.NoError(t, hub.Publish(bidEvent("AUC_A")))
	select {
	case event := <-fresh:
		require.Equal(t, "AUC_A", event.AuctionID)
	case <-time.After(time.Second):
		t.Fatal("replacement stream did not receive the event")
	}

	require.Equal(t, 1, hub.SubscriberCount("AUC_A"))
}

func TestHubSlowSubscriberNeverBlocksPublish(t *testing.T) {
	hub := realtime.NewHub()
	hub.Subscribe("AUC_A", "stalled-client") // never read

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			require.NoError(t, hub.Publish(bidEvent("AUC_A")))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a subscriber that never reads")
	}
}
