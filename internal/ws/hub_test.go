package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, shopID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		shopID: shopID,
		send:   make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := uuid.New()
	client := mockClient(hub, shopID)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[shopID] == nil {
		t.Fatal("shop room not created")
	}
	if !hub.rooms[shopID][client] {
		t.Fatal("client not registered in shop room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := uuid.New()
	client := mockClient(hub, shopID)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[shopID] != nil {
		t.Fatal("shop room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleShop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shop1 := uuid.New()
	shop2 := uuid.New()

	client1 := mockClient(hub, shop1)
	client2 := mockClient(hub, shop2)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	// Broadcast to shop1 only
	testPayload := json.RawMessage(`{"job_id":"test-123"}`)
	event := Event{
		Type:    EventJobUpdated,
		Payload: testPayload,
	}
	hub.BroadcastToShop(shop1, event)

	// Check client1 receives the message
	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != EventJobUpdated {
			t.Errorf("expected type 'job.updated', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	// Check client2 does NOT receive the message
	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different shop")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameShop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := uuid.New()
	client1 := mockClient(hub, shopID)
	client2 := mockClient(hub, shopID)
	client3 := mockClient(hub, shopID)

	// Register all clients to same shop
	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	// Broadcast event
	testPayload := json.RawMessage(`{"status":"APPROVED"}`)
	event := Event{
		Type:    EventAddonUpdated,
		Payload: testPayload,
	}
	hub.BroadcastToShop(shopID, event)

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != EventAddonUpdated {
				t.Errorf("client%d: expected type 'addon.updated', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestEventSerialization(t *testing.T) {
	testCases := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{
			name: "order created event",
			event: Event{
				Type:    EventOrderCreated,
				Payload: json.RawMessage(`{"id":"abc","total":"71.90"}`),
			},
			wantErr: false,
		},
		{
			name: "job updated event",
			event: Event{
				Type:    EventJobUpdated,
				Payload: json.RawMessage(`{"id":"def","status":"IN_PROGRESS"}`),
			},
			wantErr: false,
		},
		{
			name: "addon updated event",
			event: Event{
				Type:    EventAddonUpdated,
				Payload: json.RawMessage(`{"addon_id":"ghi","status":"DECLINED"}`),
			},
			wantErr: false,
		},
		{
			name: "order paid event",
			event: Event{
				Type:    EventOrderPaid,
				Payload: json.RawMessage(`{"order_id":"jkl","amount":"50.00"}`),
			},
			wantErr: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.event)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Marshal error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}

			// Verify we can unmarshal back
			var decoded Event
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}

			if decoded.Type != tc.event.Type {
				t.Errorf("Type mismatch: got %s, want %s", decoded.Type, tc.event.Type)
			}
			if string(decoded.Payload) != string(tc.event.Payload) {
				t.Errorf("Payload mismatch: got %s, want %s", decoded.Payload, tc.event.Payload)
			}
		})
	}
}

func TestHubMultipleShopsIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shop1 := uuid.New()
	shop2 := uuid.New()
	shop3 := uuid.New()

	// Create 2 clients per shop
	clients := map[uuid.UUID][]*Client{
		shop1: {mockClient(hub, shop1), mockClient(hub, shop1)},
		shop2: {mockClient(hub, shop2), mockClient(hub, shop2)},
		shop3: {mockClient(hub, shop3), mockClient(hub, shop3)},
	}

	// Register all clients
	for _, clientList := range clients {
		for _, client := range clientList {
			hub.register <- client
		}
	}
	time.Sleep(10 * time.Millisecond)

	// Broadcast to shop2 only
	event := Event{
		Type:    EventOrderPaid,
		Payload: json.RawMessage(`{"shop_id":"` + shop2.String() + `"}`),
	}
	hub.BroadcastToShop(shop2, event)

	// Only shop2 clients should receive
	for shopID, clientList := range clients {
		for i, client := range clientList {
			select {
			case msg := <-client.send:
				if shopID != shop2 {
					t.Fatalf("shop %s client %d should not receive message", shopID, i)
				}
				var received Event
				if err := json.Unmarshal(msg, &received); err != nil {
					t.Fatalf("unmarshal error: %v", err)
				}
				if received.Type != EventOrderPaid {
					t.Errorf("wrong event type: %s", received.Type)
				}
			case <-time.After(50 * time.Millisecond):
				if shopID == shop2 {
					t.Fatalf("shop2 client %d should have received message", i)
				}
				// Expected for other shops
			}
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := uuid.New()
	client1 := mockClient(hub, shopID)
	client2 := mockClient(hub, shopID)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[shopID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[shopID]))
	}
	hub.mu.RUnlock()

	// Unregister first client
	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[shopID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[shopID]))
	}
	hub.mu.RUnlock()

	// Unregister second client
	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[shopID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToNonExistentShop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Create a client for shop1
	shop1 := uuid.New()
	client1 := mockClient(hub, shop1)
	hub.register <- client1
	time.Sleep(10 * time.Millisecond)

	// Broadcast to shop2 (doesn't exist)
	shop2 := uuid.New()
	event := Event{
		Type:    EventOrderCreated,
		Payload: json.RawMessage(`{"test":"data"}`),
	}
	hub.BroadcastToShop(shop2, event)

	// client1 should NOT receive anything
	select {
	case <-client1.send:
		t.Fatal("client should not receive message for different shop")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
