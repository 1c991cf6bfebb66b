// Package sse implements Server-Sent Events for per-user notification pushes.
package sse

import (
	"time"
)

// Clients poll nothing: every write that changes what a user should see
// pushes a small event, and the client refetches or applies the payload.

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected is sent once when a stream opens.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	// EventNotificationsUpdated carries fresh notification counters.
	EventNotificationsUpdated EventType = "notifications.updated"
	// EventExchangeUpdated reports an exchange status change.
	EventExchangeUpdated EventType = "exchange.updated"
	// EventContactUpdated reports an invite, acceptance or removal.
	EventContactUpdated EventType = "contact.updated"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
	// UserID restricts delivery to one user. Empty means every client.
	UserID string `json:"-"`
}

// HeartbeatEventData is the payload of a heartbeat.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

// ExchangeEventData is the payload of an exchange status change.
type ExchangeEventData struct {
	ExchangeID string `json:"exchangeId"`
	Status     string `json:"status"`
}

// ContactEventData is the payload of a contact change.
type ContactEventData struct {
	ContactID string `json:"contactId"`
	Status    string `json:"status"`
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data:      HeartbeatEventData{ServerTime: now},
	}
}

// NewNotificationsEvent creates a notifications.updated event for userID.
func NewNotificationsEvent(userID string, counts any) Event {
	return Event{
		Type:      EventNotificationsUpdated,
		Timestamp: time.Now(),
		Data:      counts,
		UserID:    userID,
	}
}

// NewExchangeEvent creates an exchange.updated event for userID.
func NewExchangeEvent(userID, exchangeID, status string) Event {
	return Event{
		Type:      EventExchangeUpdated,
		Timestamp: time.Now(),
		Data:      ExchangeEventData{ExchangeID: exchangeID, Status: status},
		UserID:    userID,
	}
}

// NewContactEvent creates a contact.updated event for userID.
func NewContactEvent(userID, contactID, status string) Event {
	return Event{
		Type:      EventContactUpdated,
		Timestamp: time.Now(),
		Data:      ContactEventData{ContactID: contactID, Status: status},
		UserID:    userID,
	}
}
