// Package events contains the WebSocket event contract of the condor finder.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Search messages
	MessageTypeSearchCompleted MessageType = "search:completed"
	MessageTypeSearchFailed    MessageType = "search:failed"

	// Connection messages
	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`       // Unique message ID
	Type      MessageType `json:"type"`               // Message type
	Timestamp time.Time   `json:"timestamp"`          // Message timestamp
	TraceID   string      `json:"trace_id,omitempty"` // Request trace ID
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// TopCandidate is the leading candidate of a search, flattened
type TopCandidate struct {
	Expiration          string   `json:"expiration"`
	LongPutStrike       float64  `json:"long_put_strike"`
	ShortPutStrike      float64  `json:"short_put_strike"`
	ShortCallStrike     float64  `json:"short_call_strike"`
	LongCallStrike      float64  `json:"long_call_strike"`
	NetCredit           float64  `json:"net_credit"`
	ProbabilityOfProfit float64  `json:"probability_of_profit"`
	RiskReward          *float64 `json:"risk_reward"`
}

// SearchCompleted is the payload of a search:completed event
type SearchCompleted struct {
	Symbol     string        `json:"symbol"`
	Spot       float64       `json:"spot"`
	Count      int           `json:"count"`
	Relaxed    bool          `json:"relaxed"`
	Source     string        `json:"source"` // api|cli|scheduler
	DurationMS float64       `json:"duration_ms"`
	Top        *TopCandidate `json:"top,omitempty"`
}

// SearchFailed is the payload of a search:failed event
type SearchFailed struct {
	Symbol string `json:"symbol"`
	Source string `json:"source"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

// ConnectData greets a newly registered client
type ConnectData struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}
