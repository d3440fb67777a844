package models

import "time"

// Message types for WebSocket control traffic
const (
	MessageTypeHeartbeat = "heartbeat"
	MessageTypeSnapshot  = "snapshot"
	MessageTypeError     = "error"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ServerMessage is a control reply from server to client. Match events are
// written as bare Event frames, not wrapped in a ServerMessage.
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	SubscriberID      string    `json:"subscriber_id"`
	ConnectedAt       time.Time `json:"connected_at"`
	FramesSent        int64     `json:"frames_sent"`
	MessagesReceived  int64     `json:"messages_received"`
	LastMessageAt     time.Time `json:"last_message_at"`
	BufferSize        int       `json:"buffer_size"`
	BufferUtilization float64   `json:"buffer_utilization"` // Percentage
}

// ErrorMessage is the body of error replies, both over HTTP and WebSocket
type ErrorMessage struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}
