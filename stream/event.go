package stream

import "time"

// EventType 客户端可见的事件类型。
type EventType string

const (
	EventChunk        EventType = "chunk"
	EventWindowReport EventType = "window_report"
	EventBlocked      EventType = "blocked"
	EventCompleted    EventType = "completed"
	EventError        EventType = "error"
	EventHeartbeat    EventType = "heartbeat"
	EventNotice       EventType = "notice"
)

// Event 是下发给客户端的一帧。ID 由 EventQueue 在入队时刻分配，
// 在会话内单调递增；chunk 事件保持生成顺序。
type Event struct {
	ID        int64          `json:"id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Risk      float64        `json:"risk,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
