package audit

import (
	"context"
	"sync"
	"time"
)

// EventType 审计事件类型。
type EventType string

const (
	// EventContentBlocked 流式输出被否决
	EventContentBlocked EventType = "content_blocked"
	// EventStreamCompleted 会话正常完成
	EventStreamCompleted EventType = "stream_completed"
	// EventInputBlocked 用户输入在开流前被拒绝
	EventInputBlocked EventType = "user_input_blocked"
)

// Event 是一条审计记录。只存内容哈希，不存原文。
type Event struct {
	Type               EventType     `json:"event_type"`
	SessionID          string        `json:"session_id"`
	InputHash          string        `json:"user_input_hash"`
	BlockedContentHash string        `json:"blocked_content_hash,omitempty"`
	RiskScore          float64       `json:"risk_score"`
	TriggeredRules     []string      `json:"triggered_rules,omitempty"`
	Entities           []string      `json:"entities,omitempty"`
	Region             string        `json:"compliance_region,omitempty"`
	Timestamp          time.Time     `json:"timestamp"`
	ProcessingTime     time.Duration `json:"processing_time"`
}

// Sink 接收审计事件。Append 是尽力而为的：
// 失败由调用方记日志，绝不中断会话。
type Sink interface {
	Append(ctx context.Context, event *Event) error
}

// NopSink 丢弃所有事件。
type NopSink struct{}

func (NopSink) Append(context.Context, *Event) error { return nil }

// Filter 内存查询过滤器。
type Filter struct {
	Since  *time.Time
	Until  *time.Time
	Types  []EventType
	Limit  int
	Offset int
}

// MemorySink 是有界的内存审计存储，用于测试与开发环境。
type MemorySink struct {
	mu      sync.RWMutex
	events  []*Event
	maxSize int
}

// NewMemorySink 创建最多保留 maxSize 条记录的内存存储。
func NewMemorySink(maxSize int) *MemorySink {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemorySink{maxSize: maxSize}
}

// Append 追加一条记录，容量满时丢弃最旧的。
func (s *MemorySink) Append(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxSize {
		s.events = s.events[1:]
	}
	s.events = append(s.events, event)
	return nil
}

// Query 返回匹配过滤器的记录。
func (s *MemorySink) Query(_ context.Context, filter *Filter) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Event
	for _, e := range s.events {
		if matchFilter(e, filter) {
			matched = append(matched, e)
		}
	}

	if filter != nil {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		if filter.Offset > 0 {
			matched = matched[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(matched) {
			matched = matched[:filter.Limit]
		}
	}
	return matched, nil
}

// Recent 返回最近的 limit 条记录（新的在前），可按类型过滤。
func (s *MemorySink) Recent(ctx context.Context, limit int, eventType string) ([]*Event, error) {
	filter := &Filter{}
	if eventType != "" {
		filter.Types = []EventType{EventType(eventType)}
	}
	matched, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	// events 按追加序存放，这里倒序返回。
	out := make([]*Event, 0, len(matched))
	for i := len(matched) - 1; i >= 0; i-- {
		out = append(out, matched[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Count 返回匹配过滤器的记录数。
func (s *MemorySink) Count(_ context.Context, filter *Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.events {
		if matchFilter(e, filter) {
			count++
		}
	}
	return count, nil
}

func matchFilter(e *Event, filter *Filter) bool {
	if filter == nil {
		return true
	}
	if filter.Since != nil && e.Timestamp.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && e.Timestamp.After(*filter.Until) {
		return false
	}
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
