package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Record 是 audit_logs 表的 GORM 模型。
type Record struct {
	ID                 uint      `gorm:"primaryKey"`
	Timestamp          time.Time `gorm:"index"`
	EventType          string    `gorm:"size:50;not null;index"`
	SessionID          string    `gorm:"size:32;index"`
	UserInputHash      string    `gorm:"size:32;not null"`
	BlockedContentHash string    `gorm:"size:32"`
	RiskScore          float64   `gorm:"not null"`
	TriggeredRules     string    `gorm:"type:text"` // JSON
	Entities           string    `gorm:"type:text"` // JSON
	ComplianceRegion   string    `gorm:"size:20"`
	ProcessingTimeMs   float64
}

// TableName 保持与历史部署一致的表名。
func (Record) TableName() string { return "audit_logs" }

// SQLSink 把审计事件写入 SQLite（或任意 GORM 方言）。
type SQLSink struct {
	db *gorm.DB
}

// OpenSQLite 打开 SQLite 审计库并迁移表结构。
func OpenSQLite(path string) (*SQLSink, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewSQLSink(db)
}

// NewSQLSink 基于已有连接创建存储，自动迁移表结构。
func NewSQLSink(db *gorm.DB) (*SQLSink, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &SQLSink{db: db}, nil
}

// Append 写入一条审计记录。
func (s *SQLSink) Append(ctx context.Context, event *Event) error {
	rules, err := json.Marshal(event.TriggeredRules)
	if err != nil {
		return err
	}
	entities, err := json.Marshal(event.Entities)
	if err != nil {
		return err
	}

	record := &Record{
		Timestamp:          event.Timestamp,
		EventType:          string(event.Type),
		SessionID:          event.SessionID,
		UserInputHash:      event.InputHash,
		BlockedContentHash: event.BlockedContentHash,
		RiskScore:          event.RiskScore,
		TriggeredRules:     string(rules),
		Entities:           string(entities),
		ComplianceRegion:   event.Region,
		ProcessingTimeMs:   float64(event.ProcessingTime) / float64(time.Millisecond),
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// Recent 返回最近的 limit 条记录，可按事件类型过滤。
func (s *SQLSink) Recent(ctx context.Context, limit int, eventType string) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var records []Record
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(records))
	for i := range records {
		events = append(events, recordToEvent(&records[i]))
	}
	return events, nil
}

func recordToEvent(r *Record) *Event {
	e := &Event{
		Type:               EventType(r.EventType),
		SessionID:          r.SessionID,
		InputHash:          r.UserInputHash,
		BlockedContentHash: r.BlockedContentHash,
		RiskScore:          r.RiskScore,
		Region:             r.ComplianceRegion,
		Timestamp:          r.Timestamp,
		ProcessingTime:     time.Duration(r.ProcessingTimeMs * float64(time.Millisecond)),
	}
	// 反序列化失败按空列表处理，查询接口不因历史脏数据而失败。
	_ = json.Unmarshal([]byte(r.TriggeredRules), &e.TriggeredRules)
	_ = json.Unmarshal([]byte(r.Entities), &e.Entities)
	return e
}
