package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEvent(i int, typ EventType) *Event {
	return &Event{
		Type:      typ,
		SessionID: fmt.Sprintf("session-%03d", i),
		InputHash: "abcdef0123456789",
		RiskScore: float64(i) / 10,
		Timestamp: time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC),
	}
}

func TestMemorySink_Bounded(t *testing.T) {
	sink := NewMemorySink(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Append(ctx, makeEvent(i, EventContentBlocked)))
	}

	events, err := sink.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// 容量满时丢最旧的。
	assert.Equal(t, "session-002", events[0].SessionID)
	assert.Equal(t, "session-004", events[2].SessionID)
}

func TestMemorySink_QueryFilter(t *testing.T) {
	sink := NewMemorySink(100)
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, makeEvent(0, EventContentBlocked)))
	require.NoError(t, sink.Append(ctx, makeEvent(1, EventStreamCompleted)))
	require.NoError(t, sink.Append(ctx, makeEvent(2, EventContentBlocked)))
	require.NoError(t, sink.Append(ctx, makeEvent(3, EventInputBlocked)))

	t.Run("by type", func(t *testing.T) {
		events, err := sink.Query(ctx, &Filter{Types: []EventType{EventContentBlocked}})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("by time range", func(t *testing.T) {
		since := time.Date(2025, 6, 1, 12, 0, 2, 0, time.UTC)
		events, err := sink.Query(ctx, &Filter{Since: &since})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("limit and offset", func(t *testing.T) {
		events, err := sink.Query(ctx, &Filter{Offset: 1, Limit: 2})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "session-001", events[0].SessionID)
	})

	t.Run("offset beyond end", func(t *testing.T) {
		events, err := sink.Query(ctx, &Filter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("count", func(t *testing.T) {
		n, err := sink.Count(ctx, &Filter{Types: []EventType{EventInputBlocked}})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestMemorySink_Recent(t *testing.T) {
	sink := NewMemorySink(100)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		typ := EventContentBlocked
		if i%2 == 1 {
			typ = EventStreamCompleted
		}
		require.NoError(t, sink.Append(ctx, makeEvent(i, typ)))
	}

	t.Run("newest first", func(t *testing.T) {
		events, err := sink.Recent(ctx, 2, "")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "session-003", events[0].SessionID)
		assert.Equal(t, "session-002", events[1].SessionID)
	})

	t.Run("type filter", func(t *testing.T) {
		events, err := sink.Recent(ctx, 10, string(EventStreamCompleted))
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "session-003", events[0].SessionID)
	})
}

func TestSQLSink_RoundTrip(t *testing.T) {
	sink, err := OpenSQLite(t.TempDir() + "/audit.db")
	require.NoError(t, err)
	ctx := context.Background()

	event := &Event{
		Type:               EventContentBlocked,
		SessionID:          "a1b2c3d4e5f6",
		InputHash:          "0011223344556677",
		BlockedContentHash: "8899aabbccddeeff",
		RiskScore:          1.45,
		TriggeredRules:     []string{"ssn: Pattern detected", "phone: Pattern detected"},
		Entities:           []string{"US_SSN"},
		Region:             "HIPAA",
		Timestamp:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ProcessingTime:     1500 * time.Millisecond,
	}
	require.NoError(t, sink.Append(ctx, event))
	require.NoError(t, sink.Append(ctx, &Event{
		Type:      EventStreamCompleted,
		SessionID: "ffeeddccbbaa",
		InputHash: "0011223344556677",
		Timestamp: time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
	}))

	t.Run("recent returns newest first", func(t *testing.T) {
		events, err := sink.Recent(ctx, 10, "")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, EventStreamCompleted, events[0].Type)
	})

	t.Run("json columns round-trip", func(t *testing.T) {
		events, err := sink.Recent(ctx, 10, string(EventContentBlocked))
		require.NoError(t, err)
		require.Len(t, events, 1)

		got := events[0]
		assert.Equal(t, event.TriggeredRules, got.TriggeredRules)
		assert.Equal(t, event.Entities, got.Entities)
		assert.Equal(t, "8899aabbccddeeff", got.BlockedContentHash)
		assert.InDelta(t, 1.45, got.RiskScore, 1e-9)
		assert.Equal(t, 1500*time.Millisecond, got.ProcessingTime)
	})
}
