package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_PutPollFIFO(t *testing.T) {
	q := NewEventQueue(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Put(ctx, &Event{Type: EventChunk}))
	}
	assert.Equal(t, 3, q.Len())

	// 入队时分配的 ID 从 1 开始连续递增。
	for i := int64(1); i <= 3; i++ {
		ev, err := q.Poll(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, i, ev.ID)
	}

	produced, consumed := q.Stats()
	assert.Equal(t, int64(3), produced)
	assert.Equal(t, int64(3), consumed)
}

func TestEventQueue_ConcurrentPutsDeliverInIDOrder(t *testing.T) {
	// 容量 1 + 多个生产者是最容易暴露 ID 乱序的组合：
	// 消费者必须严格按升序收到事件。
	q := NewEventQueue(1)
	ctx := context.Background()

	const producers = 3
	const perProducer = 200

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if err := q.Put(ctx, &Event{Type: EventHeartbeat}); err != nil {
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		q.Close()
	}()

	var last int64
	var total int
	for {
		ev, err := q.Poll(ctx, time.Second)
		if err != nil {
			require.ErrorIs(t, err, ErrQueueClosed)
			break
		}
		require.Greater(t, ev.ID, last, "event %d delivered after id %d", ev.ID, last)
		last = ev.ID
		total++
	}
	assert.Equal(t, producers*perProducer, total)
	assert.Equal(t, int64(producers*perProducer), last)
}

func TestEventQueue_PollTimeout(t *testing.T) {
	q := NewEventQueue(10)

	start := time.Now()
	_, err := q.Poll(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestEventQueue_FullPutBlocks(t *testing.T) {
	q := NewEventQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, &Event{}))
	require.NoError(t, q.Put(ctx, &Event{}))

	t.Run("blocked put honors context deadline", func(t *testing.T) {
		deadline, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := q.Put(deadline, &Event{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("poll unblocks a waiting producer", func(t *testing.T) {
		done := make(chan error, 1)
		go func() {
			done <- q.Put(ctx, &Event{})
		}()

		// 生产者此刻挂在满队列上。
		select {
		case err := <-done:
			t.Fatalf("put returned early: %v", err)
		case <-time.After(20 * time.Millisecond):
		}

		_, err := q.Poll(ctx, time.Second)
		require.NoError(t, err)

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("put did not unblock after poll freed a slot")
		}
	})
}

func TestEventQueue_CloseDrain(t *testing.T) {
	q := NewEventQueue(10)
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, &Event{}))
	require.NoError(t, q.Put(ctx, &Event{}))
	q.Close()
	q.Close() // 幂等

	assert.ErrorIs(t, q.Put(ctx, &Event{}), ErrQueueClosed)

	// 关闭前入队的事件仍按序取完，然后才是 ErrQueueClosed。
	ev, err := q.Poll(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.ID)

	ev, err = q.Poll(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev.ID)

	_, err = q.Poll(ctx, time.Second)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestEventQueue_CloseWakesBlockedProducer(t *testing.T) {
	q := NewEventQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, &Event{}))

	done := make(chan error, 1)
	go func() {
		done <- q.Put(ctx, &Event{})
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked put did not observe close")
	}
}
