package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueClosed 队列已关闭且排空。
	ErrQueueClosed = errors.New("event queue closed")
	// ErrPollTimeout 本轮拉取超时，队列仍然存活。
	ErrPollTimeout = errors.New("event queue poll timeout")
)

// DefaultQueueCapacity 客户端事件队列的默认容量。
const DefaultQueueCapacity = 200

// EventQueue 是生产者与消费者之间的有界 FIFO，并为每个入队事件
// 分配单调递增的 ID。
//
// 队列满时 Put 挂起而不是丢弃，自然向上游施加背压；
// Close 幂等，关闭后 Poll 先排空余量再返回 ErrQueueClosed。
type EventQueue struct {
	ch     chan *Event
	done   chan struct{}
	closed atomic.Bool

	// mu 让 ID 分配与入队成为同一原子步骤：多个生产者
	//（生产任务 + 心跳任务）并发入队时，消费者仍按 ID 升序收到事件。
	mu  sync.Mutex
	seq int64

	produced atomic.Int64
	consumed atomic.Int64
}

// NewEventQueue 创建容量为 capacity 的队列（非正值用默认容量）。
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &EventQueue{
		ch:   make(chan *Event, capacity),
		done: make(chan struct{}),
	}
}

// Put 给事件分配下一个 ID 并入队，队列满时阻塞直到有空位、
// ctx 取消或队列关闭。未能入队的事件不消耗序号。
func (q *EventQueue) Put(ctx context.Context, ev *Event) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	ev.ID = q.seq + 1
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	case q.ch <- ev:
		q.seq++
		q.produced.Add(1)
		return nil
	}
}

// Poll 出队一个事件，最多等待 timeout。
// 超时返回 ErrPollTimeout，关闭且排空后返回 ErrQueueClosed。
func (q *EventQueue) Poll(ctx context.Context, timeout time.Duration) (*Event, error) {
	// 先尝试无阻塞排空，保证关闭后余量仍可取完。
	select {
	case ev := <-q.ch:
		q.consumed.Add(1)
		return ev, nil
	default:
	}

	if q.closed.Load() {
		return nil, ErrQueueClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev := <-q.ch:
		q.consumed.Add(1)
		return ev, nil
	case <-q.done:
		select {
		case ev := <-q.ch:
			q.consumed.Add(1)
			return ev, nil
		default:
			return nil, ErrQueueClosed
		}
	case <-timer.C:
		return nil, ErrPollTimeout
	}
}

// Close 关闭队列。已入队的事件仍可被 Poll 取走。
func (q *EventQueue) Close() {
	if q.closed.Swap(true) {
		return
	}
	close(q.done)
}

// Len 返回当前排队的事件数。
func (q *EventQueue) Len() int { return len(q.ch) }

// Cap 返回队列容量。
func (q *EventQueue) Cap() int { return cap(q.ch) }

// Stats 返回累计入队/出队计数。
func (q *EventQueue) Stats() (produced, consumed int64) {
	return q.produced.Load(), q.consumed.Load()
}
