package service

import (
	"sync"

	"trade_router/internal/models"
	"trade_router/pkg/logger"
)

// BidQueue is a bounded ring of bid events. A full queue drops the oldest
// entry so a stalled consumer can never back-pressure the socket reader.
type BidQueue struct {
	account string

	mu      sync.Mutex
	buf     []models.BidEvent
	head    int
	size    int
	dropped uint64
}

func NewBidQueue(account string, capacity int) *BidQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &BidQueue{
		account: account,
		buf:     make([]models.BidEvent, capacity),
	}
}

func (q *BidQueue) Push(ev models.BidEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
		logger.Warn("bid queue full for account %s, dropped oldest (%d total)", q.account, q.dropped)
	}
	q.buf[(q.head+q.size)%len(q.buf)] = ev
	q.size++
}

func (q *BidQueue) Pop() (models.BidEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return models.BidEvent{}, false
	}
	ev := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return ev, true
}

func (q *BidQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped reports how many events were discarded to make room.
func (q *BidQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
