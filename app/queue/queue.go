// Package queue orders pending bookings of one business by tier, then by arrival.
package queue

import (
	"container/heap"
	"errors"
	"sort"
	"sync"
	"time"
)

type Tier int

const (
	TierPremium Tier = 1
	TierNormal  Tier = 5
	TierLow     Tier = 10
)

func (t Tier) String() string {
	switch t {
	case TierPremium:
		return "premium"
	case TierNormal:
		return "normal"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

func (t Tier) Valid() bool {
	return t == TierPremium || t == TierNormal || t == TierLow
}

var (
	ErrDuplicateBooking = errors.New("booking already queued")
	ErrInvalidTier      = errors.New("invalid tier")
)

type Entry struct {
	Tier       Tier
	Seq        uint64
	EnqueuedAt time.Time
	BookingID  string
	BusinessID string
	UserID     string
	IsPremium  bool
	Payload    map[string]interface{}
}

func (e Entry) less(o Entry) bool {
	if e.Tier != o.Tier {
		return e.Tier < o.Tier
	}
	return e.Seq < o.Seq
}

type Stats struct {
	Total        int
	PremiumCount int
	NormalCount  int
	LowCount     int
	Next         *Entry
}

type entryHeap []Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(Entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PriorityQueue is safe for concurrent use.
type PriorityQueue struct {
	mu    sync.Mutex
	items entryHeap
	seq   uint64
	now   func() time.Time
}

func New() *PriorityQueue {
	return &PriorityQueue{now: time.Now}
}

// Enqueue inserts entry and returns its 1-indexed position. Seq and EnqueuedAt are
// assigned here so arrival order is monotonic regardless of caller clocks.
func (q *PriorityQueue) Enqueue(entry Entry) (int, error) {
	if !entry.Tier.Valid() {
		return 0, ErrInvalidTier
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.BookingID == entry.BookingID {
			return 0, ErrDuplicateBooking
		}
	}

	q.seq++
	entry.Seq = q.seq
	entry.EnqueuedAt = q.now()
	entry.IsPremium = entry.Tier == TierPremium
	heap.Push(&q.items, entry)

	return q.positionLocked(entry.BookingID), nil
}

func (q *PriorityQueue) Dequeue() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Entry{}, false
	}
	return heap.Pop(&q.items).(Entry), true
}

func (q *PriorityQueue) Peek() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Entry{}, false
	}
	return q.items[0], true
}

// Remove deletes the entry for bookingID and restores heap order.
func (q *PriorityQueue) Remove(bookingID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.BookingID == bookingID {
			heap.Remove(&q.items, i)
			return true
		}
	}
	return false
}

// Position returns the 1-indexed rank of bookingID, or 0 when absent.
func (q *PriorityQueue) Position(bookingID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.positionLocked(bookingID)
}

// Get returns the queued entry for bookingID.
func (q *PriorityQueue) Get(bookingID string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.BookingID == bookingID {
			return item, true
		}
	}
	return Entry{}, false
}

// List returns all entries in dequeue order.
func (q *PriorityQueue) List() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedLocked()
}

func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear empties the queue and returns how many entries were dropped.
func (q *PriorityQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	return n
}

func (q *PriorityQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{Total: len(q.items)}
	for _, item := range q.items {
		switch item.Tier {
		case TierPremium:
			stats.PremiumCount++
		case TierNormal:
			stats.NormalCount++
		case TierLow:
			stats.LowCount++
		}
	}
	if len(q.items) > 0 {
		next := q.items[0]
		stats.Next = &next
	}
	return stats
}

// positionLocked ranks by a full sort of a copy of the heap.
func (q *PriorityQueue) positionLocked(bookingID string) int {
	for i, item := range q.sortedLocked() {
		if item.BookingID == bookingID {
			return i + 1
		}
	}
	return 0
}

func (q *PriorityQueue) sortedLocked() []Entry {
	out := make([]Entry, len(q.items))
	copy(out, q.items)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
