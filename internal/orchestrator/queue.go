package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueSaturated is returned when a user's lane buffer is full. The
// caller should surface a retry message rather than wait.
var ErrQueueSaturated = errors.New("user turn queue saturated")

const laneBuffer = 16

// Queue serializes turn processing per user: one worker goroutine per active
// user drains that user's jobs in arrival order, so two messages from the
// same user can never race on history reads or store writes. Lanes for idle
// users are reaped by a janitor.
type Queue struct {
	mu      sync.Mutex
	lanes   map[string]*userLane
	idleTTL time.Duration

	// onCount, when set, receives the live lane count after every change.
	onCount func(int)
}

type userLane struct {
	jobs    chan func()
	last    time.Time
	pending int
	closed  bool
}

func NewQueue(idleTTL time.Duration) *Queue {
	if idleTTL <= 0 {
		idleTTL = 2 * time.Minute
	}
	return &Queue{
		lanes:   make(map[string]*userLane),
		idleTTL: idleTTL,
	}
}

func (q *Queue) SetCountHook(hook func(int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onCount = hook
}

// Submit enqueues job on the user's lane, creating the lane (and its worker)
// on first use. Jobs for one user run strictly in Submit order.
func (q *Queue) Submit(userID string, job func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, ok := q.lanes[userID]
	if !ok || lane.closed {
		lane = &userLane{jobs: make(chan func(), laneBuffer)}
		q.lanes[userID] = lane
		go q.run(lane)
		q.notifyCount()
	}

	select {
	case lane.jobs <- job:
		lane.pending++
		lane.last = time.Now()
		return nil
	default:
		return ErrQueueSaturated
	}
}

func (q *Queue) run(lane *userLane) {
	for job := range lane.jobs {
		job()
		q.mu.Lock()
		lane.pending--
		lane.last = time.Now()
		q.mu.Unlock()
	}
}

// StartJanitor reaps lanes that have been idle past the TTL. It returns when
// ctx is cancelled.
func (q *Queue) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.reapIdle()
			}
		}
	}()
}

func (q *Queue) reapIdle() {
	now := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()

	changed := false
	for userID, lane := range q.lanes {
		if lane.pending > 0 || now.Sub(lane.last) < q.idleTTL {
			continue
		}
		lane.closed = true
		close(lane.jobs)
		delete(q.lanes, userID)
		changed = true
	}
	if changed {
		q.notifyCount()
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

// notifyCount must be called with q.mu held.
func (q *Queue) notifyCount() {
	if q.onCount != nil {
		q.onCount(len(q.lanes))
	}
}
