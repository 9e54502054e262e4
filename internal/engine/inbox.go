package engine

import (
	"context"
	"sync"
)

type reqKind int

const (
	reqMessage reqKind = iota
	reqRetry
	reqQuit
	reqEnd
	reqResetConsent
	reqStatus
	reqResume
)

type result struct {
	text string
	err  error
}

type request struct {
	kind reqKind
	text string
	// done receives the outcome when set; buffered so the actor never blocks.
	done chan result
}

// inbox is an unbounded FIFO with a front lane for cancellation.
type inbox struct {
	mu     sync.Mutex
	items  []request
	closed bool
	ready  chan struct{}
}

func newInbox() *inbox {
	return &inbox{ready: make(chan struct{}, 1)}
}

// push enqueues r and reports false once the inbox is closed.
func (q *inbox) push(r request, front bool) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if front {
		q.items = append([]request{r}, q.items...)
	} else {
		q.items = append(q.items, r)
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// pop blocks for the next request. It returns false once ctx is done.
func (q *inbox) pop(ctx context.Context) (request, bool) {
	for {
		if ctx.Err() != nil {
			return request{}, false
		}
		q.mu.Lock()
		if len(q.items) > 0 {
			r := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return r, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return request{}, false
		case <-q.ready:
		}
	}
}

// close rejects further pushes and returns what was still queued.
func (q *inbox) close() []request {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	rest := q.items
	q.items = nil
	return rest
}
