package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Queue puts a bounded buffer and a single writer goroutine in front of a
// Recorder so table actors never wait on storage. When the buffer is full the
// round is dropped and logged.
type Queue struct {
	next Recorder
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
	ch     chan Round
	done   chan struct{}
}

func NewQueue(next Recorder, size int, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if size <= 0 {
		size = 64
	}
	q := &Queue{
		next: next,
		log:  log,
		ch:   make(chan Round, size),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for r := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := q.next.Record(ctx, r); err != nil {
			q.log.Warn("record round",
				zap.String("table_id", r.TableID),
				zap.Int("round", r.Round),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (q *Queue) Record(_ context.Context, r Round) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- r:
		return nil
	default:
		q.log.Warn("history queue full, dropping round",
			zap.String("table_id", r.TableID),
			zap.Int("round", r.Round),
		)
		return ErrQueueFull
	}
}

func (q *Queue) Recent(ctx context.Context, tableID string, limit int) ([]Round, error) {
	l, ok := q.next.(Lister)
	if !ok {
		return nil, ErrUnsupported
	}
	return l.Recent(ctx, tableID, limit)
}

// Close drains what is already queued and closes the underlying recorder.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	<-q.done
	return q.next.Close()
}
