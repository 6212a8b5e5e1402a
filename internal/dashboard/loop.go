package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/analog-buddy/iotdash/internal/telemetry"
)

// ErrLoopClosed is returned by Do after Close.
var ErrLoopClosed = errors.New("LOOP_CLOSED")

// Loop owns a Session and runs every operation on it from one goroutine, in
// submission order.
type Loop struct {
	session   *Session
	opQueue   chan func(*Session)
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewLoop starts the worker for session. queue bounds pending operations.
func NewLoop(session *Session, queue int) *Loop {
	if queue < 0 {
		queue = 0
	}
	l := &Loop{
		session:  session,
		opQueue:  make(chan func(*Session), queue),
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.worker()

	return l
}

func (l *Loop) worker() {
	defer l.wg.Done()

	for {
		select {
		case op := <-l.opQueue:
			op(l.session)
		case <-l.stopChan:
			l.session.Close()
			return
		}
	}
}

// Do runs fn on the loop goroutine and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func(*Session) error) error {
	result := make(chan error, 1)
	op := func(s *Session) {
		result <- fn(s)
	}

	select {
	case l.opQueue <- op:
	case <-l.stopChan:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-l.stopChan:
		// The op may still have run before the worker saw the stop.
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Follow applies every telemetry event of sub to the session until ctx is
// cancelled, the subscriber is detached or the loop closes. Rejected messages
// do not stop it.
func (l *Loop) Follow(ctx context.Context, sub *telemetry.Subscriber) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done():
			return nil
		case <-l.stopChan:
			return ErrLoopClosed
		case event := <-sub.Events:
			if event.Type != telemetry.EventTelemetry || event.Message == nil {
				continue
			}
			msg := *event.Message
			err := l.Do(ctx, func(s *Session) error { return s.Apply(msg) })
			if errors.Is(err, ErrLoopClosed) || errors.Is(err, context.Canceled) {
				return err
			}
		}
	}
}

// Close stops the worker and closes the session. Pending operations are
// abandoned.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}
