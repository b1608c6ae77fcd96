package database

import "context"

// Snapshot is one evaluation of a live query.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Subscription delivers snapshots of a live query until it is closed or its
// context is cancelled, after which the channel is closed.
type Subscription[T any] struct {
	updates chan Snapshot[T]
	cancel  context.CancelFunc
	done    chan struct{}
}

// Updates returns the snapshot channel. Only the most recent snapshot is
// kept for a consumer that falls behind.
func (s *Subscription[T]) Updates() <-chan Snapshot[T] {
	return s.updates
}

// Close stops the subscription and waits for its producer to exit.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}

// Observe evaluates load immediately and again after every committed Update
// that touches one of tables.
func Observe[T any](ctx context.Context, db *Database, load func(ctx context.Context, q *Queries) (T, error), tables ...Table) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	// Subscribe before the first load so no commit slips between them.
	signals, unsubscribe := db.notifier.Subscribe(tables...)

	sub := &Subscription[T]{
		updates: make(chan Snapshot[T], 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.updates)
		defer unsubscribe()

		for {
			value, err := load(ctx, db.Queries())
			if ctx.Err() != nil {
				return
			}
			sub.deliver(Snapshot[T]{Value: value, Err: err})

			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
			}
		}
	}()

	return sub
}

// deliver replaces an unread snapshot with snap. Only the producer sends, so
// the second send cannot block.
func (s *Subscription[T]) deliver(snap Snapshot[T]) {
	select {
	case s.updates <- snap:
	default:
		select {
		case <-s.updates:
		default:
		}
		s.updates <- snap
	}
}
