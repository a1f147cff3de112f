package feed

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"habibeat/backend/internal/domain"
)

// Publisher announces the new full state of a persisted row.
type Publisher interface {
	Publish(ctx context.Context, change domain.EntryChange) error
}

// Subscriber delivers every change published by any client until ctx is done or
// the subscription fails.
type Subscriber interface {
	Subscribe(ctx context.Context, handle func(domain.EntryChange)) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.EntryChange) error { return nil }

const busBuffer = 256

// Bus is an in-process feed. Slow subscribers lose notifications instead of
// blocking publishers.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.EntryChange
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan domain.EntryChange)}
}

func (b *Bus) Publish(_ context.Context, change domain.EntryChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- change:
		default:
			log.Warn().Int("subscriber", id).Str("slot", change.Entry.Slot().String()).Msg("feed subscriber lagging, notification dropped")
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, handle func(domain.EntryChange)) error {
	ch := make(chan domain.EntryChange, busBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change := <-ch:
			handle(change)
		}
	}
}

// Subscribers reports how many subscriptions are active.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
