package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/ledger"
	"habibeat/backend/internal/reconcile"
)

var (
	ErrNoActor  = errors.New("no authenticated actor")
	ErrArchived = errors.New("archived month is read-only")
)

// Persister durably upserts a full entry keyed by product, day, section, month, year.
type Persister interface {
	UpsertEntry(ctx context.Context, entry domain.StockEntry) error
}

type Request struct {
	Period domain.Period
	Slot   domain.Slot
	Actor  *domain.Actor
	Edit   domain.Edit
	// CarryOver seeds openingStock when day 1 has no entry yet.
	CarryOver decimal.Decimal
}

type Options struct {
	Clock            func() time.Time
	PersistTimeout   time.Duration
	StatusClearAfter time.Duration
	Observer         Observer
}

type Coordinator struct {
	store      *ledger.Store
	watermarks *reconcile.Watermarks
	persister  Persister
	statuses   *StatusBoard
	clock      func() time.Time
	timeout    time.Duration

	mu      sync.Mutex
	tails   map[domain.EntryKey]chan struct{}
	pending sync.WaitGroup
}

func New(store *ledger.Store, watermarks *reconcile.Watermarks, persister Persister, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	return &Coordinator{
		store:      store,
		watermarks: watermarks,
		persister:  persister,
		statuses:   NewStatusBoard(opts.StatusClearAfter, opts.Observer),
		clock:      opts.Clock,
		timeout:    opts.PersistTimeout,
		tails:      make(map[domain.EntryKey]chan struct{}),
	}
}

func (c *Coordinator) Statuses() *StatusBoard {
	return c.statuses
}

// Submit applies the edit locally, advances the slot's watermark and starts the
// persist in the background. The returned entry is the merged row being persisted.
func (c *Coordinator) Submit(req Request) (domain.StockEntry, error) {
	if req.Actor == nil || req.Actor.Username == "" {
		return domain.StockEntry{}, ErrNoActor
	}
	now := c.clock()
	if req.Period.Archived(now) {
		return domain.StockEntry{}, ErrArchived
	}

	// Postgres keeps microseconds; stamping at that precision keeps echoes comparable.
	at := now.UTC().Truncate(time.Microsecond)

	base := domain.StockEntry{}
	if req.Slot.Day == 1 && req.Edit.Field != domain.FieldOpeningStock {
		base.OpeningStock = req.CarryOver
	}

	entry, err := c.store.UpsertField(req.Period, req.Slot, req.Edit, req.Actor.Username, at, base)
	if err != nil {
		return domain.StockEntry{}, err
	}
	c.watermarks.Advance(req.Slot, at)

	key := StatusKey{Slot: req.Slot, Field: req.Edit.Field}
	gen := c.statuses.begin(key)
	c.persist(entry, key, gen)
	return entry, nil
}

// Wait blocks until every persist started so far has finished.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// persist runs in the background. Writes to the same entry key are chained so they
// reach the store in submission order.
func (c *Coordinator) persist(entry domain.StockEntry, key StatusKey, gen uint64) {
	entryKey := entry.Key()
	done := make(chan struct{})

	c.mu.Lock()
	prev := c.tails[entryKey]
	c.tails[entryKey] = done
	c.mu.Unlock()

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer func() {
			c.mu.Lock()
			if c.tails[entryKey] == done {
				delete(c.tails, entryKey)
			}
			c.mu.Unlock()
			close(done)
		}()

		if prev != nil {
			<-prev
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		err := c.persister.UpsertEntry(ctx, entry)
		if err != nil {
			log.Warn().Err(err).
				Str("slot", entry.Slot().String()).
				Str("period", entry.Period().String()).
				Str("field", string(key.Field)).
				Msg("persist failed, local edit kept unsynced")
		}
		c.statuses.finish(key, gen, err)
	}()
}
