package editor

import (
	"fmt"
	"sync"
	"time"

	"habibeat/backend/internal/domain"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusSaving  Status = "saving"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type event int

const (
	eventSubmit event = iota
	eventPersisted
	eventFailed
	eventCleared
)

// transitions is the per-field sync state machine. Pairs missing from the table are
// ignored. Error is left only by a new submission.
var transitions = map[Status]map[event]Status{
	StatusIdle:    {eventSubmit: StatusSaving},
	StatusSaving:  {eventSubmit: StatusSaving, eventPersisted: StatusSuccess, eventFailed: StatusError},
	StatusSuccess: {eventSubmit: StatusSaving, eventCleared: StatusIdle},
	StatusError:   {eventSubmit: StatusSaving},
}

// StatusKey identifies one edited field.
type StatusKey struct {
	Slot  domain.Slot
	Field domain.Field
}

func (k StatusKey) String() string {
	return fmt.Sprintf("%s:%s", k.Slot, k.Field)
}

// Observer receives every status transition.
type Observer func(key StatusKey, status Status)

type fieldStatus struct {
	status Status
	gen    uint64
}

// StatusBoard tracks the sync status of every field with an edit in flight or a
// result still on display.
type StatusBoard struct {
	mu         sync.Mutex
	seq        uint64
	fields     map[StatusKey]fieldStatus
	clearAfter time.Duration
	observer   Observer
}

func NewStatusBoard(clearAfter time.Duration, observer Observer) *StatusBoard {
	if clearAfter <= 0 {
		clearAfter = 2 * time.Second
	}
	return &StatusBoard{
		fields:     make(map[StatusKey]fieldStatus),
		clearAfter: clearAfter,
		observer:   observer,
	}
}

func (b *StatusBoard) Get(key StatusKey) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fs, ok := b.fields[key]; ok {
		return fs.status
	}
	return StatusIdle
}

// Snapshot returns every non-idle field keyed by its string form.
func (b *StatusBoard) Snapshot() map[string]Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]Status, len(b.fields))
	for key, fs := range b.fields {
		out[key.String()] = fs.status
	}
	return out
}

// Reset drops every tracked field. Results of persists still in flight are ignored.
func (b *StatusBoard) Reset() {
	b.mu.Lock()
	clear(b.fields)
	b.mu.Unlock()
}

func (b *StatusBoard) begin(key StatusKey) uint64 {
	b.mu.Lock()
	fs := b.fields[key]
	if fs.status == "" {
		fs.status = StatusIdle
	}
	b.seq++
	fs.gen = b.seq
	gen := fs.gen
	changed := b.fire(key, &fs, eventSubmit)
	b.mu.Unlock()
	b.notify(key, changed)
	return gen
}

// finish records the result of the persist started by begin(key) returning gen.
// Results of superseded submissions are dropped.
func (b *StatusBoard) finish(key StatusKey, gen uint64, err error) {
	ev := eventPersisted
	if err != nil {
		ev = eventFailed
	}

	b.mu.Lock()
	fs, ok := b.fields[key]
	if !ok || fs.gen != gen {
		b.mu.Unlock()
		return
	}
	changed := b.fire(key, &fs, ev)
	b.mu.Unlock()
	b.notify(key, changed)

	if changed == StatusSuccess {
		time.AfterFunc(b.clearAfter, func() { b.expire(key, gen) })
	}
}

func (b *StatusBoard) expire(key StatusKey, gen uint64) {
	b.mu.Lock()
	fs, ok := b.fields[key]
	if !ok || fs.gen != gen {
		b.mu.Unlock()
		return
	}
	changed := b.fire(key, &fs, eventCleared)
	b.mu.Unlock()
	b.notify(key, changed)
}

// fire applies ev to fs and stores the result. Idle fields are removed. It returns
// the new status, or "" when the table has no transition. Caller holds b.mu.
func (b *StatusBoard) fire(key StatusKey, fs *fieldStatus, ev event) Status {
	next, ok := transitions[fs.status][ev]
	if !ok {
		return ""
	}
	fs.status = next
	if next == StatusIdle {
		delete(b.fields, key)
	} else {
		b.fields[key] = *fs
	}
	return next
}

func (b *StatusBoard) notify(key StatusKey, status Status) {
	if status == "" || b.observer == nil {
		return
	}
	b.observer(key, status)
}
