package reconcile

import (
	"sync"
	"time"

	"habibeat/backend/internal/domain"
)

// Watermarks records, per slot of the viewed month, the timestamp of the newest write
// this client knows about, whether it originated locally or was merged.
type Watermarks struct {
	mu    sync.Mutex
	marks map[domain.Slot]time.Time
}

func NewWatermarks() *Watermarks {
	return &Watermarks{marks: make(map[domain.Slot]time.Time)}
}

func (w *Watermarks) Get(slot domain.Slot) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.marks[slot]
}

// Advance moves the slot's watermark to at. It never moves backwards and reports
// whether the watermark changed.
func (w *Watermarks) Advance(slot domain.Slot, at time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !at.After(w.marks[slot]) {
		return false
	}
	w.marks[slot] = at
	return true
}

// Load forgets every watermark and starts over from the rows of a freshly fetched
// month, so a notification older than what was fetched is stale.
func (w *Watermarks) Load(rows []domain.StockEntry) {
	marks := make(map[domain.Slot]time.Time, len(rows))
	for _, row := range rows {
		if row.Section == "" {
			row.Section = domain.SectionGudang
		}
		slot := row.Slot()
		if row.LastModifiedAt.After(marks[slot]) {
			marks[slot] = row.LastModifiedAt
		}
	}

	w.mu.Lock()
	w.marks = marks
	w.mu.Unlock()
}
