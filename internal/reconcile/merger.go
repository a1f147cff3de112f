package reconcile

import (
	"github.com/rs/zerolog/log"

	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/ledger"
)

// Outcome says what the merger did with a notification.
type Outcome int

const (
	Applied Outcome = iota
	OutOfScope
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case OutOfScope:
		return "out_of_scope"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Merger applies remote rows to the Entry Store with last-write-wins per slot.
// The winning row replaces the whole leaf; fields are not merged individually.
type Merger struct {
	store      *ledger.Store
	watermarks *Watermarks
}

func NewMerger(store *ledger.Store, watermarks *Watermarks) *Merger {
	return &Merger{store: store, watermarks: watermarks}
}

func (m *Merger) Merge(change domain.EntryChange) Outcome {
	entry := change.Entry
	if entry.Section == "" {
		entry.Section = domain.SectionGudang
	}
	if entry.ProductID == "" || entry.Period() != m.store.Period() {
		return OutOfScope
	}
	if _, err := domain.ParseSection(string(entry.Section)); err != nil {
		return OutOfScope
	}
	if entry.Day < 1 || entry.Day > ledger.MaxDays {
		return OutOfScope
	}

	slot := entry.Slot()
	if !m.watermarks.Advance(slot, entry.LastModifiedAt) {
		return Stale
	}

	if err := m.store.Put(entry); err != nil {
		// The store moved to another month between the check and the write.
		log.Debug().Err(err).Str("slot", slot.String()).Msg("dropping notification")
		return OutOfScope
	}
	return Applied
}
