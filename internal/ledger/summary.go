package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"habibeat/backend/internal/domain"
)

// ActivityWindow bounds the batch of edits counted towards the latest actor.
const ActivityWindow = 5 * time.Minute

type Totals struct {
	Items          int             `json:"items"`
	StockIn        decimal.Decimal `json:"stock_in"`
	StockOut       decimal.Decimal `json:"stock_out"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

func Summarize(rows []domain.CalculatedStock) Totals {
	totals := Totals{Items: len(rows)}
	for _, row := range rows {
		totals.StockIn = totals.StockIn.Add(row.StockIn)
		totals.StockOut = totals.StockOut.Add(row.StockOut)
		totals.InventoryValue = totals.InventoryValue.Add(row.EndStock.Mul(row.UnitPrice))
	}
	return totals
}

type Activity struct {
	User  string    `json:"user"`
	At    time.Time `json:"at"`
	Count int       `json:"count"`
}

// LastActivity finds the most recent modifier among rows and counts how many rows the
// same actor touched within ActivityWindow before that. Nil when no row has provenance.
func LastActivity(rows []domain.CalculatedStock) *Activity {
	var latest *domain.CalculatedStock
	for i := range rows {
		row := &rows[i]
		if row.LastModifiedAt == nil || row.LastModifiedBy == "" {
			continue
		}
		if latest == nil || row.LastModifiedAt.After(*latest.LastModifiedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil
	}

	activity := &Activity{User: latest.LastModifiedBy, At: *latest.LastModifiedAt}
	for _, row := range rows {
		if row.LastModifiedAt == nil || row.LastModifiedBy != latest.LastModifiedBy {
			continue
		}
		gap := latest.LastModifiedAt.Sub(*row.LastModifiedAt)
		if gap >= 0 && gap <= ActivityWindow {
			activity.Count++
		}
	}
	return activity
}
