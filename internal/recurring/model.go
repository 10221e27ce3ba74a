package recurring

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the schedule cadence of a recurring transaction.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Valid reports whether the frequency is a known cadence.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// Transaction is a schedule descriptor plus a voucher template. Each time it
// falls due, a posted voucher is materialized from the template.
type Transaction struct {
	ID                   int64          `json:"id"`
	BusinessID           int64          `json:"business_id"`
	VoucherTypeID        int64          `json:"voucher_type_id"`
	Name                 string         `json:"name"`
	Frequency            Frequency      `json:"frequency"`
	DayOfWeek            *int           `json:"day_of_week,omitempty"`  // 0=Sunday .. 6=Saturday
	DayOfMonth           *int           `json:"day_of_month,omitempty"` // 1..31, clamped to shorter months
	Month                *int           `json:"month,omitempty"`        // 1..12, yearly only
	StartDate            time.Time      `json:"start_date"`
	EndDate              *time.Time     `json:"end_date,omitempty"`
	Occurrences          *int           `json:"occurrences,omitempty"`
	OccurrencesGenerated int            `json:"occurrences_generated"`
	LastGeneratedDate    *time.Time     `json:"last_generated_date,omitempty"`
	Narration            string         `json:"narration"`
	IsActive             bool           `json:"is_active"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	Template             []TemplateItem `json:"template,omitempty"`
}

// TemplateItem is one voucher line of the template.
type TemplateItem struct {
	ID              int64           `json:"id"`
	RecurringID     int64           `json:"recurring_id"`
	LedgerAccountID int64           `json:"ledger_account_id"`
	CostCenterID    *int64          `json:"cost_center_id,omitempty"`
	DebitAmount     decimal.Decimal `json:"debit_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	Narration       string          `json:"narration"`
	Sequence        int             `json:"sequence"`
}

// Exhausted reports whether the schedule has run out of occurrences.
func (t Transaction) Exhausted() bool {
	return t.Occurrences != nil && t.OccurrencesGenerated >= *t.Occurrences
}

// Balanced reports whether the template's debits equal its credits.
func (t Transaction) Balanced() bool {
	debit, credit := decimal.Zero, decimal.Zero
	for _, it := range t.Template {
		debit = debit.Add(it.DebitAmount)
		credit = credit.Add(it.CreditAmount)
	}
	return debit.Equal(credit)
}
