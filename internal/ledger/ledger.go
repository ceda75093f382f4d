// Package ledger is the accounting collaborator: balanced journal entries,
// append-only reversals, and analytic lines keyed by a source reference.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EntryState of a journal entry.
type EntryState string

const (
	EntryPosted   EntryState = "posted"
	EntryReversed EntryState = "reversed"
)

// Line is one side of a journal entry.
type Line struct {
	Account string          `json:"account"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Label   string          `json:"label,omitempty"`
}

// Entry is a journal entry handle.
type Entry struct {
	ID         string     `json:"id"`
	Journal    string     `json:"journal"`
	Ref        string     `json:"ref"`
	Date       time.Time  `json:"date"`
	Lines      []Line     `json:"lines"`
	State      EntryState `json:"state"`
	ReversalOf string     `json:"reversal_of,omitempty"`
	ReversedBy string     `json:"reversed_by,omitempty"`
}

// AnalyticLine charges an amount to an analytic account.
type AnalyticLine struct {
	ID      string          `json:"id"`
	Account string          `json:"account"`
	Ref     string          `json:"ref"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Date    time.Time       `json:"date"`
}

// Ledger posts and reverses journal entries.
type Ledger interface {
	// Post validates balance after rounding and records the entry.
	Post(ctx context.Context, e Entry) (*Entry, error)
	// Reverse appends a mirror entry and marks the original reversed.
	Reverse(ctx context.Context, id string, date time.Time) (*Entry, error)
	Entry(ctx context.Context, id string) (*Entry, error)

	PostAnalytic(ctx context.Context, l AnalyticLine) (*AnalyticLine, error)
	// CancelAnalytic removes every analytic line carrying ref.
	CancelAnalytic(ctx context.Context, ref string) (int, error)
	AnalyticLines(ctx context.Context, ref string) ([]AnalyticLine, error)
}

// Amount converts a float figure to a decimal rounded to places.
func Amount(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

// Pair builds the two lines of a simple debit/credit entry.
func Pair(debitAccount, creditAccount string, amount decimal.Decimal, label string) []Line {
	return []Line{
		{Account: debitAccount, Debit: amount, Credit: decimal.Zero, Label: label},
		{Account: creditAccount, Debit: decimal.Zero, Credit: amount, Label: label},
	}
}
