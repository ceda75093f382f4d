package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/farm-ledger/internal/farmerr"
)

// Memory is an in-process Ledger.
type Memory struct {
	mu        sync.Mutex
	precision int32
	journal   string
	entries   map[string]*Entry
	order     []string
	analytic  []AnalyticLine
}

// NewMemory returns a ledger rounding to precision places and posting to
// journal when entries name none.
func NewMemory(precision int32, journal string) *Memory {
	return &Memory{
		precision: precision,
		journal:   journal,
		entries:   map[string]*Entry{},
	}
}

func (m *Memory) Post(_ context.Context, e Entry) (*Entry, error) {
	if len(e.Lines) < 2 {
		return nil, farmerr.Blocked(farmerr.MsgUnbalanced)
	}
	lines := make([]Line, len(e.Lines))
	debit, credit := decimal.Zero, decimal.Zero
	for i, l := range e.Lines {
		if l.Account == "" {
			return nil, farmerr.Invalid(farmerr.MsgInvalidField, "account", "empty")
		}
		l.Debit = l.Debit.Round(m.precision)
		l.Credit = l.Credit.Round(m.precision)
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
		lines[i] = l
	}
	if !debit.Equal(credit) {
		return nil, farmerr.Blocked(farmerr.MsgUnbalanced)
	}

	e.ID = uuid.New().String()
	e.Lines = lines
	e.State = EntryPosted
	if e.Journal == "" {
		e.Journal = m.journal
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = &e
	m.order = append(m.order, e.ID)
	out := e
	return &out, nil
}

func (m *Memory) Reverse(ctx context.Context, id string, date time.Time) (*Entry, error) {
	m.mu.Lock()
	orig, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return nil, eris.Errorf("ledger: unknown entry %s", id)
	}
	if orig.State == EntryReversed {
		m.mu.Unlock()
		return nil, eris.Errorf("ledger: entry %s already reversed", id)
	}
	mirror := make([]Line, len(orig.Lines))
	for i, l := range orig.Lines {
		mirror[i] = Line{Account: l.Account, Debit: l.Credit, Credit: l.Debit, Label: l.Label}
	}
	rev := Entry{Journal: orig.Journal, Ref: "Reversal of " + orig.Ref, Date: date, Lines: mirror, ReversalOf: id}
	m.mu.Unlock()

	posted, err := m.Post(ctx, rev)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: reverse %s", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	orig.State = EntryReversed
	orig.ReversedBy = posted.ID
	return posted, nil
}

func (m *Memory) Entry(_ context.Context, id string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, eris.Errorf("ledger: unknown entry %s", id)
	}
	out := *e
	out.Lines = slices.Clone(e.Lines)
	return &out, nil
}

// Entries returns every entry in posting order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.entries[id])
	}
	return out
}

func (m *Memory) PostAnalytic(_ context.Context, l AnalyticLine) (*AnalyticLine, error) {
	if l.Account == "" {
		return nil, farmerr.Invalid(farmerr.MsgInvalidField, "analytic_account", "empty")
	}
	l.ID = uuid.New().String()
	l.Amount = l.Amount.Round(m.precision)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.analytic = append(m.analytic, l)
	return &l, nil
}

func (m *Memory) CancelAnalytic(_ context.Context, ref string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.analytic)
	m.analytic = slices.DeleteFunc(m.analytic, func(l AnalyticLine) bool { return l.Ref == ref })
	return before - len(m.analytic), nil
}

func (m *Memory) AnalyticLines(_ context.Context, ref string) ([]AnalyticLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AnalyticLine
	for _, l := range m.analytic {
		if l.Ref == ref {
			out = append(out, l)
		}
	}
	return out, nil
}
