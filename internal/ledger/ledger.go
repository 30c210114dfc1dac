// Package ledger is the club's in-memory book of record: members, fee years,
// payments, pending dues, expenses, contributions, invoices and the activity
// log, with the invariants that tie them together.
//
// A Ledger is not safe for concurrent use. Callers serialize access (see
// services.LedgerService).
package ledger

import (
	"time"

	"ttclub/internal/core"
)

// Activity types appended by mutations.
const (
	ActivityMemberAdded         = "Member Added"
	ActivityMemberUpdated       = "Member Updated"
	ActivityMemberDeleted       = "Member Deleted"
	ActivityTransaction         = "Transaction Recorded"
	ActivityFeeCollected        = "Fee Collected"
	ActivityFeeAdjusted         = "Fee Adjusted"
	ActivityFeeYearAdded        = "Fee Year Added"
	ActivityFeeYearUpdated      = "Fee Year Updated"
	ActivityFeeYearDeleted      = "Fee Year Deleted"
	ActivityPendingFeeAdded     = "Pending Fee Added"
	ActivityPendingFeeCollected = "Pending Fee Collected"
	ActivityPendingFeeRemoved   = "Pending Fee Removed"
	ActivityExpenseAdded        = "Expense Added"
	ActivityExpenseUpdated      = "Expense Updated"
	ActivityExpenseDeleted      = "Expense Deleted"
	ActivityContributionAdded   = "Contribution Added"
	ActivityContributionUpdated = "Contribution Updated"
	ActivityContributionDeleted = "Contribution Deleted"
	ActivityInvoiceGenerated    = "Invoice Generated"
	ActivityInvoiceDeleted      = "Invoice Deleted"
	ActivityDataImport          = "Data Import"
	ActivityDataExport          = "Data Export"
)

// Fee years every fresh club starts with.
var defaultFeeYears = []int{2023, 2024, 2025}

type Ledger struct {
	members       []core.Member
	transactions  []core.Transaction
	invoices      []core.Invoice
	activities    []core.Activity
	expenses      []core.Expense
	contributions []core.Contribution
	pendingFees   []core.PendingFee
	feeYears      []core.FeeYear
	settings      core.Settings

	lastID   int64
	revision int64
	now      func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the time source used for ids, dates and timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New returns an empty ledger with default settings and no fee years.
func New(opts ...Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.settings = core.DefaultSettings(l.clock().Year())
	l.resetEmpty()
	return l
}

// NewDefault returns an empty club configured with the standard fee years at
// the default annual fee.
func NewDefault(opts ...Option) *Ledger {
	l := New(opts...)
	for _, y := range defaultFeeYears {
		l.feeYears = append(l.feeYears, core.FeeYear{
			Year:        y,
			Amount:      l.settings.DefaultAnnualFee,
			Description: defaultFeeYearDescription(y),
			IsActive:    true,
		})
	}
	return l
}

func (l *Ledger) resetEmpty() {
	l.members = []core.Member{}
	l.transactions = []core.Transaction{}
	l.invoices = []core.Invoice{}
	l.activities = []core.Activity{}
	l.expenses = []core.Expense{}
	l.contributions = []core.Contribution{}
	l.pendingFees = []core.PendingFee{}
	l.feeYears = []core.FeeYear{}
}

// Revision increases on every successful mutation.
func (l *Ledger) Revision() int64 { return l.revision }

func (l *Ledger) Settings() core.Settings { return l.settings }

func (l *Ledger) clock() time.Time { return l.now().UTC() }

func (l *Ledger) today() core.Date { return core.DateOf(l.clock()) }

func (l *Ledger) nextID() int64 {
	l.lastID++
	return l.lastID
}

// record appends an activity and marks the ledger changed. Every mutation
// ends with exactly one call.
func (l *Ledger) record(kind, description string) core.Activity {
	a := core.Activity{
		ID:          l.nextID(),
		Type:        kind,
		Description: description,
		Timestamp:   l.clock(),
	}
	l.activities = append(l.activities, a)
	l.revision++
	return a
}

// LogActivity records an event that happened outside the ledger, such as an
// export or a backup.
func (l *Ledger) LogActivity(kind, description string) core.Activity {
	return l.record(kind, description)
}

// Activities returns the log oldest first.
func (l *Ledger) Activities() []core.Activity {
	return append([]core.Activity{}, l.activities...)
}

// RecentActivities returns up to n entries, newest first.
func (l *Ledger) RecentActivities(n int) []core.Activity {
	out := make([]core.Activity, 0, n)
	for i := len(l.activities) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.activities[i])
	}
	return out
}
