package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ttclub/internal/core"
	"ttclub/internal/ledger"
	"ttclub/internal/log"
)

// SnapshotStore persists the full ledger after each change.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap core.Snapshot) error
	Close() error
}

// Publisher announces ledger changes to other processes.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, revision int64, activityType, description string) error
	Close() error
}

// LedgerService serializes access to the ledger and, after every successful
// mutation, saves a snapshot and publishes a change event. Neither side
// effect can fail the mutation: errors are logged and the in-memory change
// stands.
type LedgerService struct {
	mu        sync.RWMutex
	ledger    *ledger.Ledger
	store     SnapshotStore
	publisher Publisher
	logger    *log.Logger
	slog      *log.StructuredLogger
}

// NewLedgerService wraps l. store and publisher may be nil.
func NewLedgerService(l *ledger.Ledger, store SnapshotStore, publisher Publisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		ledger:    l,
		store:     store,
		publisher: publisher,
		logger:    logger,
		slog:      log.NewStructuredLogger(logger),
	}
}

// mutate runs fn under the write lock and, when it succeeds, logs and
// persists the change before unlocking. The change event is published after
// the lock is released so a slow broker does not stall readers.
func mutate[T any](ctx context.Context, s *LedgerService, op string, fields log.LogFields, fn func(*ledger.Ledger) (T, error)) (T, error) {
	s.mu.Lock()
	before := s.ledger.Revision()
	out, err := fn(s.ledger)
	if err != nil {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "Ledger operation rejected",
			log.NewFields().
				WithOperation(op).
				WithError(err).
				WithErrorType(errorType(err)).
				ToSlice()...)
		return out, err
	}
	var ev *changeEvent
	if s.ledger.Revision() != before {
		ev = s.afterChange(ctx, op, fields)
	}
	s.mu.Unlock()

	if ev != nil {
		s.publish(ctx, ev)
	}
	return out, nil
}

// changeEvent is what gets published for one mutation.
type changeEvent struct {
	revision    int64
	kind        string
	description string
}

// afterChange must be called with the write lock held.
func (s *LedgerService) afterChange(ctx context.Context, op string, fields log.LogFields) *changeEvent {
	rev := s.ledger.Revision()
	if fields == nil {
		fields = log.NewFields()
	}
	s.slog.LogMutation(ctx, op, rev, fields)

	if s.store != nil {
		if err := s.store.SaveSnapshot(ctx, s.ledger.Export()); err != nil {
			s.slog.LogError(ctx, "Failed to persist ledger snapshot", err, log.ComponentStorage, log.OpPersist,
				log.NewFields().WithRevision(rev).WithErrorType(log.ErrorTypeDatabase))
		}
	}

	if s.publisher == nil {
		return nil
	}
	ev := &changeEvent{revision: rev}
	if recent := s.ledger.RecentActivities(1); len(recent) > 0 {
		ev.kind, ev.description = recent[0].Type, recent[0].Description
	}
	return ev
}

func (s *LedgerService) publish(ctx context.Context, ev *changeEvent) {
	if err := s.publisher.PublishLedgerChanged(ctx, ev.revision, ev.kind, ev.description); err != nil {
		s.slog.LogError(ctx, "Failed to publish ledger change", err, log.ComponentAMQP, log.OpPublish,
			log.NewFields().WithRevision(ev.revision).WithErrorType(log.ErrorTypeNetwork))
	}
}

func (s *LedgerService) read(fn func(*ledger.Ledger)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.ledger)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrDuplicate), errors.Is(err, core.ErrConflict):
		return log.ErrorTypeConflict
	case errors.Is(err, core.ErrMalformedImport):
		return log.ErrorTypeImport
	case errors.Is(err, core.ErrValidation):
		return log.ErrorTypeValidation
	default:
		return log.ErrorTypeInternal
	}
}

// Revision reports the current ledger revision.
func (s *LedgerService) Revision() int64 {
	var rev int64
	s.read(func(l *ledger.Ledger) { rev = l.Revision() })
	return rev
}

// Members

func (s *LedgerService) AddMember(ctx context.Context, in ledger.MemberInput) (core.Member, error) {
	return mutate(ctx, s, log.OpCreate, nil, func(l *ledger.Ledger) (core.Member, error) {
		return l.AddMember(in)
	})
}

func (s *LedgerService) UpdateMember(ctx context.Context, id int64, in ledger.MemberInput) (core.Member, error) {
	return mutate(ctx, s, log.OpUpdate, log.NewFields().WithFee(id, "", 0), func(l *ledger.Ledger) (core.Member, error) {
		return l.UpdateMember(id, in)
	})
}

func (s *LedgerService) DeleteMember(ctx context.Context, id int64) error {
	_, err := mutate(ctx, s, log.OpDelete, nil, func(l *ledger.Ledger) (struct{}, error) {
		return struct{}{}, l.DeleteMember(id)
	})
	return err
}

func (s *LedgerService) Member(id int64) (m core.Member, err error) {
	s.read(func(l *ledger.Ledger) { m, err = l.Member(id) })
	return m, err
}

func (s *LedgerService) Members(f ledger.MemberFilter) (out []core.Member) {
	s.read(func(l *ledger.Ledger) { out = l.Members(f) })
	return out
}

// Fees

func (s *LedgerService) CollectFee(ctx context.Context, memberID int64, ft core.FeeType, amount core.Money, date core.Date) (core.Transaction, error) {
	fields := log.NewFields().WithFee(memberID, string(ft), amount.Cents)
	return mutate(ctx, s, log.OpCollect, fields, func(l *ledger.Ledger) (core.Transaction, error) {
		return l.CollectFee(memberID, ft, amount, date)
	})
}

func (s *LedgerService) EditMemberFee(ctx context.Context, memberID int64, year int, amount core.Money, reason, notes string) (core.Transaction, error) {
	fields := log.NewFields().WithFee(memberID, string(core.AdjustmentFeeType(year)), amount.Cents)
	return mutate(ctx, s, log.OpAdjust, fields, func(l *ledger.Ledger) (core.Transaction, error) {
		return l.EditMemberFee(memberID, year, amount, reason, notes)
	})
}

func (s *LedgerService) RecordTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	fields := log.NewFields().WithFee(tx.MemberID, string(tx.Type), tx.Amount.Cents)
	return mutate(ctx, s, log.OpCreate, fields, func(l *ledger.Ledger) (core.Transaction, error) {
		return l.RecordTransaction(tx), nil
	})
}

func (s *LedgerService) Transactions() (out []core.Transaction) {
	s.read(func(l *ledger.Ledger) { out = l.Transactions() })
	return out
}

// Fee years

func (s *LedgerService) FeeYears() (out []core.FeeYear) {
	s.read(func(l *ledger.Ledger) { out = l.FeeYears() })
	return out
}

func (s *LedgerService) AddFeeYear(ctx context.Context, year int, amount core.Money, description string) (core.FeeYear, error) {
	return mutate(ctx, s, log.OpCreate, log.NewFields().WithYear(year).WithFee(0, "", amount.Cents), func(l *ledger.Ledger) (core.FeeYear, error) {
		return l.AddFeeYear(year, amount, description)
	})
}

func (s *LedgerService) UpdateFeeYear(ctx context.Context, year int, amount core.Money, description string) (core.FeeYear, error) {
	return mutate(ctx, s, log.OpUpdate, log.NewFields().WithYear(year).WithFee(0, "", amount.Cents), func(l *ledger.Ledger) (core.FeeYear, error) {
		return l.UpdateFeeYear(year, amount, description)
	})
}

func (s *LedgerService) ToggleFeeYear(ctx context.Context, year int) (core.FeeYear, error) {
	return mutate(ctx, s, log.OpUpdate, log.NewFields().WithYear(year), func(l *ledger.Ledger) (core.FeeYear, error) {
		return l.ToggleFeeYear(year)
	})
}

// DeleteFeeYear returns the number of transactions removed with the year.
// Without force it refuses when any member has paid for it.
func (s *LedgerService) DeleteFeeYear(ctx context.Context, year int, force bool) (int, error) {
	return mutate(ctx, s, log.OpDelete, log.NewFields().WithYear(year), func(l *ledger.Ledger) (int, error) {
		return l.DeleteFeeYear(year, force)
	})
}

func (s *LedgerService) FeeYearImpact(year int) (n int, err error) {
	s.read(func(l *ledger.Ledger) { n, err = l.FeeYearImpact(year) })
	return n, err
}

// Pending fees

func (s *LedgerService) AddPendingFee(ctx context.Context, in ledger.PendingFeeInput) (core.PendingFee, error) {
	fields := log.NewFields().WithFee(in.MemberID, string(in.FeeType), in.Amount.Cents)
	return mutate(ctx, s, log.OpCreate, fields, func(l *ledger.Ledger) (core.PendingFee, error) {
		return l.AddPendingFee(in)
	})
}

func (s *LedgerService) CollectPendingFee(ctx context.Context, id int64, date core.Date) (core.Transaction, error) {
	return mutate(ctx, s, log.OpCollect, nil, func(l *ledger.Ledger) (core.Transaction, error) {
		return l.CollectPendingFee(id, date)
	})
}

func (s *LedgerService) DeletePendingFee(ctx context.Context, id int64) error {
	_, err := mutate(ctx, s, log.OpDelete, nil, func(l *ledger.Ledger) (struct{}, error) {
		return struct{}{}, l.DeletePendingFee(id)
	})
	return err
}

func (s *LedgerService) PendingFees() (out []core.PendingFee) {
	s.read(func(l *ledger.Ledger) { out = l.PendingFees() })
	return out
}

// Expenses and contributions

func (s *LedgerService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	return mutate(ctx, s, log.OpCreate, nil, func(l *ledger.Ledger) (core.Expense, error) {
		return l.AddExpense(e)
	})
}

func (s *LedgerService) UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	return mutate(ctx, s, log.OpUpdate, nil, func(l *ledger.Ledger) (core.Expense, error) {
		return l.UpdateExpense(id, e)
	})
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) error {
	_, err := mutate(ctx, s, log.OpDelete, nil, func(l *ledger.Ledger) (struct{}, error) {
		return struct{}{}, l.DeleteExpense(id)
	})
	return err
}

func (s *LedgerService) Expenses(f ledger.ExpenseFilter) (out []core.Expense) {
	s.read(func(l *ledger.Ledger) { out = l.Expenses(f) })
	return out
}

func (s *LedgerService) AddContribution(ctx context.Context, c core.Contribution) (core.Contribution, error) {
	return mutate(ctx, s, log.OpCreate, nil, func(l *ledger.Ledger) (core.Contribution, error) {
		return l.AddContribution(c)
	})
}

func (s *LedgerService) UpdateContribution(ctx context.Context, id int64, c core.Contribution) (core.Contribution, error) {
	return mutate(ctx, s, log.OpUpdate, nil, func(l *ledger.Ledger) (core.Contribution, error) {
		return l.UpdateContribution(id, c)
	})
}

func (s *LedgerService) DeleteContribution(ctx context.Context, id int64) error {
	_, err := mutate(ctx, s, log.OpDelete, nil, func(l *ledger.Ledger) (struct{}, error) {
		return struct{}{}, l.DeleteContribution(id)
	})
	return err
}

func (s *LedgerService) Contributions(f ledger.ContributionFilter) (out []core.Contribution) {
	s.read(func(l *ledger.Ledger) { out = l.Contributions(f) })
	return out
}

// Invoices

func (s *LedgerService) GenerateInvoice(ctx context.Context, memberID int64) (core.Invoice, error) {
	return mutate(ctx, s, log.OpCreate, log.NewFields().WithFee(memberID, "", 0), func(l *ledger.Ledger) (core.Invoice, error) {
		return l.GenerateInvoice(memberID)
	})
}

func (s *LedgerService) DeleteInvoice(ctx context.Context, id int64) error {
	_, err := mutate(ctx, s, log.OpDelete, nil, func(l *ledger.Ledger) (struct{}, error) {
		return struct{}{}, l.DeleteInvoice(id)
	})
	return err
}

func (s *LedgerService) Invoices() (out []core.Invoice) {
	s.read(func(l *ledger.Ledger) { out = l.Invoices() })
	return out
}

// Activity log and aggregates

func (s *LedgerService) Activities() (out []core.Activity) {
	s.read(func(l *ledger.Ledger) { out = l.Activities() })
	return out
}

func (s *LedgerService) RecentActivities(n int) (out []core.Activity) {
	s.read(func(l *ledger.Ledger) { out = l.RecentActivities(n) })
	return out
}

func (s *LedgerService) Dashboard() (d core.Dashboard) {
	s.read(func(l *ledger.Ledger) { d = l.Dashboard() })
	return d
}

func (s *LedgerService) FeeSummary() (out []core.FeeYearSummary) {
	s.read(func(l *ledger.Ledger) { out = l.FeeSummary() })
	return out
}

func (s *LedgerService) FinancialSummary() (out core.FinancialSummary) {
	s.read(func(l *ledger.Ledger) { out = l.FinancialSummary() })
	return out
}

func (s *LedgerService) MemberStatistics() (out core.MemberStatistics) {
	s.read(func(l *ledger.Ledger) { out = l.MemberStatistics() })
	return out
}

func (s *LedgerService) ExpenseSummary() (out core.ExpenseSummary) {
	s.read(func(l *ledger.Ledger) { out = l.ExpenseSummary() })
	return out
}

func (s *LedgerService) ContributionSummary() (out core.ContributionSummary) {
	s.read(func(l *ledger.Ledger) { out = l.ContributionSummary() })
	return out
}

func (s *LedgerService) HasUnpaidFees(memberID int64) (unpaid bool, err error) {
	s.read(func(l *ledger.Ledger) { unpaid, err = l.HasUnpaidFees(memberID) })
	return unpaid, err
}

// Import and export

// Export returns the stamped snapshot along with the revision it reflects.
func (s *LedgerService) Export() (snap core.Snapshot, rev int64) {
	s.read(func(l *ledger.Ledger) {
		snap = l.Export()
		rev = l.Revision()
	})
	return snap, rev
}

// Import replaces the whole ledger with the document in data and records a
// Data Import activity. A rejected document leaves the ledger untouched.
func (s *LedgerService) Import(ctx context.Context, data []byte) error {
	_, err := mutate(ctx, s, log.OpImport, nil, func(l *ledger.Ledger) (struct{}, error) {
		if err := l.Import(data); err != nil {
			return struct{}{}, err
		}
		l.LogActivity(ledger.ActivityDataImport, "Imported ledger data from backup")
		return struct{}{}, nil
	})
	return err
}

// Close releases the snapshot store and the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
