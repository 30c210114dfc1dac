package ledger

import (
	"fmt"
	"slices"
	"strings"

	"ttclub/internal/core"
)

// defaultDueDays is how long a new pending fee stays open when no due date is
// given.
const defaultDueDays = 30

type PendingFeeInput struct {
	MemberID int64        `json:"memberId"`
	FeeType  core.FeeType `json:"feeType"`
	Amount   core.Money   `json:"amount"`
	DueDate  core.Date    `json:"dueDate"`
	Notes    string       `json:"notes"`
}

// AddPendingFee declares an outstanding due for a member. A member can have
// at most one pending entry per fee type.
func (l *Ledger) AddPendingFee(in PendingFeeInput) (core.PendingFee, error) {
	if in.FeeType == "" {
		return core.PendingFee{}, core.ErrInvalidFeeType
	}
	if err := in.Amount.Validate(); err != nil {
		return core.PendingFee{}, err
	}
	i := l.memberIndex(in.MemberID)
	if i < 0 {
		return core.PendingFee{}, fmt.Errorf("%w: id %d", core.ErrMemberNotFound, in.MemberID)
	}
	if year, ok := in.FeeType.AnnualYear(); ok && l.feeYearIndex(year) < 0 {
		return core.PendingFee{}, fmt.Errorf("%w: %d", core.ErrFeeYearNotFound, year)
	}
	dup := slices.ContainsFunc(l.pendingFees, func(p core.PendingFee) bool {
		return p.MemberID == in.MemberID && p.FeeType == in.FeeType
	})
	if dup {
		return core.PendingFee{}, fmt.Errorf("%w: %s", core.ErrDuplicatePendingFee, in.FeeType.Label())
	}

	m := l.members[i]
	today := l.today()
	due := in.DueDate
	if due.IsZero() {
		due = today.AddDays(defaultDueDays)
	}
	p := core.PendingFee{
		ID:          l.nextID(),
		MemberID:    m.ID,
		MemberName:  m.Name,
		MemberVilla: m.VillaNo,
		FeeType:     in.FeeType,
		Amount:      in.Amount,
		DueDate:     due,
		Notes:       strings.TrimSpace(in.Notes),
		Status:      core.PendingStatus,
		CreatedDate: today,
		Timestamp:   l.clock(),
	}
	l.pendingFees = append(l.pendingFees, p)
	l.record(ActivityPendingFeeAdded, fmt.Sprintf("Added pending %s of %s for %s", in.FeeType.Label(), in.Amount, m.Name))
	return p, nil
}

// CollectPendingFee turns a pending entry into a payment: the member's field
// is overwritten as in CollectFee, one transaction is appended and the
// pending entry is removed.
func (l *Ledger) CollectPendingFee(id int64, date core.Date) (core.Transaction, error) {
	pi := l.pendingIndex(id)
	if pi < 0 {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrPendingFeeNotFound, id)
	}
	p := l.pendingFees[pi]
	mi := l.memberIndex(p.MemberID)
	if mi < 0 {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrMemberNotFound, p.MemberID)
	}
	if err := l.applyFee(mi, p.FeeType, p.Amount); err != nil {
		return core.Transaction{}, err
	}
	m := l.members[mi]
	tx := l.appendTransaction(core.Transaction{
		MemberID:     m.ID,
		MemberName:   m.Name,
		Type:         p.FeeType,
		Amount:       p.Amount,
		Date:         date,
		FromPending:  true,
		PendingFeeID: p.ID,
	})
	l.pendingFees = slices.Delete(l.pendingFees, pi, pi+1)
	l.record(ActivityPendingFeeCollected, fmt.Sprintf("Collected pending %s of %s from %s", p.FeeType.Label(), p.Amount, m.Name))
	return tx, nil
}

func (l *Ledger) DeletePendingFee(id int64) error {
	i := l.pendingIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: id %d", core.ErrPendingFeeNotFound, id)
	}
	p := l.pendingFees[i]
	l.pendingFees = slices.Delete(l.pendingFees, i, i+1)
	l.record(ActivityPendingFeeRemoved, fmt.Sprintf("Removed pending %s for %s", p.FeeType.Label(), p.MemberName))
	return nil
}

func (l *Ledger) PendingFees() []core.PendingFee {
	return append([]core.PendingFee{}, l.pendingFees...)
}

func (l *Ledger) pendingIndex(id int64) int {
	return slices.IndexFunc(l.pendingFees, func(p core.PendingFee) bool { return p.ID == id })
}
