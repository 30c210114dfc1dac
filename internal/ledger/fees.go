package ledger

import (
	"fmt"
	"strings"

	"ttclub/internal/core"
)

var errEmptyReason = fmt.Errorf("%w: adjustment reason is required", core.ErrValidation)

// RecordTransaction appends a payment record as given. It does not touch
// member balances and does not check them.
func (l *Ledger) RecordTransaction(tx core.Transaction) core.Transaction {
	tx = l.appendTransaction(tx)
	l.record(ActivityTransaction, fmt.Sprintf("Recorded %s %s for %s", feePhrase(tx.Type), tx.Amount, tx.MemberName))
	return tx
}

// Transactions returns the payment history oldest first.
func (l *Ledger) Transactions() []core.Transaction {
	return append([]core.Transaction{}, l.transactions...)
}

// CollectFee records a payment. Annual and membership fees overwrite the
// member's stored amount for that fee; repeated collection replaces rather
// than adds. Other fee types only produce the transaction.
func (l *Ledger) CollectFee(memberID int64, ft core.FeeType, amount core.Money, date core.Date) (core.Transaction, error) {
	if ft == "" {
		return core.Transaction{}, core.ErrInvalidFeeType
	}
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	i := l.memberIndex(memberID)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrMemberNotFound, memberID)
	}
	if err := l.applyFee(i, ft, amount); err != nil {
		return core.Transaction{}, err
	}
	m := l.members[i]
	tx := l.appendTransaction(core.Transaction{
		MemberID:   m.ID,
		MemberName: m.Name,
		Type:       ft,
		Amount:     amount,
		Date:       date,
	})
	l.record(ActivityFeeCollected, fmt.Sprintf("Collected %s %s from %s", feePhrase(ft), amount, m.Name))
	return tx, nil
}

// EditMemberFee sets a member's fee for a year to an exact amount and leaves
// an adjustment transaction carrying the signed difference.
func (l *Ledger) EditMemberFee(memberID int64, year int, newAmount core.Money, reason, notes string) (core.Transaction, error) {
	if err := newAmount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return core.Transaction{}, errEmptyReason
	}
	i := l.memberIndex(memberID)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrMemberNotFound, memberID)
	}
	old := l.members[i].AnnualFees[year]
	if err := l.applyFee(i, core.AnnualFeeType(year), newAmount); err != nil {
		return core.Transaction{}, err
	}
	m := l.members[i]
	before, after := old, newAmount
	tx := l.appendTransaction(core.Transaction{
		MemberID:         m.ID,
		MemberName:       m.Name,
		Type:             core.AdjustmentFeeType(year),
		Amount:           newAmount.Sub(old),
		IsAdjustment:     true,
		AdjustmentReason: reason,
		AdjustmentNotes:  strings.TrimSpace(notes),
		OriginalAmount:   &before,
		NewAmount:        &after,
	})

	var desc string
	switch {
	case newAmount.Cents > old.Cents:
		desc = fmt.Sprintf("%s's %d fee increased from %s to %s. Reason: %s", m.Name, year, old, newAmount, reason)
	case newAmount.Cents < old.Cents:
		desc = fmt.Sprintf("%s's %d fee reduced from %s to %s. Reason: %s", m.Name, year, old, newAmount, reason)
	default:
		desc = fmt.Sprintf("%s's %d fee corrected (no amount change). Reason: %s", m.Name, year, reason)
	}
	l.record(ActivityFeeAdjusted, desc)
	return tx, nil
}

// applyFee overwrites the member field a fee type maps to and restores the
// member's total.
func (l *Ledger) applyFee(memberIdx int, ft core.FeeType, amount core.Money) error {
	m := &l.members[memberIdx]
	if year, ok := ft.AnnualYear(); ok {
		if l.feeYearIndex(year) < 0 {
			return fmt.Errorf("%w: %d", core.ErrFeeYearNotFound, year)
		}
		m.AnnualFees[year] = amount
	} else if ft == core.FeeTypeMembership {
		m.MembershipFee = amount
	}
	l.recomputeTotal(m)
	return nil
}

func (l *Ledger) appendTransaction(tx core.Transaction) core.Transaction {
	tx.ID = l.nextID()
	tx.Timestamp = l.clock()
	if tx.Date.IsZero() {
		tx.Date = l.today()
	}
	l.transactions = append(l.transactions, tx)
	return tx
}

// feePhrase renders a fee type for activity text: "annual 2024".
func feePhrase(ft core.FeeType) string {
	return strings.Replace(string(ft), "_", " ", 1)
}
