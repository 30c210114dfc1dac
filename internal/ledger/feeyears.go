package ledger

import (
	"fmt"
	"slices"
	"strings"

	"ttclub/internal/core"
)

func defaultFeeYearDescription(year int) string {
	return fmt.Sprintf("Annual Fee %d", year)
}

// FeeYears returns the configured fee years in ascending order.
func (l *Ledger) FeeYears() []core.FeeYear {
	return append([]core.FeeYear{}, l.feeYears...)
}

func (l *Ledger) FeeYear(year int) (core.FeeYear, error) {
	i := l.feeYearIndex(year)
	if i < 0 {
		return core.FeeYear{}, fmt.Errorf("%w: %d", core.ErrFeeYearNotFound, year)
	}
	return l.feeYears[i], nil
}

// AddFeeYear configures a new fee year and gives every member a zero balance
// for it.
func (l *Ledger) AddFeeYear(year int, amount core.Money, description string) (core.FeeYear, error) {
	fy := core.FeeYear{
		Year:        year,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		IsActive:    true,
	}
	if err := fy.Validate(); err != nil {
		return core.FeeYear{}, err
	}
	if l.feeYearIndex(year) >= 0 {
		return core.FeeYear{}, fmt.Errorf("%w: %d", core.ErrDuplicateFeeYear, year)
	}
	if fy.Description == "" {
		fy.Description = defaultFeeYearDescription(year)
	}
	l.feeYears = append(l.feeYears, fy)
	slices.SortFunc(l.feeYears, func(a, b core.FeeYear) int { return a.Year - b.Year })

	for i := range l.members {
		if _, ok := l.members[i].AnnualFees[year]; !ok {
			l.members[i].AnnualFees[year] = core.Money{}
		}
	}
	l.recomputeAllTotals()
	l.record(ActivityFeeYearAdded, fmt.Sprintf("Added fee year %d (%s)", year, amount))
	return fy, nil
}

func (l *Ledger) UpdateFeeYear(year int, amount core.Money, description string) (core.FeeYear, error) {
	i := l.feeYearIndex(year)
	if i < 0 {
		return core.FeeYear{}, fmt.Errorf("%w: %d", core.ErrFeeYearNotFound, year)
	}
	fy := l.feeYears[i]
	fy.Amount = amount
	if d := strings.TrimSpace(description); d != "" {
		fy.Description = d
	}
	if err := fy.Validate(); err != nil {
		return core.FeeYear{}, err
	}
	l.feeYears[i] = fy
	l.record(ActivityFeeYearUpdated, fmt.Sprintf("Updated fee year %d: %s", year, fy.Amount))
	return fy, nil
}

// ToggleFeeYear flips whether the year is offered for new fees and counted
// as pending.
func (l *Ledger) ToggleFeeYear(year int) (core.FeeYear, error) {
	i := l.feeYearIndex(year)
	if i < 0 {
		return core.FeeYear{}, fmt.Errorf("%w: %d", core.ErrFeeYearNotFound, year)
	}
	l.feeYears[i].IsActive = !l.feeYears[i].IsActive
	state := "deactivated"
	if l.feeYears[i].IsActive {
		state = "activated"
	}
	l.record(ActivityFeeYearUpdated, fmt.Sprintf("Fee year %d %s", year, state))
	return l.feeYears[i], nil
}

// FeeYearImpact counts members who already have a non-zero amount recorded
// for the year.
func (l *Ledger) FeeYearImpact(year int) (int, error) {
	if l.feeYearIndex(year) < 0 {
		return 0, fmt.Errorf("%w: %d", core.ErrFeeYearNotFound, year)
	}
	paid := 0
	for _, m := range l.members {
		if !m.AnnualFees[year].IsZero() {
			paid++
		}
	}
	return paid, nil
}

// DeleteFeeYear removes the year from the schema, from every member, from
// the transaction history and from the pending fees. Without force it refuses when any member has paid
// for the year. It returns the number of transactions removed.
func (l *Ledger) DeleteFeeYear(year int, force bool) (int, error) {
	paid, err := l.FeeYearImpact(year)
	if err != nil {
		return 0, err
	}
	if paid > 0 && !force {
		return 0, fmt.Errorf("%w: %d member(s) paid for %d", core.ErrFeeYearHasPayments, paid, year)
	}

	l.feeYears = slices.DeleteFunc(l.feeYears, func(fy core.FeeYear) bool { return fy.Year == year })
	for i := range l.members {
		delete(l.members[i].AnnualFees, year)
	}
	l.recomputeAllTotals()

	before := len(l.transactions)
	l.transactions = slices.DeleteFunc(l.transactions, func(t core.Transaction) bool {
		y, ok := t.Type.Year()
		return ok && y == year
	})
	removed := before - len(l.transactions)

	pending := len(l.pendingFees)
	l.pendingFees = slices.DeleteFunc(l.pendingFees, func(p core.PendingFee) bool {
		y, ok := p.FeeType.Year()
		return ok && y == year
	})
	pending -= len(l.pendingFees)

	desc := fmt.Sprintf("Deleted fee year %d and %d related transaction(s)", year, removed)
	if pending > 0 {
		desc += fmt.Sprintf(", dropped %d pending fee(s)", pending)
	}
	l.record(ActivityFeeYearDeleted, desc)
	return removed, nil
}

func (l *Ledger) feeYearIndex(year int) int {
	return slices.IndexFunc(l.feeYears, func(fy core.FeeYear) bool { return fy.Year == year })
}
