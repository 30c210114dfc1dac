package ledger

import (
	"strings"

	"ttclub/internal/core"
)

const recentActivityCount = 5

// Dashboard recomputes the headline figures from the current state.
func (l *Ledger) Dashboard() core.Dashboard {
	d := core.Dashboard{
		TotalMembers:     len(l.members),
		RecentActivities: l.RecentActivities(recentActivityCount),
	}
	for _, m := range l.members {
		if m.IsActive {
			d.ActiveMembers++
		}
		d.TotalCollected = d.TotalCollected.Add(m.TotalPaid)
	}
	d.TotalContributions = l.ContributionSummary().Total
	d.TotalExpenses = l.ExpenseSummary().Total
	d.NetBalance = d.TotalCollected.Add(d.TotalContributions).Sub(d.TotalExpenses)
	d.PendingPayments, d.PendingAmount = l.pending()
	return d
}

// pending counts (member, active fee year) pairs still at zero and values
// each at that year's configured amount.
func (l *Ledger) pending() (int, core.Money) {
	var count int
	var amount core.Money
	for _, fy := range l.feeYears {
		if !fy.IsActive {
			continue
		}
		for _, m := range l.members {
			if m.AnnualFees[fy.Year].IsZero() {
				count++
				amount = amount.Add(fy.Amount)
			}
		}
	}
	return count, amount
}

// FeeSummary reports collected and outstanding amounts per configured year.
func (l *Ledger) FeeSummary() []core.FeeYearSummary {
	out := make([]core.FeeYearSummary, 0, len(l.feeYears))
	for _, fy := range l.feeYears {
		s := core.FeeYearSummary{
			Year:        fy.Year,
			Description: fy.Description,
			IsActive:    fy.IsActive,
			Amount:      fy.Amount,
		}
		for _, m := range l.members {
			paid := m.AnnualFees[fy.Year]
			if paid.IsZero() {
				s.PendingCount++
				continue
			}
			s.PaidCount++
			s.Collected = s.Collected.Add(paid)
		}
		s.PendingAmount = fy.Amount.Mul(s.PendingCount)
		out = append(out, s)
	}
	return out
}

func (l *Ledger) FinancialSummary() core.FinancialSummary {
	fs := core.FinancialSummary{AnnualFees: make(map[int]core.Money, len(l.feeYears))}
	for _, fy := range l.feeYears {
		fs.AnnualFees[fy.Year] = core.Money{}
	}
	for _, m := range l.members {
		fs.MembershipFees = fs.MembershipFees.Add(m.MembershipFee)
		fs.TotalMemberFees = fs.TotalMemberFees.Add(m.TotalPaid)
		fs.MembershipBalance = fs.MembershipBalance.Add(m.PendingAmount)
		for _, fy := range l.feeYears {
			fs.AnnualFees[fy.Year] = fs.AnnualFees[fy.Year].Add(m.AnnualFees[fy.Year])
		}
	}
	fs.TotalContributions = l.ContributionSummary().Total
	fs.TotalExpenses = l.ExpenseSummary().Total
	fs.TotalIncome = fs.TotalMemberFees.Add(fs.TotalContributions)
	fs.NetBalance = fs.TotalIncome.Sub(fs.TotalExpenses)
	_, fs.PendingAmount = l.pending()
	return fs
}

func (l *Ledger) MemberStatistics() core.MemberStatistics {
	st := core.MemberStatistics{Total: len(l.members)}
	for _, m := range l.members {
		status := strings.TrimSpace(strings.TrimSuffix(m.Status, core.InactiveSuffix))
		switch status {
		case core.StatusFounding:
			st.Founding++
		case core.StatusNew:
			st.New++
		case core.StatusApproved:
			st.Approved++
		}
		if !m.IsActive {
			st.Inactive++
		}
	}
	return st
}

// ExpenseSummary totals expenses overall, for the clock's current month and
// those still awaiting reimbursement.
func (l *Ledger) ExpenseSummary() core.ExpenseSummary {
	now := l.clock()
	var s core.ExpenseSummary
	for _, e := range l.expenses {
		s.Total = s.Total.Add(e.Amount)
		if e.Date.SameMonth(now) {
			s.ThisMonth = s.ThisMonth.Add(e.Amount)
		}
		if e.Status == core.ExpensePending {
			s.PendingReimbursements = s.PendingReimbursements.Add(e.Amount)
		}
	}
	return s
}

func (l *Ledger) ContributionSummary() core.ContributionSummary {
	var s core.ContributionSummary
	for _, c := range l.contributions {
		s.Total = s.Total.Add(c.Amount)
		switch {
		case c.Type == core.ContributionMember:
			s.Member = s.Member.Add(c.Amount)
		case c.IsExternal():
			s.External = s.External.Add(c.Amount)
		}
	}
	return s
}

// HasUnpaidFees reports whether the member owes anything for an active year.
func (l *Ledger) HasUnpaidFees(memberID int64) (bool, error) {
	i := l.memberIndex(memberID)
	if i < 0 {
		return false, core.ErrMemberNotFound
	}
	return len(l.unpaidYears(l.members[i])) > 0, nil
}
