package ledger

import (
	"errors"
	"fmt"
	"testing"

	"ttclub/internal/core"
)

func TestDashboard(t *testing.T) {
	l := newTestLedger(t)
	a := mustAddMember(t, l, "Asha", "A-12", 3000)
	mustAddMember(t, l, "Bala", "B-03", 3000)
	if _, err := l.CollectFee(a.ID, core.AnnualFeeType(2023), core.Rupees(500), core.Date{}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err := l.AddContribution(core.Contribution{ContributorName: "Sponsor Co", Type: core.ContributionSponsorship, Amount: core.Rupees(2000)}); err != nil {
		t.Fatalf("contribution: %v", err)
	}
	if _, err := l.AddExpense(core.Expense{Description: "Balls", Category: "Equipment", Amount: core.Rupees(1200)}); err != nil {
		t.Fatalf("expense: %v", err)
	}

	d := l.Dashboard()
	if d.TotalMembers != 2 || d.ActiveMembers != 2 {
		t.Fatalf("members: %d/%d", d.TotalMembers, d.ActiveMembers)
	}
	if d.TotalCollected != core.Rupees(6500) {
		t.Fatalf("collected = %v", d.TotalCollected)
	}
	if d.NetBalance != core.Rupees(6500+2000-1200) {
		t.Fatalf("net = %v", d.NetBalance)
	}
	// 2 members x 3 active years, one paid.
	if d.PendingPayments != 5 || d.PendingAmount != core.Rupees(2500) {
		t.Fatalf("pending = %d %v", d.PendingPayments, d.PendingAmount)
	}
	if len(d.RecentActivities) != 5 || d.RecentActivities[0].Type != ActivityExpenseAdded {
		t.Fatalf("recent activities should be newest first, got %+v", d.RecentActivities)
	}
}

func TestFeeSummary(t *testing.T) {
	l := newTestLedger(t)
	a := mustAddMember(t, l, "Asha", "A-12", 3000)
	mustAddMember(t, l, "Bala", "B-03", 3000)
	if _, err := l.CollectFee(a.ID, core.AnnualFeeType(2024), core.Rupees(500), core.Date{}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, s := range l.FeeSummary() {
		switch s.Year {
		case 2024:
			if s.Collected != core.Rupees(500) || s.PaidCount != 1 || s.PendingCount != 1 || s.PendingAmount != core.Rupees(500) {
				t.Fatalf("2024 summary %+v", s)
			}
		default:
			if s.PendingCount != 2 || s.PendingAmount != core.Rupees(1000) {
				t.Fatalf("%d summary %+v", s.Year, s)
			}
		}
	}

	fs := l.FinancialSummary()
	if fs.MembershipFees != core.Rupees(6000) || fs.AnnualFees[2024] != core.Rupees(500) || fs.TotalMemberFees != core.Rupees(6500) {
		t.Fatalf("financial summary %+v", fs)
	}
}

func TestExpenseAndContributionSummaries(t *testing.T) {
	l := newTestLedger(t)
	expenses := []core.Expense{
		{Description: "Table", Amount: core.Rupees(10000), Date: core.NewDate(2025, 6, 1)},
		{Description: "Net", Amount: core.Rupees(800), Date: core.NewDate(2025, 5, 20), Status: core.ExpensePending},
	}
	for _, e := range expenses {
		if _, err := l.AddExpense(e); err != nil {
			t.Fatalf("expense: %v", err)
		}
	}
	es := l.ExpenseSummary()
	if es.Total != core.Rupees(10800) || es.ThisMonth != core.Rupees(10000) || es.PendingReimbursements != core.Rupees(800) {
		t.Fatalf("expense summary %+v", es)
	}

	contribs := []core.Contribution{
		{ContributorName: "Asha", Type: core.ContributionMember, Amount: core.Rupees(100)},
		{ContributorName: "Shop", Type: core.ContributionDonation, Amount: core.Rupees(300)},
		{ContributorName: "Bank", Type: core.ContributionExternal, Amount: core.Rupees(600)},
	}
	for _, c := range contribs {
		if _, err := l.AddContribution(c); err != nil {
			t.Fatalf("contribution: %v", err)
		}
	}
	cs := l.ContributionSummary()
	if cs.Total != core.Rupees(1000) || cs.Member != core.Rupees(100) || cs.External != core.Rupees(900) {
		t.Fatalf("contribution summary %+v", cs)
	}
}

func TestMemberStatistics(t *testing.T) {
	l := newTestLedger(t)
	inputs := []MemberInput{
		{Name: "A", Status: core.StatusFounding},
		{Name: "B", Status: core.StatusFounding},
		{Name: "C", Status: core.StatusNew},
		{Name: "D", Status: core.StatusApproved + " " + core.InactiveSuffix},
	}
	for _, in := range inputs {
		if _, err := l.AddMember(in); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	st := l.MemberStatistics()
	want := core.MemberStatistics{Total: 4, Founding: 2, New: 1, Approved: 1, Inactive: 1}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}

func TestEntriesCRUD(t *testing.T) {
	l := newTestLedger(t)
	e, err := l.AddExpense(core.Expense{Description: "Balls", Category: "Equipment", Amount: core.Rupees(400), PaidBy: "Asha"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.Status != core.ExpensePaid || e.Date.IsZero() {
		t.Fatalf("defaults not applied: %+v", e)
	}
	e.Amount = core.Rupees(450)
	if _, err := l.UpdateExpense(e.ID, e); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := l.Expenses(ExpenseFilter{Search: "asha"}); len(got) != 1 || got[0].Amount != core.Rupees(450) {
		t.Fatalf("filter: %+v", got)
	}
	if _, err := l.AddExpense(core.Expense{Description: "", Amount: core.Rupees(1)}); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("empty description: %v", err)
	}
	if err := l.DeleteExpense(e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := l.DeleteExpense(e.ID); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("second delete: %v", err)
	}

	c, err := l.AddContribution(core.Contribution{ContributorName: "Shop", Purpose: "Tournament prizes", Amount: core.Rupees(1000)})
	if err != nil {
		t.Fatalf("add contribution: %v", err)
	}
	if c.Type != core.ContributionMember {
		t.Fatalf("default type: %q", c.Type)
	}
	c.Type = core.ContributionSponsorship
	if _, err := l.UpdateContribution(c.ID, c); err != nil {
		t.Fatalf("update contribution: %v", err)
	}
	if got := l.Contributions(ContributionFilter{Type: core.ContributionSponsorship}); len(got) != 1 {
		t.Fatalf("filter contributions: %+v", got)
	}
	if _, err := l.UpdateContribution(999, c); !errors.Is(err, core.ErrContributionNotFound) {
		t.Fatalf("update unknown: %v", err)
	}
	if err := l.DeleteContribution(c.ID); err != nil {
		t.Fatalf("delete contribution: %v", err)
	}
}

func TestGenerateInvoice(t *testing.T) {
	l := newTestLedger(t)
	m := mustAddMember(t, l, "Asha", "A-12", 3000)
	if _, err := l.CollectFee(m.ID, core.AnnualFeeType(2023), core.Rupees(500), core.Date{}); err != nil {
		t.Fatalf("collect: %v", err)
	}

	inv, err := l.GenerateInvoice(m.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(inv.Items) != 2 || inv.Total != core.Rupees(1000) {
		t.Fatalf("unexpected invoice %+v", inv)
	}
	if want := fmt.Sprintf("INV-%d", inv.ID); inv.InvoiceNumber != want {
		t.Fatalf("invoice number %q", inv.InvoiceNumber)
	}

	for _, y := range []int{2024, 2025} {
		if _, err := l.CollectFee(m.ID, core.AnnualFeeType(y), core.Rupees(500), core.Date{}); err != nil {
			t.Fatalf("collect %d: %v", y, err)
		}
	}
	if _, err := l.GenerateInvoice(m.ID); !errors.Is(err, core.ErrNothingDue) {
		t.Fatalf("expected nothing due, got %v", err)
	}
	if unpaid, _ := l.HasUnpaidFees(m.ID); unpaid {
		t.Fatalf("member has paid every active year")
	}
	if err := l.DeleteInvoice(inv.ID); err != nil {
		t.Fatalf("delete invoice: %v", err)
	}
	if err := l.DeleteInvoice(inv.ID); !errors.Is(err, core.ErrInvoiceNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
