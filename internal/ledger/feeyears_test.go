package ledger

import (
	"errors"
	"strings"
	"testing"

	"ttclub/internal/core"
)

func TestAddFeeYear(t *testing.T) {
	l := newTestLedger(t)
	a := mustAddMember(t, l, "Asha", "A-12", 3000)

	fy, err := l.AddFeeYear(2026, core.Rupees(600), "")
	if err != nil {
		t.Fatalf("add fee year: %v", err)
	}
	if fy.Description != "Annual Fee 2026" || !fy.IsActive {
		t.Fatalf("unexpected fee year %+v", fy)
	}
	got, _ := l.Member(a.ID)
	if fee, ok := got.AnnualFees[2026]; !ok || !fee.IsZero() {
		t.Fatalf("member should get a zero 2026 fee, got %v %v", fee, ok)
	}
	years := l.FeeYears()
	if years[len(years)-1].Year != 2026 {
		t.Fatalf("fee years should stay sorted: %+v", years)
	}
	checkTotals(t, l)

	if _, err := l.AddFeeYear(2026, core.Rupees(600), ""); !errors.Is(err, core.ErrDuplicateFeeYear) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := l.AddFeeYear(2027, core.Money{Cents: -1}, ""); !errors.Is(err, core.ErrNegativeAmount) {
		t.Fatalf("negative: %v", err)
	}
	if _, err := l.AddFeeYear(0, core.Rupees(1), ""); !errors.Is(err, core.ErrInvalidYear) {
		t.Fatalf("zero year: %v", err)
	}
}

func TestCollectNewFeeYearLeavesOtherMembersUnpaid(t *testing.T) {
	l := newTestLedger(t)
	a := mustAddMember(t, l, "Asha", "A-12", 3000)
	b := mustAddMember(t, l, "Bala", "B-03", 3000)
	c := mustAddMember(t, l, "Chitra", "C-07", 0)

	if _, err := l.AddFeeYear(2026, core.Rupees(600), ""); err != nil {
		t.Fatalf("add fee year: %v", err)
	}
	if _, err := l.CollectFee(b.ID, core.AnnualFeeType(2026), core.Rupees(600), core.Date{}); err != nil {
		t.Fatalf("collect: %v", err)
	}

	for _, id := range []int64{a.ID, c.ID} {
		m, _ := l.Member(id)
		if fee := m.AnnualFees[2026]; !fee.IsZero() {
			t.Fatalf("%s should still owe 2026, has %v", m.Name, fee)
		}
	}
	paid, _ := l.Member(b.ID)
	if paid.AnnualFees[2026] != core.Rupees(600) || paid.TotalPaid != core.Rupees(3600) {
		t.Fatalf("collected member = %+v", paid)
	}
	checkTotals(t, l)
}

func TestAddFeeYearKeepsExistingAmounts(t *testing.T) {
	l := newTestLedger(t)
	m := mustAddMember(t, l, "Asha", "A-12", 0)
	if _, err := l.DeleteFeeYear(2025, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Re-adding a year must not disturb other balances.
	if _, err := l.CollectFee(m.ID, core.AnnualFeeType(2024), core.Rupees(500), core.Date{}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err := l.AddFeeYear(2025, core.Rupees(500), ""); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	got, _ := l.Member(m.ID)
	if got.AnnualFees[2024] != core.Rupees(500) || got.TotalPaid != core.Rupees(500) {
		t.Fatalf("unexpected member %+v", got)
	}
}

func TestDeleteFeeYearRequiresForceWhenPaid(t *testing.T) {
	l := newTestLedger(t)
	a := mustAddMember(t, l, "Asha", "A-12", 3000)
	b := mustAddMember(t, l, "Bala", "B-03", 3000)
	if _, err := l.CollectFee(a.ID, core.AnnualFeeType(2023), core.Rupees(500), core.Date{}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err := l.EditMemberFee(b.ID, 2023, core.Rupees(250), "half year", ""); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if _, err := l.CollectFee(a.ID, core.AnnualFeeType(2024), core.Rupees(500), core.Date{}); err != nil {
		t.Fatalf("collect: %v", err)
	}

	impact, err := l.FeeYearImpact(2023)
	if err != nil || impact != 2 {
		t.Fatalf("impact = %d (err=%v), want 2", impact, err)
	}
	rev := l.Revision()
	if _, err := l.DeleteFeeYear(2023, false); !errors.Is(err, core.ErrFeeYearHasPayments) {
		t.Fatalf("expected refusal, got %v", err)
	}
	if l.Revision() != rev {
		t.Fatalf("refused delete must not mutate")
	}

	removed, err := l.DeleteFeeYear(2023, true)
	if err != nil {
		t.Fatalf("forced delete: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed %d transactions, want 2", removed)
	}
	for _, tx := range l.Transactions() {
		if y, ok := tx.Type.Year(); ok && y == 2023 {
			t.Fatalf("transaction for deleted year survived: %+v", tx)
		}
	}
	got, _ := l.Member(a.ID)
	if _, ok := got.AnnualFees[2023]; ok {
		t.Fatalf("2023 key should be gone")
	}
	if got.TotalPaid != core.Rupees(3500) {
		t.Fatalf("totalPaid = %v, want ₹3500", got.TotalPaid)
	}
	if _, err := l.FeeYear(2023); !errors.Is(err, core.ErrFeeYearNotFound) {
		t.Fatalf("fee year should be gone: %v", err)
	}
	checkTotals(t, l)
}

func TestDeleteFeeYearDropsPendingFees(t *testing.T) {
	l := newTestLedger(t)
	m := mustAddMember(t, l, "Asha", "A-12", 3000)
	for _, ft := range []core.FeeType{core.AnnualFeeType(2024), core.AnnualFeeType(2025), "tournament_fee"} {
		if _, err := l.AddPendingFee(PendingFeeInput{MemberID: m.ID, FeeType: ft, Amount: core.Rupees(500)}); err != nil {
			t.Fatalf("add pending %s: %v", ft, err)
		}
	}

	if _, err := l.DeleteFeeYear(2024, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var left []core.FeeType
	for _, p := range l.PendingFees() {
		left = append(left, p.FeeType)
	}
	if len(left) != 2 || left[0] != core.AnnualFeeType(2025) || left[1] != "tournament_fee" {
		t.Fatalf("pending fees after delete = %v", left)
	}
	if _, err := l.CollectFee(m.ID, core.AnnualFeeType(2024), core.Rupees(500), core.Date{}); !errors.Is(err, core.ErrFeeYearNotFound) {
		t.Fatalf("deleted year should not be collectable: %v", err)
	}
	if got := l.RecentActivities(1)[0].Description; !strings.Contains(got, "dropped 1 pending fee(s)") {
		t.Fatalf("activity = %q", got)
	}
	checkTotals(t, l)
}

func TestDeleteFeeYearNotFound(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.DeleteFeeYear(1999, true); !errors.Is(err, core.ErrFeeYearNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestToggleAndUpdateFeeYear(t *testing.T) {
	l := newTestLedger(t)
	mustAddMember(t, l, "Asha", "A-12", 3000)

	before := l.Dashboard()
	if before.PendingPayments != 3 || before.PendingAmount != core.Rupees(1500) {
		t.Fatalf("pending before toggle: %d %v", before.PendingPayments, before.PendingAmount)
	}

	fy, err := l.ToggleFeeYear(2023)
	if err != nil || fy.IsActive {
		t.Fatalf("toggle: %+v %v", fy, err)
	}
	after := l.Dashboard()
	if after.PendingPayments != 2 || after.PendingAmount != core.Rupees(1000) {
		t.Fatalf("inactive years must not count as pending: %d %v", after.PendingPayments, after.PendingAmount)
	}

	fy, err = l.UpdateFeeYear(2024, core.Rupees(750), "Season 2024")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if fy.Amount != core.Rupees(750) || fy.Description != "Season 2024" {
		t.Fatalf("unexpected fee year %+v", fy)
	}
	if _, err := l.UpdateFeeYear(2024, core.Money{Cents: -1}, ""); !errors.Is(err, core.ErrNegativeAmount) {
		t.Fatalf("negative update: %v", err)
	}
	if _, err := l.ToggleFeeYear(1990); !errors.Is(err, core.ErrFeeYearNotFound) {
		t.Fatalf("toggle unknown: %v", err)
	}
}
