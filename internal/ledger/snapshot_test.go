package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"ttclub/internal/core"
)

func populatedLedger(t *testing.T) *Ledger {
	t.Helper()
	l := newTestLedger(t)
	a := mustAddMember(t, l, "Asha", "A-12", 3000)
	b := mustAddMember(t, l, "Bala", "B-03", 3000)
	if _, err := l.CollectFee(a.ID, core.AnnualFeeType(2023), core.Rupees(500), core.Date{}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err := l.EditMemberFee(b.ID, 2024, core.Rupees(250), "hardship", "committee approved"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if _, err := l.AddPendingFee(PendingFeeInput{MemberID: b.ID, FeeType: "tournament_fee", Amount: core.Rupees(100)}); err != nil {
		t.Fatalf("pending: %v", err)
	}
	if _, err := l.AddExpense(core.Expense{Description: "Balls", Amount: core.Rupees(400)}); err != nil {
		t.Fatalf("expense: %v", err)
	}
	if _, err := l.AddContribution(core.Contribution{ContributorName: "Shop", Amount: core.Rupees(1000), Type: core.ContributionDonation}); err != nil {
		t.Fatalf("contribution: %v", err)
	}
	if _, err := l.GenerateInvoice(a.ID); err != nil {
		t.Fatalf("invoice: %v", err)
	}
	return l
}

func TestExportImportRoundTrip(t *testing.T) {
	src := populatedLedger(t)
	first, err := src.ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newTestLedger(t)
	if err := dst.Import(first); err != nil {
		t.Fatalf("import: %v", err)
	}
	second, err := dst.ExportJSON()
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("round trip changed the document:\n%s\n---\n%s", first, second)
	}
	checkTotals(t, dst)

	// New ids continue after the imported ones.
	m, err := dst.AddMember(MemberInput{Name: "Chitra"})
	if err != nil {
		t.Fatalf("add after import: %v", err)
	}
	if m.ID <= src.lastID {
		t.Fatalf("id %d collides with imported ids (max %d)", m.ID, src.lastID)
	}
}

func TestExportMetadata(t *testing.T) {
	l := newTestLedger(t)
	s := l.Export()
	if s.Version != "2.0" || !s.ExportDate.Equal(testNow) {
		t.Fatalf("unexpected metadata %q %v", s.Version, s.ExportDate)
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"members":[]`, `"transactions":[]`, `"pendingFees":[]`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("empty collections must export as arrays, missing %s in %s", key, b)
		}
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":             `{"members": [`,
		"not an object":        `[1,2,3]`,
		"missing members":      `{"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"members not array":    `{"members":{},"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"members null":         `{"members":null,"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"pendingFees object":   `{"members":[],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[],"pendingFees":{}}`,
		"feeYears string":      `{"members":[],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[],"feeYears":"2024"}`,
		"settings array":       `{"members":[],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[],"settings":[]}`,
		"bad member amount":    `{"members":[{"id":1,"name":"A","membershipFee":"lots"}],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"missing transactions": `{"members":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"null member":          `{"members":[null],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"member without id":    `{"members":[{"name":"A"}],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"nameless member":      `{"members":[{"id":1,"name":"  "}],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"negative membership":  `{"members":[{"id":1,"name":"A","membershipFee":-50,"annualFee2024":100}],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"negative annual fee":  `{"members":[{"id":1,"name":"A","annualFees":{"2024":-100}}],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"duplicate member ids": `{"members":[{"id":1,"name":"A"},{"id":1,"name":"B"}],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[]}`,
		"duplicate fee years":  `{"members":[],"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[],"feeYears":[{"year":2024,"amount":500},{"year":2024,"amount":600}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			l := populatedLedger(t)
			before, _ := l.ExportJSON()
			rev := l.Revision()

			err := l.Import([]byte(doc))
			if !errors.Is(err, core.ErrMalformedImport) {
				t.Fatalf("expected ErrMalformedImport, got %v", err)
			}
			after, _ := l.ExportJSON()
			if !bytes.Equal(before, after) || l.Revision() != rev {
				t.Fatalf("failed import must leave the ledger untouched")
			}
		})
	}
}

func TestImportLegacyDocument(t *testing.T) {
	doc := `{
		"members": [
			{"id": 1700000000001, "name": "Asha", "villaNo": "A-12", "status": "FOUNDING MEMBER",
			 "membershipFee": 3000, "annualFee2023": 500, "annualFee2024": 500, "totalPaid": 0,
			 "joinDate": "2023-01-15", "isActive": true},
			{"id": 1700000000002, "name": "Bala", "villaNo": "B-03", "status": "NEW MEMBER",
			 "membershipFee": 3000, "annualFee2024": 0, "totalPaid": 3000,
			 "joinDate": "2024-02-01", "isActive": true}
		],
		"transactions": [
			{"id": 1700000000010, "memberId": 1700000000001, "memberName": "Asha", "type": "annual_fee_2023",
			 "amount": 500, "date": "2023-03-01", "timestamp": "2023-03-01T10:00:00.000Z", "fromPending": true}
		],
		"invoices": [], "activities": [], "expenses": [], "contributions": []
	}`
	l := newTestLedger(t)
	if err := l.Import([]byte(doc)); err != nil {
		t.Fatalf("import: %v", err)
	}

	years := l.FeeYears()
	if len(years) != 2 || years[0].Year != 2023 || years[1].Year != 2024 {
		t.Fatalf("fee years should be inferred from member keys, got %+v", years)
	}
	if years[0].Amount != core.Rupees(500) {
		t.Fatalf("inferred amount = %v", years[0].Amount)
	}
	asha, err := l.Member(1700000000001)
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	if asha.TotalPaid != core.Rupees(4000) {
		t.Fatalf("totalPaid should be recomputed, got %v", asha.TotalPaid)
	}
	bala, _ := l.Member(1700000000002)
	if _, ok := bala.AnnualFees[2023]; !ok {
		t.Fatalf("missing fee-year keys should be filled in")
	}
	if tx := l.Transactions()[0]; tx.Type != core.AnnualFeeType(2023) {
		t.Fatalf("legacy transaction type should normalize, got %q", tx.Type)
	}
	if l.Settings().DefaultMembershipFee != core.Rupees(3000) {
		t.Fatalf("settings should default when absent")
	}
	checkTotals(t, l)

	m, err := l.AddMember(MemberInput{Name: "New"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.ID <= 1700000000010 {
		t.Fatalf("new id %d must exceed imported ids", m.ID)
	}
}

func TestImportDropsUnconfiguredYears(t *testing.T) {
	doc := `{"members":[{"id":1,"name":"A","membershipFee":100,"annualFees":{"2019":50,"2024":70}}],
		"transactions":[],"invoices":[],"activities":[],"expenses":[],"contributions":[],
		"feeYears":[{"year":2024,"amount":500,"description":"Annual Fee 2024","isActive":true}]}`
	l := newTestLedger(t)
	if err := l.Import([]byte(doc)); err != nil {
		t.Fatalf("import: %v", err)
	}
	m, _ := l.Member(1)
	if _, ok := m.AnnualFees[2019]; ok {
		t.Fatalf("unconfigured year should be dropped")
	}
	if m.TotalPaid != core.Rupees(170) {
		t.Fatalf("totalPaid = %v", m.TotalPaid)
	}
}
