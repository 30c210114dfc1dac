package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseFeeType(t *testing.T) {
	cases := []struct {
		in   string
		want FeeType
		ok   bool
	}{
		{"annual_2024", "annual_2024", true},
		{"Annual Fee 2024", "annual_2024", true},
		{"annual_fee_2023", "annual_2023", true},
		{"Membership Fee", FeeTypeMembership, true},
		{"Tournament Fee", "tournament_fee", true},
		{"  Special   Assessment ", "special_assessment", true},
		{"annual_abc", "", false},
		{"", "", false},
		{"  ", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFeeType(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q: got %q (err=%v), want %q", tc.in, got, err, tc.want)
			}
		} else if !errors.Is(err, ErrInvalidFeeType) {
			t.Fatalf("%q: expected ErrInvalidFeeType, got %v", tc.in, err)
		}
	}
}

func TestFeeTypeYear(t *testing.T) {
	if y, ok := AnnualFeeType(2024).Year(); !ok || y != 2024 {
		t.Fatalf("annual year: got %d %v", y, ok)
	}
	if y, ok := AdjustmentFeeType(2023).Year(); !ok || y != 2023 {
		t.Fatalf("adjustment year: got %d %v", y, ok)
	}
	if _, ok := AdjustmentFeeType(2023).AnnualYear(); ok {
		t.Fatalf("adjustment must not count as an annual fee")
	}
	if _, ok := FeeTypeMembership.Year(); ok {
		t.Fatalf("membership fee has no year")
	}
}

func TestFeeTypeLabels(t *testing.T) {
	if got := AnnualFeeType(2025).Label(); got != "Annual Fee 2025" {
		t.Errorf("label: %q", got)
	}
	if got := FeeTypeMembership.Label(); got != "Membership Fee" {
		t.Errorf("label: %q", got)
	}
	if got := AnnualFeeType(2025).Display(); got != "ANNUAL 2025" {
		t.Errorf("display: %q", got)
	}
	if got := AdjustmentFeeType(2025).Display(); got != "FEE ADJUSTMENT_2025" {
		t.Errorf("display: %q", got)
	}
}

func TestMemberLegacyFeeKeys(t *testing.T) {
	raw := `{"id":7,"name":"Asha","villaNo":"A-12","status":"FOUNDING MEMBER",
		"membershipFee":3000,"annualFee2023":500,"annualFee2024":0,"totalPaid":3500,
		"joinDate":"2023-01-15","isActive":true}`
	var m Member
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.AnnualFees[2023] != Rupees(500) {
		t.Fatalf("2023 fee: got %v", m.AnnualFees[2023])
	}
	if fee, ok := m.AnnualFees[2024]; !ok || !fee.IsZero() {
		t.Fatalf("2024 fee should be present and zero, got %v %v", fee, ok)
	}
	if !m.JoinDate.Equal(NewDate(2023, 1, 15).Time) {
		t.Fatalf("join date: got %v", m.JoinDate)
	}
}

func TestMemberAnnualFeesWinOverLegacy(t *testing.T) {
	raw := `{"id":1,"name":"B","annualFees":{"2024":700},"annualFee2024":100}`
	var m Member
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.AnnualFees[2024] != Rupees(700) {
		t.Fatalf("expected annualFees to win, got %v", m.AnnualFees[2024])
	}
}

func TestValidationKinds(t *testing.T) {
	if err := (Member{Name: " "}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name: %v", err)
	}
	if err := (Member{Name: "x", MembershipFee: Money{Cents: -1}}).Validate(); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("negative fee: %v", err)
	}
	if err := (FeeYear{Year: 0}).Validate(); !errors.Is(err, ErrInvalidYear) {
		t.Errorf("zero year: %v", err)
	}
	if err := (Expense{Description: "Balls", Amount: Rupees(10)}).Validate(); err != nil {
		t.Errorf("valid expense: %v", err)
	}
	if !errors.Is(ErrMemberNotFound, ErrNotFound) || !errors.Is(ErrDuplicateFeeYear, ErrDuplicate) {
		t.Errorf("sentinels must wrap their kind")
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-03-04T10:00:00.000Z"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2025, 3, 4).Time) {
		t.Fatalf("got %v", d)
	}
	b, _ := json.Marshal(d)
	if string(b) != `"2025-03-04"` {
		t.Fatalf("marshal: %s", b)
	}
	if err := json.Unmarshal([]byte(`"04/03/2025"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
}
