package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Member statuses used by the club roster. Status is free text; these are the
// values the statistics recognise.
const (
	StatusFounding = "FOUNDING MEMBER"
	StatusNew      = "NEW MEMBER"
	StatusApproved = "APPROVED FOR MEMBERSHIP"

	InactiveSuffix = "(Inactive)"
)

// Expense statuses.
const (
	ExpensePaid    = "Paid"
	ExpensePending = "Pending"
)

// Contribution types.
const (
	ContributionMember      = "Member"
	ContributionExternal    = "External"
	ContributionDonation    = "Donation"
	ContributionSponsorship = "Sponsorship"
)

const (
	PendingStatus    = "Pending"
	InvoiceGenerated = "Generated"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Member struct {
		ID            int64         `json:"id"`
		Name          string        `json:"name"`
		VillaNo       string        `json:"villaNo"`
		Status        string        `json:"status"`
		MembershipFee Money         `json:"membershipFee"`
		AnnualFees    map[int]Money `json:"annualFees"`
		TotalPaid     Money         `json:"totalPaid"`
		JoinDate      Date          `json:"joinDate"`
		IsActive      bool          `json:"isActive"`
		// PendingAmount is the membership balance still owed. It is not
		// part of TotalPaid.
		PendingAmount Money         `json:"pendingAmount"`
	}

	FeeYear struct {
		Year        int    `json:"year"`
		Amount      Money  `json:"amount"`
		Description string `json:"description"`
		IsActive    bool   `json:"isActive"`
	}

	Transaction struct {
		ID               int64     `json:"id"`
		MemberID         int64     `json:"memberId"`
		MemberName       string    `json:"memberName"`
		Type             FeeType   `json:"type"`
		Amount           Money     `json:"amount"`
		Date             Date      `json:"date"`
		Timestamp        time.Time `json:"timestamp"`
		FromPending      bool      `json:"fromPending,omitempty"`
		PendingFeeID     int64     `json:"pendingFeeId,omitempty"`
		IsAdjustment     bool      `json:"isAdjustment,omitempty"`
		AdjustmentReason string    `json:"adjustmentReason,omitempty"`
		AdjustmentNotes  string    `json:"adjustmentNotes,omitempty"`
		OriginalAmount   *Money    `json:"originalAmount,omitempty"`
		NewAmount        *Money    `json:"newAmount,omitempty"`
	}

	PendingFee struct {
		ID          int64     `json:"id"`
		MemberID    int64     `json:"memberId"`
		MemberName  string    `json:"memberName"`
		MemberVilla string    `json:"memberVilla"`
		FeeType     FeeType   `json:"feeType"`
		Amount      Money     `json:"amount"`
		DueDate     Date      `json:"dueDate"`
		Notes       string    `json:"notes"`
		Status      string    `json:"status"`
		CreatedDate Date      `json:"createdDate"`
		Timestamp   time.Time `json:"timestamp"`
	}

	Expense struct {
		ID          int64     `json:"id"`
		Date        Date      `json:"date"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Amount      Money     `json:"amount"`
		PaidBy      string    `json:"paidBy"`
		Status      string    `json:"status"`
		Receipt     string    `json:"receipt"`
		Timestamp   time.Time `json:"timestamp"`
	}

	Contribution struct {
		ID              int64     `json:"id"`
		Date            Date      `json:"date"`
		ContributorName string    `json:"contributorName"`
		Location        string    `json:"location"`
		Type            string    `json:"type"`
		Purpose         string    `json:"purpose"`
		Amount          Money     `json:"amount"`
		Receipt         string    `json:"receipt"`
		Timestamp       time.Time `json:"timestamp"`
	}

	InvoiceItem struct {
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
	}

	Invoice struct {
		ID            int64         `json:"id"`
		InvoiceNumber string        `json:"invoiceNumber"`
		MemberID      int64         `json:"memberId"`
		MemberName    string        `json:"memberName"`
		MemberVilla   string        `json:"memberVilla"`
		Items         []InvoiceItem `json:"items"`
		Total         Money         `json:"total"`
		Date          Date          `json:"date"`
		Status        string        `json:"status"`
	}

	Activity struct {
		ID          int64     `json:"id"`
		Type        string    `json:"type"`
		Description string    `json:"description"`
		Timestamp   time.Time `json:"timestamp"`
	}

	Settings struct {
		ClubName             string `json:"clubName"`
		DefaultMembershipFee Money  `json:"defaultMembershipFee"`
		DefaultAnnualFee     Money  `json:"defaultAnnualFee"`
		CurrentYear          int    `json:"currentYear"`
	}
)

// Error kinds. Every sentinel below wraps exactly one of these so callers can
// branch on the kind with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("already exists")
	ErrValidation      = errors.New("validation failed")
	ErrMalformedImport = errors.New("malformed import")
	ErrConflict        = errors.New("conflict")
)

var (
	ErrMemberNotFound       = fmt.Errorf("member %w", ErrNotFound)
	ErrFeeYearNotFound      = fmt.Errorf("fee year %w", ErrNotFound)
	ErrPendingFeeNotFound   = fmt.Errorf("pending fee %w", ErrNotFound)
	ErrExpenseNotFound      = fmt.Errorf("expense %w", ErrNotFound)
	ErrContributionNotFound = fmt.Errorf("contribution %w", ErrNotFound)
	ErrInvoiceNotFound      = fmt.Errorf("invoice %w", ErrNotFound)

	ErrDuplicateFeeYear    = fmt.Errorf("fee year %w", ErrDuplicate)
	ErrDuplicatePendingFee = fmt.Errorf("pending fee for this member and fee type %w", ErrDuplicate)

	ErrNegativeAmount   = fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyName        = fmt.Errorf("%w: name is required", ErrValidation)
	ErrEmptyDescription = fmt.Errorf("%w: description is required", ErrValidation)
	ErrInvalidYear      = fmt.Errorf("%w: invalid fee year", ErrValidation)
	ErrInvalidFeeType   = fmt.Errorf("%w: invalid fee type", ErrValidation)
	ErrInvalidDate      = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrNothingDue       = fmt.Errorf("%w: member has no unpaid fees", ErrValidation)

	ErrFeeYearHasPayments = fmt.Errorf("%w: members have already paid for this fee year", ErrConflict)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD date. Full RFC 3339 timestamps are accepted and
// truncated to their day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// SameMonth reports whether d falls in the same calendar month as t.
func (d Date) SameMonth(t time.Time) bool {
	return !d.IsZero() && d.Year() == t.Year() && d.Month() == t.Month()
}

// DefaultSettings mirrors the club's out-of-the-box configuration.
func DefaultSettings(currentYear int) Settings {
	return Settings{
		ClubName:             "Table Tennis Club",
		DefaultMembershipFee: Rupees(3000),
		DefaultAnnualFee:     Rupees(500),
		CurrentYear:          currentYear,
	}
}

// Clone returns a deep copy of the member.
func (m Member) Clone() Member {
	fees := make(map[int]Money, len(m.AnnualFees))
	for y, v := range m.AnnualFees {
		fees[y] = v
	}
	m.AnnualFees = fees
	return m
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if m.MembershipFee.IsNegative() || m.PendingAmount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (f FeeYear) Validate() error {
	if f.Year <= 0 {
		return ErrInvalidYear
	}
	if f.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// FeeType returns the annual fee key for this year.
func (f FeeYear) FeeType() FeeType {
	return AnnualFeeType(f.Year)
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	}
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (c Contribution) Validate() error {
	if strings.TrimSpace(c.ContributorName) == "" {
		return ErrEmptyName
	}
	if c.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// IsExternal reports whether the contribution came from outside the membership.
func (c Contribution) IsExternal() bool {
	switch c.Type {
	case ContributionExternal, ContributionDonation, ContributionSponsorship:
		return true
	}
	return false
}
