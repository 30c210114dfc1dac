package core

import "time"

// Snapshot is the whole ledger as one JSON document. It is the import/export
// format and the unit the storage backends persist.
type Snapshot struct {
	Members       []Member       `json:"members"`
	Transactions  []Transaction  `json:"transactions"`
	Invoices      []Invoice      `json:"invoices"`
	Activities    []Activity     `json:"activities"`
	Expenses      []Expense      `json:"expenses"`
	Contributions []Contribution `json:"contributions"`
	PendingFees   []PendingFee   `json:"pendingFees"`
	FeeYears      []FeeYear      `json:"feeYears"`
	Settings      Settings       `json:"settings"`
	ExportDate    time.Time      `json:"exportDate"`
	Version       string         `json:"version"`
}

// SnapshotVersion is written into every export.
const SnapshotVersion = "2.0"

// Dashboard is the headline view of the club's finances.
type Dashboard struct {
	TotalMembers       int        `json:"totalMembers"`
	ActiveMembers      int        `json:"activeMembers"`
	TotalCollected     Money      `json:"totalCollected"`
	TotalContributions Money      `json:"totalContributions"`
	TotalExpenses      Money      `json:"totalExpenses"`
	NetBalance         Money      `json:"netBalance"`
	PendingPayments    int        `json:"pendingPayments"`
	PendingAmount      Money      `json:"pendingAmount"`
	RecentActivities   []Activity `json:"recentActivities"`
}

// FeeYearSummary reports collection progress for one fee year.
type FeeYearSummary struct {
	Year          int    `json:"year"`
	Description   string `json:"description"`
	IsActive      bool   `json:"isActive"`
	Amount        Money  `json:"amount"`
	Collected     Money  `json:"collected"`
	PaidCount     int    `json:"paidCount"`
	PendingCount  int    `json:"pendingCount"`
	PendingAmount Money  `json:"pendingAmount"`
}

type FinancialSummary struct {
	MembershipFees     Money         `json:"membershipFees"`
	AnnualFees         map[int]Money `json:"annualFees"`
	TotalMemberFees    Money         `json:"totalMemberFees"`
	TotalContributions Money         `json:"totalContributions"`
	TotalExpenses      Money         `json:"totalExpenses"`
	TotalIncome        Money         `json:"totalIncome"`
	NetBalance         Money         `json:"netBalance"`
	PendingAmount      Money         `json:"pendingAmount"`
	MembershipBalance  Money         `json:"membershipBalance"`
}

type MemberStatistics struct {
	Total    int `json:"total"`
	Founding int `json:"founding"`
	New      int `json:"new"`
	Approved int `json:"approved"`
	Inactive int `json:"inactive"`
}

type ExpenseSummary struct {
	Total                 Money `json:"total"`
	ThisMonth             Money `json:"thisMonth"`
	PendingReimbursements Money `json:"pendingReimbursements"`
}

type ContributionSummary struct {
	Total    Money `json:"total"`
	Member   Money `json:"member"`
	External Money `json:"external"`
}
