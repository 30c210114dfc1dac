package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ttclub/internal/core"
)

// MemberTable lays out the roster with one column per configured fee year.
// The first row is the header.
func MemberTable(s core.Snapshot) [][]string {
	header := []string{"Sl No", "Name", "Villa No", "Status", "Membership Fee"}
	for _, fy := range s.FeeYears {
		header = append(header, fmt.Sprintf("Annual Fee %d", fy.Year))
	}
	header = append(header, "Total Paid", "Join Date", "Active")

	rows := [][]string{header}
	for i, m := range s.Members {
		row := []string{strconv.Itoa(i + 1), m.Name, m.VillaNo, m.Status, m.MembershipFee.Plain()}
		for _, fy := range s.FeeYears {
			row = append(row, m.AnnualFees[fy.Year].Plain())
		}
		active := "No"
		if m.IsActive {
			active = "Yes"
		}
		row = append(row, m.TotalPaid.Plain(), m.JoinDate.String(), active)
		rows = append(rows, row)
	}
	return rows
}

// TransactionTable lists every transaction with the member's current villa.
func TransactionTable(s core.Snapshot) [][]string {
	villas := make(map[int64]string, len(s.Members))
	for _, m := range s.Members {
		villas[m.ID] = m.VillaNo
	}
	rows := [][]string{{"Transaction ID", "Date", "Member Name", "Villa No", "Fee Type", "Amount"}}
	for _, t := range s.Transactions {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Date.String(),
			t.MemberName,
			villas[t.MemberID],
			t.Type.Display(),
			t.Amount.Plain(),
		})
	}
	return rows
}

func (l *Ledger) WriteMembersCSV(w io.Writer) error {
	return WriteTable(w, MemberTable(l.Snapshot()))
}

func (l *Ledger) WriteTransactionsCSV(w io.Writer) error {
	return WriteTable(w, TransactionTable(l.Snapshot()))
}

// WriteTable writes rows built by MemberTable or TransactionTable as CSV.
func WriteTable(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
