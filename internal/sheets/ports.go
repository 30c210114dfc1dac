// Package sheets defines the outbound port for mirroring the ledger into a
// spreadsheet. The mirror is read-only for the club: the ledger stays the
// book of record and every sync rewrites the sheets from a snapshot.
package sheets

import (
	"context"

	"ttclub/internal/core"
	"ttclub/internal/ledger"
)

// Result reports how many data rows (header excluded) each sheet received.
type Result struct {
	MemberRows int
	TxRows     int
}

// Mirror writes a full copy of a snapshot to the spreadsheet.
type Mirror interface {
	Mirror(ctx context.Context, snap core.Snapshot) (Result, error)
}

// Tables lays a snapshot out as the members and transactions sheets, header
// row first.
func Tables(snap core.Snapshot) (members, transactions [][]string) {
	return ledger.MemberTable(snap), ledger.TransactionTable(snap)
}

// ResultOf counts data rows in the two tables.
func ResultOf(members, transactions [][]string) Result {
	return Result{MemberRows: max(len(members)-1, 0), TxRows: max(len(transactions)-1, 0)}
}
