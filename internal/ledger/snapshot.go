package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"ttclub/internal/core"
)

var (
	requiredArrays = []string{"members", "transactions", "invoices", "activities", "expenses", "contributions"}
	optionalArrays = []string{"pendingFees", "feeYears"}
)

// Snapshot copies the full state. ExportDate and Version are left empty.
func (l *Ledger) Snapshot() core.Snapshot {
	members := make([]core.Member, len(l.members))
	for i, m := range l.members {
		members[i] = m.Clone()
	}
	return core.Snapshot{
		Members:       members,
		Transactions:  l.Transactions(),
		Invoices:      l.Invoices(),
		Activities:    l.Activities(),
		Expenses:      append([]core.Expense{}, l.expenses...),
		Contributions: append([]core.Contribution{}, l.contributions...),
		PendingFees:   l.PendingFees(),
		FeeYears:      l.FeeYears(),
		Settings:      l.settings,
	}
}

// Export returns the state stamped with the export time and format version.
func (l *Ledger) Export() core.Snapshot {
	s := l.Snapshot()
	s.ExportDate = l.clock()
	s.Version = core.SnapshotVersion
	return s
}

// ExportJSON renders Export as indented JSON.
func (l *Ledger) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(l.Export(), "", "  ")
}

// Import validates a JSON document and, only if it is well formed, replaces
// the entire ledger with it.
func (l *Ledger) Import(data []byte) error {
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	return l.Restore(snap)
}

// DecodeSnapshot checks the document shape before decoding: every required
// collection must be present as an array, optional collections must be arrays
// when given and settings must be an object.
func DecodeSnapshot(data []byte) (core.Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", core.ErrMalformedImport, err)
	}
	for _, key := range requiredArrays {
		v, ok := raw[key]
		if !ok || !isJSONArray(v) {
			return core.Snapshot{}, fmt.Errorf("%w: %q must be an array", core.ErrMalformedImport, key)
		}
	}
	for _, key := range optionalArrays {
		if v, ok := raw[key]; ok && !isJSONNull(v) && !isJSONArray(v) {
			return core.Snapshot{}, fmt.Errorf("%w: %q must be an array", core.ErrMalformedImport, key)
		}
	}
	if v, ok := raw["settings"]; ok && !isJSONNull(v) && !bytes.HasPrefix(bytes.TrimSpace(v), []byte("{")) {
		return core.Snapshot{}, fmt.Errorf("%w: \"settings\" must be an object", core.ErrMalformedImport)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", core.ErrMalformedImport, err)
	}
	return snap, nil
}

func isJSONArray(v json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(v), []byte("["))
}

func isJSONNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Restore replaces the ledger with snap after normalizing it: missing
// collections become empty, fee years are inferred from member balances when
// the snapshot carries none, and member totals are recomputed.
func (l *Ledger) Restore(snap core.Snapshot) error {
	settings := snap.Settings
	if settings == (core.Settings{}) {
		settings = core.DefaultSettings(l.clock().Year())
	}
	feeYears := snap.FeeYears
	if feeYears == nil {
		feeYears = inferFeeYears(snap.Members, settings.DefaultAnnualFee)
	}
	seen := make(map[int]bool, len(feeYears))
	for _, fy := range feeYears {
		if err := fy.Validate(); err != nil {
			return fmt.Errorf("%w: fee year %d: %v", core.ErrMalformedImport, fy.Year, err)
		}
		if seen[fy.Year] {
			return fmt.Errorf("%w: fee year %d listed twice", core.ErrMalformedImport, fy.Year)
		}
		seen[fy.Year] = true
	}

	if err := validateMembers(snap.Members); err != nil {
		return err
	}

	next := &Ledger{now: l.now, settings: settings}
	next.resetEmpty()
	next.feeYears = append(next.feeYears, feeYears...)
	slices.SortFunc(next.feeYears, func(a, b core.FeeYear) int { return a.Year - b.Year })

	for _, m := range snap.Members {
		m = m.Clone()
		for y := range m.AnnualFees {
			if !seen[y] {
				delete(m.AnnualFees, y)
			}
		}
		for _, fy := range next.feeYears {
			if _, ok := m.AnnualFees[fy.Year]; !ok {
				m.AnnualFees[fy.Year] = core.Money{}
			}
		}
		next.members = append(next.members, m)
	}
	next.recomputeAllTotals()

	next.transactions = append(next.transactions, snap.Transactions...)
	next.invoices = append(next.invoices, snap.Invoices...)
	next.activities = append(next.activities, snap.Activities...)
	next.expenses = append(next.expenses, snap.Expenses...)
	next.contributions = append(next.contributions, snap.Contributions...)
	next.pendingFees = append(next.pendingFees, snap.PendingFees...)
	next.lastID = next.maxID()

	next.revision = l.revision + 1
	*l = *next
	return nil
}

// validateMembers applies the same rules as AddMember to every imported
// member and requires unique, non-zero ids.
func validateMembers(members []core.Member) error {
	ids := make(map[int64]bool, len(members))
	for i, m := range members {
		if m.ID == 0 {
			return fmt.Errorf("%w: member %d has no id", core.ErrMalformedImport, i+1)
		}
		if ids[m.ID] {
			return fmt.Errorf("%w: member id %d listed twice", core.ErrMalformedImport, m.ID)
		}
		ids[m.ID] = true
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: member %d: %v", core.ErrMalformedImport, m.ID, err)
		}
		for y, v := range m.AnnualFees {
			if v.IsNegative() {
				return fmt.Errorf("%w: member %d annual fee %d: %v", core.ErrMalformedImport, m.ID, y, core.ErrNegativeAmount)
			}
		}
	}
	return nil
}

func inferFeeYears(members []core.Member, amount core.Money) []core.FeeYear {
	years := map[int]bool{}
	for _, m := range members {
		for y := range m.AnnualFees {
			years[y] = true
		}
	}
	out := make([]core.FeeYear, 0, len(years))
	for y := range years {
		out = append(out, core.FeeYear{
			Year:        y,
			Amount:      amount,
			Description: defaultFeeYearDescription(y),
			IsActive:    true,
		})
	}
	return out
}

func (l *Ledger) maxID() int64 {
	var highest int64
	bump := func(id int64) {
		if id > highest {
			highest = id
		}
	}
	for _, x := range l.members {
		bump(x.ID)
	}
	for _, x := range l.transactions {
		bump(x.ID)
	}
	for _, x := range l.invoices {
		bump(x.ID)
	}
	for _, x := range l.activities {
		bump(x.ID)
	}
	for _, x := range l.expenses {
		bump(x.ID)
	}
	for _, x := range l.contributions {
		bump(x.ID)
	}
	for _, x := range l.pendingFees {
		bump(x.ID)
	}
	return highest
}
