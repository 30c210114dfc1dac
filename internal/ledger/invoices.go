package ledger

import (
	"fmt"
	"slices"

	"ttclub/internal/core"
)

// GenerateInvoice bills a member for every active fee year they have not paid,
// at the year's configured amount.
func (l *Ledger) GenerateInvoice(memberID int64) (core.Invoice, error) {
	i := l.memberIndex(memberID)
	if i < 0 {
		return core.Invoice{}, fmt.Errorf("%w: id %d", core.ErrMemberNotFound, memberID)
	}
	m := l.members[i]

	var items []core.InvoiceItem
	var total core.Money
	for _, fy := range l.unpaidYears(m) {
		items = append(items, core.InvoiceItem{Description: fy.Description, Amount: fy.Amount})
		total = total.Add(fy.Amount)
	}
	if len(items) == 0 {
		return core.Invoice{}, fmt.Errorf("%w: %s", core.ErrNothingDue, m.Name)
	}

	today := l.today()
	id := l.nextID()
	inv := core.Invoice{
		ID:            id,
		InvoiceNumber: fmt.Sprintf("INV-%d", id),
		MemberID:      m.ID,
		MemberName:    m.Name,
		MemberVilla:   m.VillaNo,
		Items:         items,
		Total:         total,
		Date:          today,
		Status:        core.InvoiceGenerated,
	}
	l.invoices = append(l.invoices, inv)
	l.record(ActivityInvoiceGenerated, fmt.Sprintf("Generated invoice %s for %s (%s)", inv.InvoiceNumber, m.Name, total))
	return inv, nil
}

func (l *Ledger) DeleteInvoice(id int64) error {
	i := slices.IndexFunc(l.invoices, func(inv core.Invoice) bool { return inv.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: id %d", core.ErrInvoiceNotFound, id)
	}
	inv := l.invoices[i]
	l.invoices = slices.Delete(l.invoices, i, i+1)
	l.record(ActivityInvoiceDeleted, fmt.Sprintf("Deleted invoice %s", inv.InvoiceNumber))
	return nil
}

func (l *Ledger) Invoices() []core.Invoice {
	return append([]core.Invoice{}, l.invoices...)
}

// unpaidYears lists active fee years where the member's amount is still zero.
func (l *Ledger) unpaidYears(m core.Member) []core.FeeYear {
	var out []core.FeeYear
	for _, fy := range l.feeYears {
		if fy.IsActive && m.AnnualFees[fy.Year].IsZero() {
			out = append(out, fy)
		}
	}
	return out
}
