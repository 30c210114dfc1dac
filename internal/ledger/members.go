package ledger

import (
	"fmt"
	"slices"
	"strings"

	"ttclub/internal/core"
)

// MemberInput carries the editable member fields. A nil IsActive keeps the
// current flag on update and derives it from the status on add.
type MemberInput struct {
	Name          string     `json:"name"`
	VillaNo       string     `json:"villaNo"`
	Status        string     `json:"status"`
	MembershipFee core.Money `json:"membershipFee"`
	PendingAmount core.Money `json:"pendingAmount"`
	IsActive      *bool      `json:"isActive,omitempty"`
}

type MemberFilter struct {
	Search string // matches name or villa, case-insensitive
	Status string
}

func (f MemberFilter) match(m core.Member) bool {
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.VillaNo), q)
}

func (l *Ledger) AddMember(in MemberInput) (core.Member, error) {
	m := core.Member{
		Name:          strings.TrimSpace(in.Name),
		VillaNo:       strings.TrimSpace(in.VillaNo),
		Status:        strings.TrimSpace(in.Status),
		MembershipFee: in.MembershipFee,
		PendingAmount: in.PendingAmount,
		AnnualFees:    make(map[int]core.Money, len(l.feeYears)),
		JoinDate:      l.today(),
		IsActive:      !strings.HasSuffix(in.Status, core.InactiveSuffix),
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	m.ID = l.nextID()
	for _, fy := range l.feeYears {
		m.AnnualFees[fy.Year] = core.Money{}
	}
	l.recomputeTotal(&m)
	l.members = append(l.members, m)
	l.record(ActivityMemberAdded, fmt.Sprintf("Added new member: %s (Villa %s)", m.Name, m.VillaNo))
	return m.Clone(), nil
}

func (l *Ledger) UpdateMember(id int64, in MemberInput) (core.Member, error) {
	i := l.memberIndex(id)
	if i < 0 {
		return core.Member{}, fmt.Errorf("%w: id %d", core.ErrMemberNotFound, id)
	}
	m := l.members[i].Clone()
	m.Name = strings.TrimSpace(in.Name)
	m.VillaNo = strings.TrimSpace(in.VillaNo)
	m.Status = strings.TrimSpace(in.Status)
	m.MembershipFee = in.MembershipFee
	m.PendingAmount = in.PendingAmount
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	l.recomputeTotal(&m)
	l.members[i] = m
	l.record(ActivityMemberUpdated, fmt.Sprintf("Updated member: %s", m.Name))
	return m.Clone(), nil
}

// DeleteMember removes the member. Transactions and pending fees that point
// at it are kept.
func (l *Ledger) DeleteMember(id int64) error {
	i := l.memberIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: id %d", core.ErrMemberNotFound, id)
	}
	name := l.members[i].Name
	l.members = slices.Delete(l.members, i, i+1)
	l.record(ActivityMemberDeleted, fmt.Sprintf("Deleted member: %s", name))
	return nil
}

func (l *Ledger) Member(id int64) (core.Member, error) {
	i := l.memberIndex(id)
	if i < 0 {
		return core.Member{}, fmt.Errorf("%w: id %d", core.ErrMemberNotFound, id)
	}
	return l.members[i].Clone(), nil
}

func (l *Ledger) Members(f MemberFilter) []core.Member {
	out := make([]core.Member, 0, len(l.members))
	for _, m := range l.members {
		if f.match(m) {
			out = append(out, m.Clone())
		}
	}
	return out
}

func (l *Ledger) memberIndex(id int64) int {
	return slices.IndexFunc(l.members, func(m core.Member) bool { return m.ID == id })
}

// recomputeTotal restores totalPaid = membershipFee + the member's fees for
// every configured fee year.
func (l *Ledger) recomputeTotal(m *core.Member) {
	total := m.MembershipFee
	for _, fy := range l.feeYears {
		total = total.Add(m.AnnualFees[fy.Year])
	}
	m.TotalPaid = total
}

func (l *Ledger) recomputeAllTotals() {
	for i := range l.members {
		l.recomputeTotal(&l.members[i])
	}
}
