package ledger

import (
	"fmt"
	"slices"
	"strings"

	"ttclub/internal/core"
)

type ExpenseFilter struct {
	Search   string
	Category string
	Status   string
}

func (f ExpenseFilter) match(e core.Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return containsFold(f.Search, e.Description, e.PaidBy, e.Category)
}

type ContributionFilter struct {
	Search string
	Type   string
}

func (f ContributionFilter) match(c core.Contribution) bool {
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	return containsFold(f.Search, c.ContributorName, c.Purpose, c.Location)
}

func containsFold(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func (l *Ledger) normalizeExpense(e *core.Expense) error {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)
	e.PaidBy = strings.TrimSpace(e.PaidBy)
	if e.Date.IsZero() {
		e.Date = l.today()
	}
	if e.Status == "" {
		e.Status = core.ExpensePaid
	}
	return e.Validate()
}

func (l *Ledger) AddExpense(e core.Expense) (core.Expense, error) {
	if err := l.normalizeExpense(&e); err != nil {
		return core.Expense{}, err
	}
	e.ID = l.nextID()
	e.Timestamp = l.clock()
	l.expenses = append(l.expenses, e)
	l.record(ActivityExpenseAdded, fmt.Sprintf("Added expense: %s - %s", e.Description, e.Amount))
	return e, nil
}

func (l *Ledger) UpdateExpense(id int64, e core.Expense) (core.Expense, error) {
	i := slices.IndexFunc(l.expenses, func(x core.Expense) bool { return x.ID == id })
	if i < 0 {
		return core.Expense{}, fmt.Errorf("%w: id %d", core.ErrExpenseNotFound, id)
	}
	if err := l.normalizeExpense(&e); err != nil {
		return core.Expense{}, err
	}
	e.ID = id
	e.Timestamp = l.expenses[i].Timestamp
	l.expenses[i] = e
	l.record(ActivityExpenseUpdated, fmt.Sprintf("Updated expense: %s", e.Description))
	return e, nil
}

func (l *Ledger) DeleteExpense(id int64) error {
	i := slices.IndexFunc(l.expenses, func(x core.Expense) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: id %d", core.ErrExpenseNotFound, id)
	}
	e := l.expenses[i]
	l.expenses = slices.Delete(l.expenses, i, i+1)
	l.record(ActivityExpenseDeleted, fmt.Sprintf("Deleted expense: %s", e.Description))
	return nil
}

func (l *Ledger) Expenses(f ExpenseFilter) []core.Expense {
	out := make([]core.Expense, 0, len(l.expenses))
	for _, e := range l.expenses {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Ledger) normalizeContribution(c *core.Contribution) error {
	c.ContributorName = strings.TrimSpace(c.ContributorName)
	c.Location = strings.TrimSpace(c.Location)
	c.Purpose = strings.TrimSpace(c.Purpose)
	if c.Date.IsZero() {
		c.Date = l.today()
	}
	if c.Type == "" {
		c.Type = core.ContributionMember
	}
	return c.Validate()
}

func (l *Ledger) AddContribution(c core.Contribution) (core.Contribution, error) {
	if err := l.normalizeContribution(&c); err != nil {
		return core.Contribution{}, err
	}
	c.ID = l.nextID()
	c.Timestamp = l.clock()
	l.contributions = append(l.contributions, c)
	l.record(ActivityContributionAdded, fmt.Sprintf("Received %s contribution from %s", c.Amount, c.ContributorName))
	return c, nil
}

func (l *Ledger) UpdateContribution(id int64, c core.Contribution) (core.Contribution, error) {
	i := slices.IndexFunc(l.contributions, func(x core.Contribution) bool { return x.ID == id })
	if i < 0 {
		return core.Contribution{}, fmt.Errorf("%w: id %d", core.ErrContributionNotFound, id)
	}
	if err := l.normalizeContribution(&c); err != nil {
		return core.Contribution{}, err
	}
	c.ID = id
	c.Timestamp = l.contributions[i].Timestamp
	l.contributions[i] = c
	l.record(ActivityContributionUpdated, fmt.Sprintf("Updated contribution from %s", c.ContributorName))
	return c, nil
}

func (l *Ledger) DeleteContribution(id int64) error {
	i := slices.IndexFunc(l.contributions, func(x core.Contribution) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: id %d", core.ErrContributionNotFound, id)
	}
	c := l.contributions[i]
	l.contributions = slices.Delete(l.contributions, i, i+1)
	l.record(ActivityContributionDeleted, fmt.Sprintf("Deleted contribution from %s", c.ContributorName))
	return nil
}

func (l *Ledger) Contributions(f ContributionFilter) []core.Contribution {
	out := make([]core.Contribution, 0, len(l.contributions))
	for _, c := range l.contributions {
		if f.match(c) {
			out = append(out, c)
		}
	}
	return out
}
