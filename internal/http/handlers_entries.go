package http

import (
	"net/http"

	"ttclub/internal/core"
	"ttclub/internal/ledger"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, s.svc.Expenses(ledger.ExpenseFilter{
		Search:   queryString(q, "search"),
		Category: queryString(q, "category"),
		Status:   queryString(q, "status"),
	}))
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var e core.Expense
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.AddExpense(r.Context(), cleanExpense(e))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var e core.Expense
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.svc.UpdateExpense(r.Context(), id, cleanExpense(e))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func cleanExpense(e core.Expense) core.Expense {
	e.Description = sanitizeInput(e.Description)
	e.Category = sanitizeInput(e.Category)
	e.PaidBy = sanitizeInput(e.PaidBy)
	e.Status = sanitizeInput(e.Status)
	e.Receipt = sanitizeInput(e.Receipt)
	return e
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, s.svc.Contributions(ledger.ContributionFilter{
		Search: queryString(q, "search"),
		Type:   queryString(q, "type"),
	}))
}

func (s *Server) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	var c core.Contribution
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.AddContribution(r.Context(), cleanContribution(c))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateContribution(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var c core.Contribution
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.svc.UpdateContribution(r.Context(), id, cleanContribution(c))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteContribution(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteContribution(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func cleanContribution(c core.Contribution) core.Contribution {
	c.ContributorName = sanitizeInput(c.ContributorName)
	c.Location = sanitizeInput(c.Location)
	c.Type = sanitizeInput(c.Type)
	c.Purpose = sanitizeInput(c.Purpose)
	c.Receipt = sanitizeInput(c.Receipt)
	return c
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Invoices())
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteInvoice(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
