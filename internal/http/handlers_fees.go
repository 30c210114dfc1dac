package http

import (
	"errors"
	"net/http"

	"ttclub/internal/core"
	"ttclub/internal/ledger"
)

func (s *Server) handleListFeeYears(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.FeeYears())
}

func (s *Server) handleFeeSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.FeeSummary())
}

type feeYearRequest struct {
	Year        int        `json:"year"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
}

func (s *Server) handleAddFeeYear(w http.ResponseWriter, r *http.Request) {
	var req feeYearRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fy, err := s.svc.AddFeeYear(r.Context(), req.Year, req.Amount, sanitizeInput(req.Description))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fy)
}

// handleUpdateFeeYear takes the year from the path; a year in the body is
// ignored.
func (s *Server) handleUpdateFeeYear(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req feeYearRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fy, err := s.svc.UpdateFeeYear(r.Context(), year, req.Amount, sanitizeInput(req.Description))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fy)
}

func (s *Server) handleToggleFeeYear(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fy, err := s.svc.ToggleFeeYear(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fy)
}

func (s *Server) handleFeeYearImpact(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	paid, err := s.svc.FeeYearImpact(year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"year": year, "paidMembers": paid})
}

// handleDeleteFeeYear needs ?force=true once members have paid for the year.
func (s *Server) handleDeleteFeeYear(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	removed, err := s.svc.DeleteFeeYear(r.Context(), year, queryBool(r.URL.Query(), "force"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"year": year, "removedTransactions": removed})
}

func (s *Server) handleListPendingFees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.PendingFees())
}

func (s *Server) handleAddPendingFee(w http.ResponseWriter, r *http.Request) {
	var in ledger.PendingFeeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Notes = sanitizeInput(in.Notes)
	pf, err := s.svc.AddPendingFee(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pf)
}

type collectPendingRequest struct {
	Date core.Date `json:"date"`
}

// handleCollectPendingFee accepts an empty body; the payment is then dated
// today.
func (s *Server) handleCollectPendingFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req collectPendingRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.CollectPendingFee(r.Context(), id, req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleDeletePendingFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.DeletePendingFee(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
