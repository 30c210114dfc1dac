package http

import "net/http"

// handleActivities returns the whole log oldest first, or the newest ?limit
// entries newest first.
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query(), "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit == 0 {
		writeJSON(w, http.StatusOK, s.svc.Activities())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.RecentActivities(limit))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Dashboard())
}

func (s *Server) handleFinancialReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.FinancialSummary())
}

func (s *Server) handleMemberReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.MemberStatistics())
}

func (s *Server) handleExpenseReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ExpenseSummary())
}

func (s *Server) handleContributionReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ContributionSummary())
}
