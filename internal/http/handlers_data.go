package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ttclub/internal/cache"
	"ttclub/internal/core"
	"ttclub/internal/ledger"
	"ttclub/internal/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// renderedExport loads an export for the current revision, rendering it at
// most once per revision.
func (s *Server) renderedExport(kind string, render func(core.Snapshot) ([]byte, error)) ([]byte, error) {
	return s.exports.GetOrLoad(cache.Key(kind, s.svc.Revision()), func() ([]byte, error) {
		snap, rev := s.svc.Export()
		s.logger.Debug("Rendering export",
			log.FieldOperation, log.OpExport,
			log.FieldRevision, rev,
			"kind", kind)
		return render(snap)
	})
}

func renderJSON(snap core.Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

func renderTable(table func(core.Snapshot) [][]string) func(core.Snapshot) ([]byte, error) {
	return func(snap core.Snapshot) ([]byte, error) {
		var buf bytes.Buffer
		if err := ledger.WriteTable(&buf, table(snap)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	body, err := s.renderedExport("json", renderJSON)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stamp := s.now().UTC().Format("2006-01-02T15-04-05")
	NewResponse().
		Raw(contentTypeJSON, body).
		Attachment("ttclub_database_" + stamp + ".json").
		Write(w)
}

func (s *Server) handleExportMembersCSV(w http.ResponseWriter, r *http.Request) {
	body, err := s.renderedExport("members.csv", renderTable(ledger.MemberTable))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Raw(contentTypeCSV, body).Attachment("tt_club_members.csv").Write(w)
}

func (s *Server) handleExportTransactionsCSV(w http.ResponseWriter, r *http.Request) {
	body, err := s.renderedExport("transactions.csv", renderTable(ledger.TransactionTable))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Raw(contentTypeCSV, body).Attachment("tt_club_transactions.csv").Write(w)
}

type importResponse struct {
	Revision     int64 `json:"revision"`
	Members      int   `json:"members"`
	Transactions int   `json:"transactions"`
}

// handleImport replaces the whole ledger with the posted document. A
// malformed document leaves the ledger unchanged.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readImport(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Import(r.Context(), body); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Import rejected",
			log.FieldOperation, log.OpImport,
			log.FieldError, err.Error())
		writeError(w, r, err)
		return
	}
	snap, rev := s.svc.Export()
	writeJSON(w, http.StatusOK, importResponse{
		Revision:     rev,
		Members:      len(snap.Members),
		Transactions: len(snap.Transactions),
	})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		NotFoundError("snapshot history is only kept by the sqlite backend").Write(w)
		return
	}
	limit, err := queryInt(r.URL.Query(), "limit", 20)
	if err != nil {
		writeError(w, r, err)
		return
	}
	infos, err := s.history.ListSnapshots(r.Context(), limit)
	if err != nil {
		writeError(w, r, fmt.Errorf("list snapshots: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

type syncStatusResponse struct {
	Synced     bool       `json:"synced"`
	SnapshotID int64      `json:"snapshotId,omitempty"`
	SyncedAt   *time.Time `json:"syncedAt,omitempty"`
	MemberRows int        `json:"memberRows,omitempty"`
	TxRows     int        `json:"transactionRows,omitempty"`
}

// handleSyncStatus reports the last spreadsheet mirror run recorded by the
// worker.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		NotFoundError("sync status is only kept by the sqlite backend").Write(w)
		return
	}
	rec, ok, err := s.history.LastSync(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("read sync status: %w", err))
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, syncStatusResponse{})
		return
	}
	writeJSON(w, http.StatusOK, syncStatusResponse{
		Synced:     true,
		SnapshotID: rec.SnapshotID,
		SyncedAt:   &rec.SyncedAt,
		MemberRows: rec.MemberRows,
		TxRows:     rec.TxRows,
	})
}
