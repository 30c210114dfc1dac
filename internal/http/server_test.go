package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"ttclub/internal/core"
	"ttclub/internal/ledger"
	"ttclub/internal/log"
	"ttclub/internal/services"
	"ttclub/internal/storage"
)

type fakeHistory struct {
	healthErr error
	infos     []storage.SnapshotInfo
	last      *storage.SyncRecord
}

func (f *fakeHistory) ListSnapshots(_ context.Context, limit int) ([]storage.SnapshotInfo, error) {
	if limit > 0 && limit < len(f.infos) {
		return f.infos[:limit], nil
	}
	return f.infos, nil
}

func (f *fakeHistory) LastSync(context.Context) (storage.SyncRecord, bool, error) {
	if f.last == nil {
		return storage.SyncRecord{}, false, nil
	}
	return *f.last, true, nil
}

func (f *fakeHistory) HealthCheck(context.Context) error { return f.healthErr }

func newTestServer(t *testing.T, history SnapshotHistory, opts Options) (*Server, *services.LedgerService) {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	svc := services.NewLedgerService(ledger.NewDefault(ledger.WithClock(now)), nil, nil, log.Discard())
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	srv := NewServer(svc, history, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, svc
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	history := &fakeHistory{}
	srv, _ := newTestServer(t, history, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rec.Code, rec.Body)
		}
	}

	history.healthErr = errors.New("database is locked")
	rec := do(srv, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing storage = %d", rec.Code)
	}
	if got := decode[healthResponse](t, rec); got.Checks["storage"] == "ok" {
		t.Fatalf("unexpected checks %+v", got.Checks)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})
	rec := do(srv, http.MethodGet, "/api/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d", rec.Code)
	}
	for _, h := range []string{"X-Request-ID", "Content-Security-Policy", "X-Content-Type-Options"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s header", h)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestMemberFeeFlow(t *testing.T) {
	srv, svc := newTestServer(t, nil, Options{})

	rec := do(srv, http.MethodPost, "/api/members", `{"name":"Asha","villaNo":"A-12","status":"NEW MEMBER","membershipFee":3000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member status=%d body=%s", rec.Code, rec.Body)
	}
	m := decode[core.Member](t, rec)

	target := "/api/members/" + itoa(m.ID)
	rec = do(srv, http.MethodPost, target+"/fees", `{"feeType":"Annual Fee 2024","amount":500,"date":"2024-04-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("collect status=%d body=%s", rec.Code, rec.Body)
	}
	tx := decode[core.Transaction](t, rec)
	if tx.Type != core.AnnualFeeType(2024) || tx.Amount != core.Rupees(500) {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	rec = do(srv, http.MethodPut, target+"/fees/2024", `{"amount":300,"reason":"Hardship waiver"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit fee status=%d body=%s", rec.Code, rec.Body)
	}

	got := decode[core.Member](t, do(srv, http.MethodGet, target, ""))
	if got.TotalPaid != core.Rupees(3300) {
		t.Fatalf("total paid = %s, want ₹3300", got.TotalPaid)
	}

	unpaid := decode[map[string]bool](t, do(srv, http.MethodGet, target+"/unpaid", ""))
	if !unpaid["unpaid"] {
		t.Fatal("2023 and 2025 are still unpaid")
	}

	rec = do(srv, http.MethodPost, target+"/invoices", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("invoice status=%d body=%s", rec.Code, rec.Body)
	}
	inv := decode[core.Invoice](t, rec)
	if len(inv.Items) != 2 || inv.Total != core.Rupees(1000) {
		t.Fatalf("unexpected invoice %+v", inv)
	}

	if rec := do(srv, http.MethodDelete, target, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec.Code)
	}
	if len(svc.Members(ledger.MemberFilter{})) != 0 {
		t.Fatal("member should be gone")
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		kind   string
	}{
		{"unknown member", http.MethodGet, "/api/members/99", "", http.StatusNotFound, "not_found"},
		{"bad id", http.MethodGet, "/api/members/abc", "", http.StatusBadRequest, "bad_request"},
		{"empty name", http.MethodPost, "/api/members", `{"name":"  "}`, http.StatusUnprocessableEntity, "validation"},
		{"broken json", http.MethodPost, "/api/members", `{"name":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, "/api/members", `{"fullName":"x"}`, http.StatusBadRequest, "bad_request"},
		{"empty body", http.MethodPost, "/api/members", "", http.StatusBadRequest, "bad_request"},
		{"invalid amount", http.MethodPost, "/api/fee-years", `{"year":2026,"amount":"abc"}`, http.StatusUnprocessableEntity, "validation"},
		{"duplicate fee year", http.MethodPost, "/api/fee-years", `{"year":2024,"amount":500}`, http.StatusConflict, "duplicate"},
		{"missing fee year", http.MethodPost, "/api/fee-years/1999/toggle", "", http.StatusNotFound, "not_found"},
		{"bad activity limit", http.MethodGet, "/api/activities?limit=x", "", http.StatusBadRequest, "bad_request"},
		{"malformed import", http.MethodPost, "/api/import", `{"members":[]}`, http.StatusBadRequest, "malformed_import"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, tt.method, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if got := decode[errorBody](t, rec); got.Kind != tt.kind || got.Error == "" {
				t.Fatalf("error body = %+v, want kind %q", got, tt.kind)
			}
		})
	}

	if rec := do(srv, http.MethodGet, "/api/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route = %d", rec.Code)
	}
	if rec := do(srv, http.MethodPatch, "/api/members", "{}"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method = %d", rec.Code)
	}
}

func TestDeleteFeeYearRequiresForce(t *testing.T) {
	srv, svc := newTestServer(t, nil, Options{})
	ctx := context.Background()
	m, _ := svc.AddMember(ctx, ledger.MemberInput{Name: "Dev", Status: core.StatusNew})
	if _, err := svc.CollectFee(ctx, m.ID, core.AnnualFeeType(2023), core.Rupees(500), core.Date{}); err != nil {
		t.Fatal(err)
	}

	impact := decode[map[string]int](t, do(srv, http.MethodGet, "/api/fee-years/2023/impact", ""))
	if impact["paidMembers"] != 1 {
		t.Fatalf("impact = %v", impact)
	}
	if rec := do(srv, http.MethodDelete, "/api/fee-years/2023", ""); rec.Code != http.StatusConflict {
		t.Fatalf("delete without force = %d", rec.Code)
	}
	rec := do(srv, http.MethodDelete, "/api/fee-years/2023?force=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("forced delete = %d body=%s", rec.Code, rec.Body)
	}
	if got := decode[map[string]int](t, rec); got["removedTransactions"] != 1 {
		t.Fatalf("unexpected response %v", got)
	}
}

func TestPendingFees(t *testing.T) {
	srv, svc := newTestServer(t, nil, Options{})
	m, _ := svc.AddMember(context.Background(), ledger.MemberInput{Name: "Kiran", Status: core.StatusNew})
	body := `{"memberId":` + itoa(m.ID) + `,"feeType":"Tournament Fee","amount":200,"notes":"Summer open"}`

	rec := do(srv, http.MethodPost, "/api/pending-fees", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add pending = %d body=%s", rec.Code, rec.Body)
	}
	pf := decode[core.PendingFee](t, rec)
	if rec := do(srv, http.MethodPost, "/api/pending-fees", body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate pending = %d", rec.Code)
	}

	rec = do(srv, http.MethodPost, "/api/pending-fees/"+itoa(pf.ID)+"/collect", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("collect pending = %d body=%s", rec.Code, rec.Body)
	}
	if tx := decode[core.Transaction](t, rec); !tx.FromPending || tx.PendingFeeID != pf.ID {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if left := decode[[]core.PendingFee](t, do(srv, http.MethodGet, "/api/pending-fees", "")); len(left) != 0 {
		t.Fatalf("pending list should be empty, got %d", len(left))
	}
}

func TestExpensesAndContributions(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})

	rec := do(srv, http.MethodPost, "/api/expenses", `{"description":"Table nets","category":"Equipment","amount":1200,"status":"Pending","paidBy":"Ravi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add expense = %d body=%s", rec.Code, rec.Body)
	}
	e := decode[core.Expense](t, rec)
	rec = do(srv, http.MethodPut, "/api/expenses/"+itoa(e.ID), `{"description":"Table nets","category":"Equipment","amount":1200,"status":"Paid","paidBy":"Ravi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update expense = %d body=%s", rec.Code, rec.Body)
	}
	if list := decode[[]core.Expense](t, do(srv, http.MethodGet, "/api/expenses?status=Paid", "")); len(list) != 1 {
		t.Fatalf("filtered expenses = %d", len(list))
	}

	rec = do(srv, http.MethodPost, "/api/contributions", `{"contributorName":"Sports Co","type":"Sponsorship","amount":5000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add contribution = %d body=%s", rec.Code, rec.Body)
	}
	summary := decode[core.ContributionSummary](t, do(srv, http.MethodGet, "/api/reports/contributions", ""))
	if summary.External != core.Rupees(5000) {
		t.Fatalf("external contributions = %s", summary.External)
	}

	fin := decode[core.FinancialSummary](t, do(srv, http.MethodGet, "/api/reports/financial", ""))
	if fin.TotalExpenses != core.Rupees(1200) || fin.NetBalance != core.Rupees(3800) {
		t.Fatalf("unexpected financial summary %+v", fin)
	}

	if rec := do(srv, http.MethodDelete, "/api/expenses/"+itoa(e.ID), ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete expense = %d", rec.Code)
	}
	if rec := do(srv, http.MethodDelete, "/api/expenses/"+itoa(e.ID), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", rec.Code)
	}
}

func TestExportIsCachedPerRevision(t *testing.T) {
	srv, svc := newTestServer(t, nil, Options{})
	ctx := context.Background()
	if _, err := svc.AddMember(ctx, ledger.MemberInput{Name: "Asha", VillaNo: "A-1", Status: core.StatusFounding}); err != nil {
		t.Fatal(err)
	}

	first := do(srv, http.MethodGet, "/api/export/members.csv", "")
	if first.Code != http.StatusOK || !strings.HasPrefix(first.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export status=%d type=%q", first.Code, first.Header().Get("Content-Type"))
	}
	if !strings.Contains(first.Header().Get("Content-Disposition"), "tt_club_members.csv") {
		t.Fatalf("Content-Disposition = %q", first.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(first.Body.String(), "Sl No,Name,Villa No,Status,Membership Fee,Annual Fee 2023") {
		t.Fatalf("unexpected header row: %s", first.Body)
	}

	second := do(srv, http.MethodGet, "/api/export/members.csv", "")
	if second.Body.String() != first.Body.String() {
		t.Fatal("same revision should serve the same export")
	}
	if stats := srv.Exports().Stats(); stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("cache stats = %+v", stats)
	}

	if _, err := svc.AddMember(ctx, ledger.MemberInput{Name: "Ravi", Status: core.StatusNew}); err != nil {
		t.Fatal(err)
	}
	third := do(srv, http.MethodGet, "/api/export/members.csv", "")
	if !strings.Contains(third.Body.String(), "Ravi") {
		t.Fatalf("export after a change should include it: %s", third.Body)
	}

	tx := do(srv, http.MethodGet, "/api/export/transactions.csv", "")
	if !strings.HasPrefix(tx.Body.String(), "Transaction ID,Date,Member Name,Villa No,Fee Type,Amount") {
		t.Fatalf("unexpected transactions export: %s", tx.Body)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	source, svc := newTestServer(t, nil, Options{})
	ctx := context.Background()
	m, _ := svc.AddMember(ctx, ledger.MemberInput{Name: "Meera", Status: core.StatusFounding, MembershipFee: core.Rupees(3000)})
	if _, err := svc.CollectFee(ctx, m.ID, core.AnnualFeeType(2025), core.Rupees(500), core.Date{}); err != nil {
		t.Fatal(err)
	}

	export := do(source, http.MethodGet, "/api/export", "")
	if export.Code != http.StatusOK || !strings.Contains(export.Header().Get("Content-Disposition"), "ttclub_database_") {
		t.Fatalf("export status=%d disposition=%q", export.Code, export.Header().Get("Content-Disposition"))
	}

	target, targetSvc := newTestServer(t, nil, Options{})
	rec := do(target, http.MethodPost, "/api/import", export.Body.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rec.Code, rec.Body)
	}
	if got := decode[importResponse](t, rec); got.Members != 1 || got.Transactions != 1 {
		t.Fatalf("unexpected import response %+v", got)
	}
	if got := targetSvc.FinancialSummary().TotalMemberFees; got != core.Rupees(3500) {
		t.Fatalf("imported total = %s", got)
	}
	if recent := targetSvc.RecentActivities(1); recent[0].Type != ledger.ActivityDataImport {
		t.Fatalf("latest activity = %+v", recent[0])
	}
}

func TestRateLimitAppliesToMutationsOnly(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rec := do(srv, http.MethodPost, "/api/expenses", `{"description":"Balls","amount":100}`); rec.Code != http.StatusCreated {
			t.Fatalf("request %d = %d", i+1, rec.Code)
		}
	}
	rec := do(srv, http.MethodPost, "/api/expenses", `{"description":"Balls","amount":100}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third mutation = %d", rec.Code)
	}
	if got := decode[errorBody](t, rec); got.Kind != "rate_limited" {
		t.Fatalf("error body = %+v", got)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After should be set")
	}
	if rec := do(srv, http.MethodGet, "/api/expenses", ""); rec.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rec.Code)
	}

	metrics := decode[metricsResponse](t, do(srv, http.MethodGet, "/api/metrics", ""))
	if metrics.RateLimit.Rejected != 1 {
		t.Fatalf("metrics = %+v", metrics.RateLimit)
	}
}

func TestSnapshotsAndSyncStatus(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})
	if rec := do(srv, http.MethodGet, "/api/snapshots", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("snapshots without history = %d", rec.Code)
	}

	synced := storage.SyncRecord{SnapshotID: 3, SyncedAt: time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC), MemberRows: 4, TxRows: 9}
	history := &fakeHistory{
		infos: []storage.SnapshotInfo{{ID: 3, Version: core.SnapshotVersion}, {ID: 2}, {ID: 1}},
		last:  &synced,
	}
	srv, _ = newTestServer(t, history, Options{})

	infos := decode[[]storage.SnapshotInfo](t, do(srv, http.MethodGet, "/api/snapshots?limit=2", ""))
	if len(infos) != 2 || infos[0].ID != 3 {
		t.Fatalf("unexpected snapshots %+v", infos)
	}
	status := decode[syncStatusResponse](t, do(srv, http.MethodGet, "/api/sync", ""))
	if !status.Synced || status.SnapshotID != 3 || status.TxRows != 9 {
		t.Fatalf("unexpected sync status %+v", status)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
