package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ttclub/internal/cache"
	"ttclub/internal/log"
	"ttclub/internal/middleware/ratelimit"
	"ttclub/internal/middleware/security"
	"ttclub/internal/middleware/trace"
	"ttclub/internal/services"
	"ttclub/internal/storage"
)

// SnapshotHistory is the read side of the SQLite snapshot store. It is nil
// for the file and memory backends.
type SnapshotHistory interface {
	ListSnapshots(ctx context.Context, limit int) ([]storage.SnapshotInfo, error)
	LastSync(ctx context.Context) (storage.SyncRecord, bool, error)
	HealthCheck(ctx context.Context) error
}

// Options tunes the server; zero values fall back to defaults.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	ExportCacheSize    int
	ExportCacheTTL     time.Duration
	TrustedProxies     []string
	Logger             *log.Logger
}

type Server struct {
	http.Server
	svc     *services.LedgerService
	history SnapshotHistory
	logger  *log.Logger

	exports  *cache.LRUCache[[]byte]
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	now          func() time.Time
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. history may be nil.
func NewServer(svc *services.LedgerService, history SnapshotHistory, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.ExportCacheSize < 1 {
		opts.ExportCacheSize = 16
	}
	if opts.ExportCacheTTL <= 0 {
		opts.ExportCacheTTL = 10 * time.Minute
	}
	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	s := &Server{
		svc:      svc,
		history:  history,
		logger:   logger,
		exports:  cache.NewLRUCache[[]byte](opts.ExportCacheSize, opts.ExportCacheTTL),
		limiter:  ratelimit.NewLimiter(limits),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, opts.Logger),
		now:      time.Now,
	}
	s.started = s.now()

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	limitLogger := opts.Logger.WithComponent(log.ComponentRateLimit)
	handler = s.limiter.Middleware(detector.ExtractClientIP, ratelimit.IsMutating, func(w http.ResponseWriter, r *http.Request) {
		limitLogger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(handler)
	handler = s.withDetection(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/members", s.handleListMembers)
	mux.HandleFunc("POST /api/members", s.handleAddMember)
	mux.HandleFunc("GET /api/members/{id}", s.handleGetMember)
	mux.HandleFunc("PUT /api/members/{id}", s.handleUpdateMember)
	mux.HandleFunc("DELETE /api/members/{id}", s.handleDeleteMember)
	mux.HandleFunc("POST /api/members/{id}/fees", s.handleCollectFee)
	mux.HandleFunc("PUT /api/members/{id}/fees/{year}", s.handleEditMemberFee)
	mux.HandleFunc("GET /api/members/{id}/unpaid", s.handleHasUnpaidFees)
	mux.HandleFunc("POST /api/members/{id}/invoices", s.handleGenerateInvoice)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleRecordTransaction)

	mux.HandleFunc("GET /api/fee-years", s.handleListFeeYears)
	mux.HandleFunc("POST /api/fee-years", s.handleAddFeeYear)
	mux.HandleFunc("PUT /api/fee-years/{year}", s.handleUpdateFeeYear)
	mux.HandleFunc("POST /api/fee-years/{year}/toggle", s.handleToggleFeeYear)
	mux.HandleFunc("GET /api/fee-years/{year}/impact", s.handleFeeYearImpact)
	mux.HandleFunc("DELETE /api/fee-years/{year}", s.handleDeleteFeeYear)
	mux.HandleFunc("GET /api/fee-summary", s.handleFeeSummary)

	mux.HandleFunc("GET /api/pending-fees", s.handleListPendingFees)
	mux.HandleFunc("POST /api/pending-fees", s.handleAddPendingFee)
	mux.HandleFunc("POST /api/pending-fees/{id}/collect", s.handleCollectPendingFee)
	mux.HandleFunc("DELETE /api/pending-fees/{id}", s.handleDeletePendingFee)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleAddExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/contributions", s.handleListContributions)
	mux.HandleFunc("POST /api/contributions", s.handleAddContribution)
	mux.HandleFunc("PUT /api/contributions/{id}", s.handleUpdateContribution)
	mux.HandleFunc("DELETE /api/contributions/{id}", s.handleDeleteContribution)

	mux.HandleFunc("GET /api/invoices", s.handleListInvoices)
	mux.HandleFunc("DELETE /api/invoices/{id}", s.handleDeleteInvoice)

	mux.HandleFunc("GET /api/activities", s.handleActivities)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports/financial", s.handleFinancialReport)
	mux.HandleFunc("GET /api/reports/members", s.handleMemberReport)
	mux.HandleFunc("GET /api/reports/expenses", s.handleExpenseReport)
	mux.HandleFunc("GET /api/reports/contributions", s.handleContributionReport)

	mux.HandleFunc("GET /api/export", s.handleExportJSON)
	mux.HandleFunc("GET /api/export/members.csv", s.handleExportMembersCSV)
	mux.HandleFunc("GET /api/export/transactions.csv", s.handleExportTransactionsCSV)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/snapshots", s.handleSnapshots)
	mux.HandleFunc("GET /api/sync", s.handleSyncStatus)
}

// withDetection logs requests that look like probes. They are still served;
// the router rejects anything that is not an API route.
func (s *Server) withDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// Exports exposes the export cache so the caller can register it for
// periodic cleanup.
func (s *Server) Exports() *cache.LRUCache[[]byte] {
	return s.exports
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type healthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime,omitempty"`
	Revision int64             `json:"revision"`
	Checks   map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Uptime:   s.now().Sub(s.started).Round(time.Second).String(),
		Revision: s.svc.Revision(),
	})
}

// handleReady checks the snapshot database when there is one.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ready", Revision: s.svc.Revision(), Checks: map[string]string{"ledger": "ok"}}
	status := http.StatusOK

	if s.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.history.HealthCheck(ctx); err != nil {
			resp.Status = "not_ready"
			resp.Checks["storage"] = "failed: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["storage"] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

type metricsResponse struct {
	Revision    int64                     `json:"revision"`
	Requests    trace.Metrics             `json:"requests"`
	RateLimit   ratelimit.Metrics         `json:"rateLimit"`
	Security    security.DetectionMetrics `json:"security"`
	ExportCache cache.Stats               `json:"exportCache"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{
		Revision:    s.svc.Revision(),
		Requests:    s.tracer.GetMetrics(),
		RateLimit:   s.limiter.GetMetrics(),
		Security:    s.detector.GetMetrics(),
		ExportCache: s.exports.Stats(),
	})
}
