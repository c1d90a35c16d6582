package http

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"boqtrack/internal/auth"
	"boqtrack/internal/format"
	"boqtrack/internal/ingest"
	"boqtrack/internal/log"
	"boqtrack/internal/middleware/ratelimit"
	"boqtrack/internal/middleware/security"
	"boqtrack/internal/middleware/trace"
	"boqtrack/internal/report"
	"boqtrack/internal/services"
	appweb "boqtrack/web"
)

// OutboxStats is the view of the publish outbox exposed on /metrics.
type OutboxStats interface {
	Pending() int
	Dropped() int
}

// ReadyCheck is a named dependency probe for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Projects     *services.ProjectService
	Budget       *services.BudgetService
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Formatter    *format.Formatter

	JWTSecret      []byte
	MaxUploadBytes int64
	RateLimit      int

	Logger      *log.Logger
	Outbox      OutboxStats
	ReadyChecks []ReadyCheck
}

type appMetrics struct {
	uploads         atomic.Int64
	budgetLines     atomic.Int64
	transactions    atomic.Int64
	importFailures  atomic.Int64
	templateFailure atomic.Int64
}

type Server struct {
	http.Server
	deps       Deps
	templates  *template.Template
	logger     *log.Logger
	structured *log.StructuredLogger
	trace      *trace.Middleware
	limiter    *ratelimit.Limiter
	metrics    appMetrics
	startedAt  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Formatter == nil {
		deps.Formatter = format.NewFromLocale("en")
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}
	if deps.RateLimit <= 0 {
		deps.RateLimit = 60
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:       deps,
		logger:     logger,
		structured: log.NewStructuredLogger(deps.Logger),
		trace:      trace.NewMiddleware(ClientIP, deps.Logger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimit,
			CleanupInterval:   5 * time.Minute,
		}),
		startedAt: time.Now(),
	}

	t, err := template.New("boqtrack").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WarnContext(context.Background(), "Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/", s.protected(s.apiRoutes()))

	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = log.Middleware(deps.Logger)(handler)
	handler = security.MaxBodyMiddleware(deps.MaxUploadBytes)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.trace.Middleware(handler)
	s.Handler = handler

	return s
}

func (s *Server) apiRoutes() *http.ServeMux {
	api := http.NewServeMux()

	api.HandleFunc("GET /projects/lists", s.handleListProjects)
	api.HandleFunc("POST /projects/create", s.handleCreateProject)
	api.HandleFunc("GET /categories/lists", s.handleListCategories)
	api.HandleFunc("POST /categories/create", s.handleCreateCategory)

	api.HandleFunc("POST /budget/preview", s.handleBudgetPreview)
	api.HandleFunc("POST /budget/importIncomes", s.handleBudgetImport)
	api.HandleFunc("POST /budget/listsByProject", s.handleBudgetList)
	api.HandleFunc("POST /budget/updateIncomes", s.handleBudgetUpdateIncome)

	api.HandleFunc("GET /transactions/lists", s.handleListTransactions)
	api.HandleFunc("POST /transactions/create", s.handleCreateTransaction)
	api.HandleFunc("PUT /transactions/update/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /transactions/delete/{id}", s.handleDeleteTransaction)
	api.HandleFunc("POST /transactions/importTransactions", s.handleImportTransactions)

	api.HandleFunc("POST /report/listsByProject", s.handleReportRecords)
	api.HandleFunc("POST /report/summaryByProject", s.handleReportSummary)
	api.HandleFunc("GET /ui/report", s.handleReportTable)

	return api
}

// protected requires a valid token and applies per-user rate limiting to
// mutating requests.
func (s *Server) protected(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.rateKey, s.onRateLimit)(next)
	return auth.Middleware(s.deps.JWTSecret)(limited)
}

func (s *Server) rateKey(r *http.Request) string {
	if user, ok := auth.UserFrom(r.Context()); ok {
		return "user:" + user
	}
	return "ip:" + ClientIP(r)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":   s.deps.Formatter.SummaryNumber,
		"date":    format.Date,
		"details": report.SortedDescriptions,
		"rowClass": func(classification string) string {
			switch ingest.ParseClassification(classification) {
			case ingest.CategoryHeader:
				return "category-row"
			case ingest.TotalRow:
				return "total-row"
			case ingest.InvalidRow:
				return "invalid-row"
			default:
				return "data-row"
			}
		},
	}
}

// Shutdown stops the rate limiter cleanup and the HTTP server. It is safe
// to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// fail writes the response for err. Server errors are logged with the
// request id; client errors are logged at warn.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ResponseForError(err)
	ctx := r.Context()
	fields := log.NewFields().WithRequestID(trace.GetRequestID(ctx))
	if user, ok := auth.UserFrom(ctx); ok {
		fields = fields.WithUser(user)
	}
	if resp.statusCode >= http.StatusInternalServerError {
		s.structured.LogError(ctx, "Request failed", err, log.ComponentHTTP, op, fields)
	} else {
		s.logger.WarnContext(ctx, "Request rejected", fields.WithOperation(op).WithError(err).ToSlice()...)
	}
	resp.Write(w)
}

func owner(r *http.Request) string {
	user, _ := auth.UserFrom(r.Context())
	return user
}
