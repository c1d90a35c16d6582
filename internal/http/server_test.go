package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"boqtrack/internal/auth"
	"boqtrack/internal/cache"
	"boqtrack/internal/core"
	"boqtrack/internal/format"
	"boqtrack/internal/log"
	"boqtrack/internal/middleware/trace"
	"boqtrack/internal/services"
	"boqtrack/internal/store/memory"
)

var testSecret = []byte("0123456789abcdef-test")

const boqCSV = "Code,Description,Qty,Unit,Rate,Amount\n" +
	"A,Earthworks,,,,\n" +
	"A.1,Excavation,10,m3,5,50\n" +
	",,,,,\n" +
	"tt,Total,,,,50\n"

type testServer struct {
	*Server
	store *memory.Store
	token string
}

func newTestServer(t *testing.T, modify ...func(*Deps)) *testServer {
	t.Helper()
	st := memory.New()
	reports := services.NewReportService(st, cache.NewLRUCache[services.Summary](10, time.Minute))
	tx := services.NewTransactionService(st, nil, reports)
	deps := Deps{
		Projects:     services.NewProjectService(st),
		Budget:       services.NewBudgetService(st, nil, tx, format.NewFromLocale("en")),
		Transactions: tx,
		Reports:      reports,
		Formatter:    format.NewFromLocale("en"),
		JWTSecret:    testSecret,
		RateLimit:    1000,
		Logger:       log.New(log.Config{Writer: io.Discard, Format: "text", Component: log.ComponentApp}),
	}
	for _, m := range modify {
		m(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	token, err := auth.Issue(testSecret, "alice", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return &testServer{Server: srv, store: st, token: token}
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+ts.token)
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) doJSON(t *testing.T, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return ts.do(t, method, path, bytes.NewReader(b), "application/json")
}

func (ts *testServer) upload(t *testing.T, path, fileName, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return ts.do(t, http.MethodPost, path, &buf, mw.FormDataContentType())
}

func (ts *testServer) createProject(t *testing.T, name string) {
	t.Helper()
	rr := ts.doJSON(t, http.MethodPost, "/projects/create", map[string]string{"name": name})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create project status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthReadyMetrics(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := httptest.NewRecorder()
		ts.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, want := range []string{"http_requests_total", "rate_limit_active_clients", "uploads_total"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
	if rr.Header().Get(trace.RequestIDHeader) == "" {
		t.Error("request id header not set")
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) {
		d.ReadyChecks = []ReadyCheck{{
			Name:  "store",
			Check: func(context.Context) error { return fmt.Errorf("connection refused") },
		}}
	})

	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Errorf("readyz body = %s", rr.Body.String())
	}
}

func TestMetricsIncludeOutbox(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Outbox = fakeOutbox{pending: 3, dropped: 1} })

	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "outbox_pending_messages 3") {
		t.Errorf("metrics body missing outbox gauge:\n%s", rr.Body.String())
	}
}

type fakeOutbox struct{ pending, dropped int }

func (f fakeOutbox) Pending() int { return f.pending }
func (f fakeOutbox) Dropped() int { return f.dropped }

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "bad token", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects/lists", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			ts.Handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d, want 401", rr.Code)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/projects/lists", nil, "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options not set")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options not set")
	}
}

func TestProjectsAndCategories(t *testing.T) {
	ts := newTestServer(t)

	ts.createProject(t, "Tower A")

	rr := ts.do(t, http.MethodPost, "/projects/create",
		strings.NewReader("name=Tower+B&projectCode=TB-1&startDate=2025-01-01&endDate=2025-12-31"),
		"application/x-www-form-urlencoded")
	if rr.Code != http.StatusCreated {
		t.Fatalf("form create status=%d body=%s", rr.Code, rr.Body.String())
	}

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{name: "duplicate", body: map[string]string{"name": "Tower A"}, status: http.StatusConflict},
		{name: "empty name", body: map[string]string{"name": "  "}, status: http.StatusBadRequest},
		{name: "end before start", body: map[string]string{"name": "C", "startDate": "2025-02-01", "endDate": "2025-01-01"}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.doJSON(t, http.MethodPost, "/projects/create", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
		})
	}

	rr = ts.do(t, http.MethodGet, "/projects/lists", nil, "")
	list := decode[struct {
		MyProjects []core.Project `json:"myProjects"`
	}](t, rr)
	if len(list.MyProjects) != 2 {
		t.Fatalf("myProjects len=%d, want 2", len(list.MyProjects))
	}

	rr = ts.doJSON(t, http.MethodPost, "/categories/create", map[string]string{"name": "Concrete"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = ts.do(t, http.MethodGet, "/categories/lists", nil, "")
	cats := decode[struct {
		Categories []core.Category `json:"categories"`
	}](t, rr)
	if len(cats.Categories) != 1 || cats.Categories[0].Name != "Concrete" {
		t.Fatalf("categories = %+v", cats.Categories)
	}
}

func TestProjectsAreScopedByOwner(t *testing.T) {
	ts := newTestServer(t)
	ts.createProject(t, "Tower A")

	bob, err := auth.Issue(testSecret, "bob", time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/projects/lists", nil)
	req.Header.Set("Authorization", "Bearer "+bob)
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)

	list := decode[struct {
		MyProjects []core.Project `json:"myProjects"`
	}](t, rr)
	if len(list.MyProjects) != 0 {
		t.Fatalf("bob sees %d projects", len(list.MyProjects))
	}
}

func TestBudgetPreview(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.upload(t, "/budget/preview", "boq.csv", boqCSV, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[struct {
		FileName string                 `json:"fileName"`
		Rows     []services.PreviewLine `json:"rows"`
	}](t, rr)

	if got.FileName != "boq.csv" {
		t.Errorf("fileName = %q", got.FileName)
	}
	wantClasses := []string{"category", "data", "total"}
	if len(got.Rows) != len(wantClasses) {
		t.Fatalf("rows = %+v", got.Rows)
	}
	for i, want := range wantClasses {
		if got.Rows[i].Classification != want {
			t.Errorf("row %d classification = %q, want %q", i, got.Rows[i].Classification, want)
		}
	}
	if !got.Rows[1].Editable || got.Rows[0].Editable {
		t.Errorf("only data rows are editable: %+v", got.Rows)
	}

	rr = ts.upload(t, "/budget/preview?format=html", "boq.csv", boqCSV, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("html preview status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"category-row", "data-row", "total-row", "Excavation"} {
		if !strings.Contains(body, want) {
			t.Errorf("html preview missing %q", want)
		}
	}
}

func TestBudgetPreviewErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		fileName string
		content  string
	}{
		{name: "unsupported type", fileName: "boq.pdf", content: "%PDF-1.4"},
		{name: "broken xlsx", fileName: "boq.xlsx", content: "not a zip"},
		{name: "missing file", fileName: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.upload(t, "/budget/preview", tt.fileName, tt.content, nil)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400 body=%s", rr.Code, rr.Body.String())
			}
		})
	}

	rr := ts.doJSON(t, http.MethodPost, "/budget/preview", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("non-multipart status=%d, want 400", rr.Code)
	}
}

func TestBudgetImportAndIncomeFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.createProject(t, "Tower A")

	rr := ts.upload(t, "/budget/importIncomes", "boq.csv", boqCSV, map[string]string{
		"projectName": "Tower A",
		"progress":    "50",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	result := decode[services.ImportResult](t, rr)
	if result.Lines != 3 || result.DataRows != 1 || result.CategoryHeaders != 1 || result.Totals != 1 {
		t.Fatalf("import result = %+v", result)
	}

	rr = ts.doJSON(t, http.MethodPost, "/budget/listsByProject", map[string]string{"projectName": "Tower A"})
	lines := decode[struct {
		Lines []core.BudgetLine `json:"budgetDataByProj"`
	}](t, rr).Lines
	if len(lines) != 3 {
		t.Fatalf("budget lines = %d, want 3", len(lines))
	}
	data := lines[1]
	if data.CurrentAmount != 25 || data.Category != "Earthworks" {
		t.Fatalf("data line = %+v", data)
	}

	rr = ts.doJSON(t, http.MethodPost, "/budget/updateIncomes", map[string]any{
		"id":       data.ID,
		"progress": "100",
		"category": "Earthworks",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update income status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[struct {
		Line core.BudgetLine `json:"budgetLine"`
	}](t, rr).Line
	if updated.CurrentAmount != 50 {
		t.Errorf("currentAmount = %v, want 50", updated.CurrentAmount)
	}

	rr = ts.doJSON(t, http.MethodPost, "/budget/updateIncomes", map[string]any{"id": lines[0].ID, "progress": 10})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("category line update status=%d, want 400", rr.Code)
	}
	rr = ts.doJSON(t, http.MethodPost, "/budget/updateIncomes", map[string]any{"id": data.ID, "progress": 150})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("progress 150 status=%d, want 400", rr.Code)
	}
	rr = ts.doJSON(t, http.MethodPost, "/budget/updateIncomes", map[string]any{"id": "missing", "progress": 10})
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing line status=%d, want 404", rr.Code)
	}

	rr = ts.doJSON(t, http.MethodPost, "/report/summaryByProject", map[string]string{"projectName": "Tower A"})
	summary := decode[services.Summary](t, rr)
	if summary.Totals.IncomeAmount != 50 {
		t.Errorf("summary income = %v, want 50", summary.Totals.IncomeAmount)
	}
}

func TestBudgetImportJSON(t *testing.T) {
	ts := newTestServer(t)
	ts.createProject(t, "Tower A")

	body := `{"projectName":"Tower A","progress":"40","budgetData":[
		{"code":"B","description":"Structure"},
		{"code":"B.1","description":"Columns","quantity":4,"unitOfMeasure":"nr","rate":25,"amount":100}
	]}`
	rr := ts.do(t, http.MethodPost, "/budget/importIncomes", strings.NewReader(body), "application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.doJSON(t, http.MethodPost, "/report/listsByProject", map[string]string{"projectName": "Tower A"})
	records := decode[struct {
		Records []core.Transaction `json:"myReports"`
	}](t, rr).Records
	if len(records) != 1 || records[0].IncomeAmount != 40 || records[0].Category != "Structure" {
		t.Fatalf("myReports = %+v", records)
	}

	rr = ts.do(t, http.MethodPost, "/budget/importIncomes",
		strings.NewReader(`{"projectName":"Nowhere","budgetData":[]}`), "application/json")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown project status=%d, want 404", rr.Code)
	}
}

func TestTransactionsCRUD(t *testing.T) {
	ts := newTestServer(t)
	ts.createProject(t, "Tower A")

	rr := ts.doJSON(t, http.MethodPost, "/transactions/create", map[string]any{
		"projectName":   "Tower A",
		"category":      "Concrete",
		"description":   "C30 pour",
		"expenseAmount": 1200.5,
		"date":          "2025-03-04",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[struct {
		Transaction core.Transaction `json:"transaction"`
	}](t, rr).Transaction

	created.ExpenseAmount = 1300
	rr = ts.doJSON(t, http.MethodPut, "/transactions/update/"+created.ID, created)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/transactions/lists?project=Tower+A", nil, "")
	list := decode[struct {
		Transactions []core.Transaction `json:"transactions"`
	}](t, rr).Transactions
	if len(list) != 1 || list[0].ExpenseAmount != 1300 {
		t.Fatalf("transactions = %+v", list)
	}

	rr = ts.doJSON(t, http.MethodPut, "/transactions/update/missing", created)
	if rr.Code != http.StatusNotFound {
		t.Errorf("update missing status=%d, want 404", rr.Code)
	}

	rr = ts.do(t, http.MethodDelete, "/transactions/delete/"+created.ID, nil, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = ts.do(t, http.MethodDelete, "/transactions/delete/"+created.ID, nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status=%d, want 404", rr.Code)
	}

	rr = ts.doJSON(t, http.MethodPost, "/transactions/create", map[string]any{
		"projectName": "Tower A",
		"category":    "Concrete",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("no amount status=%d, want 400", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/transactions/create", nil, "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET create status=%d, want 405", rr.Code)
	}
}

func TestImportTransactions(t *testing.T) {
	ts := newTestServer(t)
	ts.createProject(t, "Tower A")

	t.Run("json records", func(t *testing.T) {
		body := `{"projectName":"Tower A","records":[
			{"Category":"Steel","Description":"Rebar","Expense Amount":"1,250.00"},
			{"Category":"","Description":"no category","Expense Amount":10}
		]}`
		rr := ts.do(t, http.MethodPost, "/transactions/importTransactions", strings.NewReader(body), "application/json")
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		summary := decode[services.ImportSummary](t, rr)
		if len(summary.Created) != 1 || len(summary.Failed) != 1 || summary.Failed[0].Row != 3 {
			t.Fatalf("summary = %+v", summary)
		}
		if summary.Created[0].ExpenseAmount != 1250 {
			t.Errorf("expense = %v, want 1250", summary.Created[0].ExpenseAmount)
		}
	})

	t.Run("csv upload", func(t *testing.T) {
		csv := "category,description,income amount\nSales,Interim 1,500\n,,\n"
		rr := ts.upload(t, "/transactions/importTransactions", "tx.csv", csv, map[string]string{"projectName": "Tower A"})
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		summary := decode[services.ImportSummary](t, rr)
		if len(summary.Created) != 1 || len(summary.Failed) != 0 {
			t.Fatalf("summary = %+v", summary)
		}
	})
}

func TestReportTable(t *testing.T) {
	ts := newTestServer(t)
	ts.createProject(t, "Tower A")

	for _, tx := range []map[string]any{
		{"projectName": "Tower A", "category": "Concrete", "incomeAmount": 12500.75},
		{"projectName": "Tower A", "category": "Concrete", "description": "Pour level 3 slab", "expenseAmount": 2500},
		{"projectName": "Tower A", "category": "concrete ", "expenseAmount": 1},
	} {
		if rr := ts.doJSON(t, http.MethodPost, "/transactions/create", tx); rr.Code != http.StatusCreated {
			t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := ts.do(t, http.MethodGet, "/ui/report?project=Tower+A", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("report status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Tower A", "12,500.75", "10,000.75", "look like the same category", "Pour level 3 slab", "2 entries"} {
		if !strings.Contains(body, want) {
			t.Errorf("report table missing %q:\n%s", want, body)
		}
	}

	rr = ts.do(t, http.MethodGet, "/ui/report", nil, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing project status=%d, want 400", rr.Code)
	}

	rr = ts.doJSON(t, http.MethodPost, "/report/summaryByProject", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("summary without project status=%d, want 400", rr.Code)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.RateLimit = 2 })

	for i := 0; i < 2; i++ {
		rr := ts.doJSON(t, http.MethodPost, "/categories/create", map[string]string{"name": fmt.Sprintf("c%d", i)})
		if rr.Code != http.StatusCreated {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := ts.doJSON(t, http.MethodPost, "/categories/create", map[string]string{"name": "c3"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}

	// Reads are not limited.
	if rr := ts.do(t, http.MethodGet, "/categories/lists", nil, ""); rr.Code != http.StatusOK {
		t.Fatalf("list status=%d, want 200", rr.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.MaxUploadBytes = 1024 })

	rr := ts.upload(t, "/budget/preview", "boq.csv", strings.Repeat("x,", 2048), nil)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d, want 413", rr.Code)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := ts.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := ts.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}
