package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-insights/internal/infra/memory"
	"github.com/dvloznov/finance-insights/internal/ingest"
	"github.com/dvloznov/finance-insights/internal/insights"
	"github.com/dvloznov/finance-insights/internal/jobs"
	"github.com/dvloznov/finance-insights/internal/jobs/inmemory"
	"github.com/dvloznov/finance-insights/internal/logger"
	"github.com/dvloznov/finance-insights/internal/tools"
)

type testServer struct {
	handler   http.Handler
	jobStore  *inmemory.Store
	importDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	svc := insights.NewService(store, nil)
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, 1, jobStore)
	queue.SetRetryBackoff(time.Millisecond)

	importer := ingest.NewImporter(ingest.NewRouter(), store, ingest.ParseOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	if err := queue.Start(ctx, importer.HandleJob); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		cancel()
		queue.Close()
	})

	importDir := t.TempDir()
	log := logger.NewWithWriter(&bytes.Buffer{})
	return &testServer{
		handler: NewRouter(Deps{
			Service:   svc,
			Registry:  tools.NewRegistry(svc),
			Publisher: queue,
			JobStore:  jobStore,
			ImportDir: importDir,
			Log:       log,
		}),
		jobStore:  jobStore,
		importDir: importDir,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func (s *testServer) callTool(t *testing.T, name string, args map[string]any) (int, string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/tools/call", map[string]any{"name": name, "arguments": args})
	body := decode[map[string]string](t, rec)
	return rec.Code, body["content"]
}

func TestTools_ListAndCall(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/tools", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/tools status = %d", rec.Code)
	}
	list := decode[struct {
		Tools []tools.Descriptor `json:"tools"`
		Count int                `json:"count"`
	}](t, rec)
	if list.Count != 6 || len(list.Tools) != 6 {
		t.Errorf("tools count = %d, want 6", list.Count)
	}

	for _, row := range []map[string]any{
		{"user_id": "u1", "date": "2024-01-01", "amount": 100, "transaction_type": "credit", "category": "Paycheck"},
		{"user_id": "u1", "date": "2024-01-02", "amount": 98, "transaction_type": "debit", "category": "Rent"},
	} {
		if code, content := s.callTool(t, tools.AddTransaction, row); code != http.StatusOK || !strings.HasPrefix(content, "Transaction ") {
			t.Fatalf("add_transaction = %d %q", code, content)
		}
	}

	code, content := s.callTool(t, tools.RiskAlert, map[string]any{"user_id": "u1"})
	if code != http.StatusOK || !strings.HasPrefix(content, "HIGH RISK") {
		t.Errorf("risk_alert = %d %q, want HIGH RISK", code, content)
	}
}

func TestTools_CallErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{name: "unknown tool", body: map[string]any{"name": "buy_stocks"}, wantCode: http.StatusNotFound},
		{name: "missing argument", body: map[string]any{"name": tools.RiskAlert, "arguments": map[string]any{}}, wantCode: http.StatusBadRequest},
		{name: "missing name", body: map[string]any{"arguments": map[string]any{}}, wantCode: http.StatusBadRequest},
		{name: "tool-level failure is still 200", body: map[string]any{"name": tools.ForecastNextMonth, "arguments": map[string]any{"user_id": "ghost"}}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/tools/call", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/tools/call", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestUsers_TransactionsAndInsights(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/users/nobody/transactions", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty user transactions = %d %s, want 200 []", rec.Code, rec.Body.String())
	}

	s.callTool(t, tools.AddTransaction, map[string]any{"user_id": "u1", "date": "2024-01-01", "amount": 1000, "transaction_type": "credit", "category": "Paycheck"})
	s.callTool(t, tools.AddTransaction, map[string]any{"user_id": "u1", "date": "2024-02-01", "amount": 600, "transaction_type": "debit", "category": "Rent"})

	rec = s.do(t, http.MethodGet, "/api/users/u1/transactions", nil)
	txs := decode[[]TransactionView](t, rec)
	if len(txs) != 2 || txs[0].Date != "2024-01-01" || txs[1].TransactionType != "debit" {
		t.Errorf("transactions = %+v", txs)
	}
	if txs[0].Amount.String() != "1000" {
		t.Errorf("amount = %s, want 1000", txs[0].Amount)
	}

	rec = s.do(t, http.MethodGet, "/api/users/u1/insights", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("insights status = %d", rec.Code)
	}
	overview := decode[insights.Overview](t, rec)
	if overview.UserID != "u1" || overview.Summary == nil || overview.Forecast == nil {
		t.Fatalf("overview = %+v", overview)
	}
	if overview.Forecast.Month != "2024-03" {
		t.Errorf("forecast month = %s, want 2024-03", overview.Forecast.Month)
	}
	if overview.Risk != "Nominal" {
		t.Errorf("risk = %s, want Nominal", overview.Risk)
	}

	rec = s.do(t, http.MethodPost, "/api/users/u1/insights", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST insights status = %d, want 405", rec.Code)
	}
}

func TestImports_EnqueueAndTrack(t *testing.T) {
	s := newTestServer(t)

	path := filepath.Join(s.importDir, "tx.csv")
	content := "Date,Description,Amount,Transaction Type,Category,Account Name,User ID\n" +
		"2024-01-01,Paycheck,1000,credit,Paycheck,Checking,u1\n" +
		"2024-01-05,Rent,600,debit,Rent,Checking,u1\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	rec := s.do(t, http.MethodPost, "/api/imports", map[string]string{"source": path})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/imports status = %d (%s)", rec.Code, rec.Body.String())
	}
	accepted := decode[map[string]string](t, rec)
	jobID := accepted["job_id"]
	if jobID == "" || accepted["status"] != string(jobs.JobStatusPending) {
		t.Fatalf("accepted = %v", accepted)
	}

	var job jobs.ImportJob
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec = s.do(t, http.MethodGet, "/api/imports/"+jobID, nil)
		job = decode[jobs.ImportJob](t, rec)
		if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if job.Status != jobs.JobStatusCompleted || job.RowsImported != 2 {
		t.Fatalf("job = %+v, want completed with 2 rows", job)
	}

	_, summary := s.callTool(t, tools.GetSpendingSummary, map[string]any{"user_id": "u1"})
	if !strings.Contains(summary, "Net savings: 400") {
		t.Errorf("summary after import = %q", summary)
	}

	rec = s.do(t, http.MethodGet, "/api/imports?status=completed", nil)
	list := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	if list.Count != 1 {
		t.Errorf("completed imports = %d, want 1", list.Count)
	}
}

func TestImports_Errors(t *testing.T) {
	s := newTestServer(t)

	outside := filepath.Join(t.TempDir(), "tx.csv")
	if err := os.WriteFile(outside, []byte("Date\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
	}{
		{name: "missing source", method: http.MethodPost, path: "/api/imports", body: map[string]string{}, wantCode: http.StatusBadRequest},
		{name: "bad gcs uri", method: http.MethodPost, path: "/api/imports", body: map[string]string{"source": "gs://bucket-only"}, wantCode: http.StatusBadRequest},
		{name: "unknown job", method: http.MethodGet, path: "/api/imports/does-not-exist", wantCode: http.StatusNotFound},
		{name: "path outside import dir", method: http.MethodPost, path: "/api/imports", body: map[string]string{"source": outside}, wantCode: http.StatusBadRequest},
		{name: "relative escape", method: http.MethodPost, path: "/api/imports", body: map[string]string{"source": "../tx.csv"}, wantCode: http.StatusBadRequest},
		{name: "system file", method: http.MethodPost, path: "/api/imports", body: map[string]string{"source": "/etc/passwd"}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestImports_MissingFileFails(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/imports", map[string]string{"source": filepath.Join(s.importDir, "missing.csv")})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	jobID := decode[map[string]string](t, rec)["job_id"]

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.jobStore.GetJob(context.Background(), jobID)
		if err == nil && job.Status == jobs.JobStatusFailed {
			if job.RetryCount != 0 {
				t.Errorf("RetryCount = %d, want 0 for a missing file", job.RetryCount)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("import of a missing file did not fail")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if decode[map[string]string](t, rec)["status"] != "healthy" {
		t.Error("status != healthy")
	}
}
