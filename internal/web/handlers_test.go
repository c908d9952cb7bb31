package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/importer/internal/config"
	"github.com/JonMunkholm/importer/internal/core"
	_ "github.com/JonMunkholm/importer/internal/core/importers"
)

const templatesYAML = `
templates:
  - name: erp
    kind: invoice
    headers: [Customer, Invoice, Item, Qty, Price]
    mapping: [customer, number, item, quantity, unit_cost]
    options:
      operation: upsert
`

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second, ShutdownTimeout: time.Second},
		Import: config.ImportConfig{MaxBodySize: 1 << 20, MaxRows: 10},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *core.MemoryStore) {
	t.Helper()

	set := core.NewTemplateSet()
	templates, err := core.ParseTemplates([]byte(templatesYAML))
	if err != nil {
		t.Fatal(err)
	}
	for _, tmpl := range templates {
		if err := set.Add(tmpl); err != nil {
			t.Fatal(err)
		}
	}

	store := core.NewMemoryStore()
	svc := core.NewService(store, core.ServiceConfig{MaxConcurrentRuns: 2, MaxWaitTime: time.Second, Templates: set})
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

var invoiceBody = map[string]any{
	"mapping": []string{"customer", "number", "item", "quantity", "unit_cost"},
	"rows": [][]any{
		{"Acme", "INV-1", "Hosting", 1, "100"},
		{"Acme", "INV-1", "Support", 2, "25"},
		{"Beta", "INV-2", "Hosting", 1, "100"},
	},
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	got := decode[map[string]any](t, rec)
	if got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestHandleListImporters(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodGet, "/api/importers", nil)
	infos := decode[[]core.DefinitionInfo](t, rec)
	if len(infos) != core.Count() {
		t.Errorf("got %d importers, want %d", len(infos), core.Count())
	}

	rec = do(t, srv, http.MethodGet, "/api/importers?group=Payables", nil)
	infos = decode[[]core.DefinitionInfo](t, rec)
	if len(infos) != 3 {
		t.Errorf("Payables = %d importers, want 3", len(infos))
	}
}

func TestHandleColumns(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodGet, "/api/importers/invoice/columns", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cols := decode[[]core.ColumnInfo](t, rec); len(cols) == 0 {
		t.Error("no columns")
	}

	rec = do(t, srv, http.MethodGet, "/api/importers/widget/columns", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d, want 404", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code == "" {
		t.Errorf("error response = %+v", resp)
	}
}

func TestHandleBuild(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodPost, "/api/tenants/t1/imports/invoice/build", invoiceBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[struct {
		Stats   core.BuildStats  `json:"stats"`
		Records []map[string]any `json:"records"`
	}](t, rec)
	if resp.Stats.Rows != 3 || resp.Stats.Records != 2 || len(resp.Records) != 2 {
		t.Errorf("build = %+v", resp)
	}
	if resp.Records[0]["_operation"] != "create" {
		t.Errorf("record = %v", resp.Records[0])
	}
}

func TestHandleBuild_ValidationError(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodPost, "/api/tenants/t1/imports/invoice/build", map[string]any{
		"mapping": []string{"number", "date"},
		"rows":    [][]any{{"INV-1", "2024-01-01"}, {"INV-2", "never"}},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Row == nil || *resp.Row != 1 || len(resp.Errors) != 1 || resp.Errors[0].Field != "date" {
		t.Errorf("error response = %+v", resp)
	}
}

func TestHandleRun(t *testing.T) {
	srv, store := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodPost, "/api/tenants/t1/imports/invoice/run", invoiceBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	res := decode[core.ImportResult](t, rec)
	if res.NumCreated != 2 || res.Position != 2 || res.JobID == "" {
		t.Errorf("result = %+v", res)
	}
	if got := len(store.List("t1", "invoice")); got != 2 {
		t.Errorf("stored invoices = %d, want 2", got)
	}

	rec = do(t, srv, http.MethodGet, "/api/jobs/"+res.JobID, nil)
	ictx := decode[core.ImportContext](t, rec)
	if ictx.Position != 2 || ictx.Tenant != "t1" || ictx.Kind != "invoice" {
		t.Errorf("job = %+v", ictx)
	}

	// Same job for another tenant
	body := map[string]any{"jobId": res.JobID, "mapping": invoiceBody["mapping"], "rows": invoiceBody["rows"]}
	rec = do(t, srv, http.MethodPost, "/api/tenants/t2/imports/invoice/run", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("job reuse status = %d, want 409", rec.Code)
	}

	rec = do(t, srv, http.MethodDelete, "/api/jobs/"+res.JobID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = do(t, srv, http.MethodGet, "/api/jobs/"+res.JobID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("forgotten job status = %d, want 404", rec.Code)
	}
}

func TestHandleRun_Template(t *testing.T) {
	srv, store := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodPost, "/api/tenants/t1/imports/invoice/run", map[string]any{
		"template": "erp",
		"rows": [][]any{
			{"Price", "Qty", "Invoice", "Customer", "Item"},
			{"10", "3", "INV-7", "Acme", "Widget"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	docs := store.List("t1", "invoice")
	if len(docs) != 1 || docs[0].Number != "INV-7" {
		t.Fatalf("stored = %+v", docs)
	}

	rec = do(t, srv, http.MethodPost, "/api/tenants/t1/imports/invoice/run", map[string]any{
		"template": "missing",
		"rows":     [][]any{{"A"}},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing template status = %d, want 404", rec.Code)
	}
}

func TestHandlePreview(t *testing.T) {
	srv, store := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodPost, "/api/tenants/t1/imports/invoice/preview", invoiceBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[struct {
		Summary core.PreviewSummary `json:"summary"`
	}](t, rec)
	if resp.Summary.Creates != 2 || resp.Summary.NewRefs != 2 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if got := len(store.List("t1", "invoice")); got != 0 {
		t.Errorf("preview wrote %d invoices", got)
	}
}

func TestDecodeImport_Rejects(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxRows = 2
	srv, _ := newTestServer(t, cfg)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"unknown field", `{"mapping":["number"],"rows":[],"colour":1}`, http.StatusBadRequest},
		{"too many rows", `{"mapping":["number"],"rows":[["a"],["b"],["c"]]}`, http.StatusRequestEntityTooLarge},
		{"too large", `{"mapping":["` + strings.Repeat("x", 2<<20) + `"]}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/tenants/t1/imports/invoice/build", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestHandleTemplates(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodGet, "/api/templates?kind=invoice", nil)
	if got := decode[[]core.ImportTemplate](t, rec); len(got) != 1 || got[0].Name != "erp" {
		t.Errorf("templates = %+v", got)
	}
	rec = do(t, srv, http.MethodGet, "/api/templates?kind=bill", nil)
	if got := decode[[]core.ImportTemplate](t, rec); len(got) != 0 {
		t.Errorf("bill templates = %+v", got)
	}

	rec = do(t, srv, http.MethodGet, "/api/importers/invoice/templates/match?headers=customer,invoice,item,qty,price", nil)
	if got := decode[[]core.TemplateMatch](t, rec); len(got) != 1 || got[0].MatchScore != 1 {
		t.Errorf("matches = %+v", got)
	}

	rec = do(t, srv, http.MethodGet, "/api/importers/invoice/templates/match", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing headers status = %d", rec.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}
	srv, _ := newTestServer(t, cfg)

	rec := do(t, srv, http.MethodGet, "/api/importers", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/importers", nil)
	req.Header.Set("X-API-Key", "k1")
	ok := httptest.NewRecorder()
	srv.Router().ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Errorf("valid key status = %d", ok.Code)
	}

	if rec := do(t, srv, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz should not need a key, status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	srv, _ := newTestServer(t, cfg)

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		if rec := do(t, srv, http.MethodGet, "/healthz", nil); rec.Code != want {
			t.Errorf("request %d status = %d, want %d", i, rec.Code, want)
		}
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Unix(0, 0)
	rl := &rateLimiter{visitors: map[string]*visitor{}, rate: 1, window: time.Minute, now: func() time.Time { return now }}

	if !rl.allow("a") || rl.allow("a") {
		t.Fatal("second request inside the window should be refused")
	}
	if !rl.allow("b") {
		t.Error("limits are per IP")
	}
	now = now.Add(2 * time.Minute)
	if !rl.allow("a") {
		t.Error("a new window should refill tokens")
	}
}
