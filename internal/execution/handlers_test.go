package execution_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/execution"
	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/ledger"
)

func passthrough(next http.Handler) http.Handler { return next }

type testEnv struct {
	srv *httptest.Server
	svc *ledger.Service
}

func newEnv(t *testing.T) testEnv {
	t.Helper()
	store := ledger.NewMemoryStore()
	store.AddProject(ledger.ProjectRef{ProjID: "A-001", ProjName: "Network maintenance", DeptCode: "A", FiscalYear: 2025, VendorName: "Acme"})
	store.AddProject(ledger.ProjectRef{ProjID: "B-001", ProjName: "Security audit", DeptCode: "B", FiscalYear: 2025})

	svc := ledger.NewService(store)
	err := svc.SetPlanAmounts(context.Background(), "A-001", map[fiscal.Month]decimal.Decimal{
		fiscal.MustParse("202501"): decimal.NewFromInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	srv := httptest.NewServer(execution.SetupRoutes(execution.NewHandler(svc, nil), passthrough))
	t.Cleanup(srv.Close)
	return testEnv{srv: srv, svc: svc}
}

func (e testEnv) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e testEnv) monthly(t *testing.T, month string) map[string]ledger.MonthlyStatus {
	t.Helper()
	resp, err := http.Get(e.srv.URL + "/" + month)
	if err != nil {
		t.Fatalf("GET %s: %v", month, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", month, resp.StatusCode)
	}
	var rows []ledger.MonthlyStatus
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := make(map[string]ledger.MonthlyStatus, len(rows))
	for _, r := range rows {
		out[r.ProjID] = r
	}
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

func TestMonthlyStatusIncludesProjectsWithoutRecords(t *testing.T) {
	env := newEnv(t)

	rows := env.monthly(t, "202501")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows["A-001"].PlanAmt.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("A-001 plan: got %s", rows["A-001"].PlanAmt)
	}
	if rows["A-001"].VendorName != "Acme" {
		t.Errorf("A-001 vendor: got %q", rows["A-001"].VendorName)
	}
	if !rows["B-001"].PlanAmt.IsZero() || !rows["B-001"].EstAmt.IsZero() {
		t.Errorf("B-001 should read as zeros, got %+v", rows["B-001"])
	}
}

func TestUpdateForecast(t *testing.T) {
	env := newEnv(t)

	resp := env.post(t, "/update-forecast", `{"proj_id":"A-001","yyyymm":"202501","est_amt":1100000}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := env.monthly(t, "202501")["A-001"].EstAmt; !got.Equal(decimal.NewFromInt(1_100_000)) {
		t.Errorf("expected forecast 1100000, got %s", got)
	}
}

func TestUpdateForecastErrors(t *testing.T) {
	env := newEnv(t)
	if _, err := env.svc.SetStatus(context.Background(), fiscal.MustParse("202502"), ledger.StatusClosed, "admin"); err != nil {
		t.Fatalf("close: %v", err)
	}

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"closed month", `{"proj_id":"A-001","yyyymm":"202502","est_amt":1}`, http.StatusForbidden, apperr.CodeMonthClosed},
		{"negative", `{"proj_id":"A-001","yyyymm":"202501","est_amt":-5}`, http.StatusBadRequest, apperr.CodeInvalidAmount},
		{"fractional won", `{"proj_id":"A-001","yyyymm":"202501","est_amt":0.4}`, http.StatusBadRequest, apperr.CodeInvalidAmount},
		{"unknown project", `{"proj_id":"Z-999","yyyymm":"202501","est_amt":5}`, http.StatusNotFound, apperr.CodeNotFound},
		{"bad month", `{"proj_id":"A-001","yyyymm":"2025-01","est_amt":5}`, http.StatusBadRequest, apperr.CodeInvalidMonth},
		{"missing project", `{"yyyymm":"202501","est_amt":5}`, http.StatusBadRequest, apperr.CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.post(t, "/update-forecast", tc.body)
			if resp.StatusCode != tc.status {
				t.Errorf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if code := errorCode(t, resp); code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, code)
			}
		})
	}
}

func TestFinalizeMonth(t *testing.T) {
	env := newEnv(t)

	resp := env.post(t, "/finalize-month", `{"yyyymm":"202501"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 with no actuals, got %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != apperr.CodeNothingToFinalize {
		t.Errorf("expected %s, got %s", apperr.CodeNothingToFinalize, code)
	}

	_, err := env.svc.RecordActuals(context.Background(), []ledger.Actual{
		{ProjID: "A-001", Month: fiscal.MustParse("202501"), Amount: decimal.NewFromInt(950_000)},
	})
	if err != nil {
		t.Fatalf("RecordActuals: %v", err)
	}

	resp = env.post(t, "/finalize-month", `{"yyyymm":"202501","user_id":"lee"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Finalized int `json:"finalized"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Finalized != 1 {
		t.Errorf("expected 1 finalized record, got %d", body.Finalized)
	}
	if !env.monthly(t, "202501")["A-001"].IsActualFinalized {
		t.Error("A-001 should be finalized")
	}

	resp = env.post(t, "/update-forecast", `{"proj_id":"A-001","yyyymm":"202501","est_amt":1}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("forecast on finalized record: expected 409, got %d", resp.StatusCode)
	}
}
