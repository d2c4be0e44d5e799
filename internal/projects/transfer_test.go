package projects_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/ledger"
	"github.com/itopex/opex-backend/internal/projects"
)

func passthrough(next http.Handler) http.Handler { return next }

// newTransferServer serves the project routes over an in-memory ledger with
// A-001 planned at 1,000,000 in January 2025.
func newTransferServer(t *testing.T) (*httptest.Server, *ledger.Service) {
	t.Helper()
	store := ledger.NewMemoryStore()
	store.AddProject(ledger.ProjectRef{ProjID: "A-001", ProjName: "Network maintenance", DeptCode: "A", FiscalYear: 2025})
	store.AddProject(ledger.ProjectRef{ProjID: "B-001", ProjName: "Security audit", DeptCode: "B", FiscalYear: 2025})

	svc := ledger.NewService(store)
	err := svc.SetPlanAmounts(context.Background(), "A-001", map[fiscal.Month]decimal.Decimal{
		fiscal.MustParse("202501"): decimal.NewFromInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	h := projects.NewHandler(nil, svc, projects.NewDeptResolver(nil, ""), nil)
	srv := httptest.NewServer(projects.SetupRoutes(h, passthrough))
	t.Cleanup(srv.Close)
	return srv, svc
}

func postTransfer(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/transfer", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /transfer: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
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

func TestTransferMovesBalance(t *testing.T) {
	srv, _ := newTransferServer(t)

	resp := postTransfer(t, srv, `{"from_proj_id":"A-001","to_proj_id":"B-001",
		"transfer_amount":300000,"transfer_yyyymm":"202501","reason":"license true-up","transferred_by":"kim"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var entry ledger.Transfer
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.TransferredBy != "kim" || entry.Status != ledger.TransferApplied {
		t.Errorf("unexpected entry %+v", entry)
	}

	var from, to ledger.Balance
	getJSON(t, srv.URL+"/A-001/balance/202501", &from)
	getJSON(t, srv.URL+"/B-001/balance/202501", &to)
	if !from.Remaining.Equal(decimal.NewFromInt(700_000)) || !from.PlanAmt.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("source balance = %+v", from)
	}
	if !to.Remaining.Equal(decimal.NewFromInt(300_000)) || !to.TransferIn.Equal(decimal.NewFromInt(300_000)) {
		t.Errorf("target balance = %+v", to)
	}

	// B-001 can pass on what it received.
	resp = postTransfer(t, srv, `{"from_proj_id":"B-001","to_proj_id":"A-001","transfer_amount":300000,"transfer_yyyymm":"202501"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("return transfer: expected 200, got %d", resp.StatusCode)
	}
	getJSON(t, srv.URL+"/A-001/balance/202501", &from)
	if !from.Remaining.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("source balance after return = %s", from.Remaining)
	}
}

func TestTransferRejections(t *testing.T) {
	srv, svc := newTransferServer(t)
	if _, err := svc.SetStatus(context.Background(), fiscal.MustParse("202502"), ledger.StatusClosed, "admin"); err != nil {
		t.Fatalf("close month: %v", err)
	}

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"same project", `{"from_proj_id":"A-001","to_proj_id":"A-001","transfer_amount":1,"transfer_yyyymm":"202501"}`, 400, "SELF_TRANSFER"},
		{"zero amount", `{"from_proj_id":"A-001","to_proj_id":"B-001","transfer_amount":0,"transfer_yyyymm":"202501"}`, 400, "INVALID_AMOUNT"},
		{"fractional amount", `{"from_proj_id":"A-001","to_proj_id":"B-001","transfer_amount":0.4,"transfer_yyyymm":"202501"}`, 400, "INVALID_AMOUNT"},
		{"bad month", `{"from_proj_id":"A-001","to_proj_id":"B-001","transfer_amount":1,"transfer_yyyymm":"2025-01"}`, 400, "INVALID_MONTH"},
		{"closed month", `{"from_proj_id":"A-001","to_proj_id":"B-001","transfer_amount":1,"transfer_yyyymm":"202502"}`, 403, "MONTH_CLOSED"},
		{"unknown project", `{"from_proj_id":"A-001","to_proj_id":"Z-999","transfer_amount":1,"transfer_yyyymm":"202501"}`, 404, "NOT_FOUND"},
		{"over balance", `{"from_proj_id":"A-001","to_proj_id":"B-001","transfer_amount":1000001,"transfer_yyyymm":"202501"}`, 409, "INSUFFICIENT_BALANCE"},
		{"missing target", `{"from_proj_id":"A-001","transfer_amount":1,"transfer_yyyymm":"202501"}`, 400, "INVALID_INPUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postTransfer(t, srv, tc.body)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.StatusCode)
			}
			if code := errorCode(t, resp); code != tc.wantCode {
				t.Errorf("expected code %s, got %s", tc.wantCode, code)
			}
		})
	}

	var entries []ledger.Transfer
	getJSON(t, srv.URL+"/transfers", &entries)
	if len(entries) != 0 {
		t.Errorf("rejected transfers must not be recorded, got %d", len(entries))
	}
}

func TestListTransfersFilter(t *testing.T) {
	srv, svc := newTransferServer(t)
	ctx := context.Background()
	if err := svc.SetPlanAmounts(ctx, "A-001", map[fiscal.Month]decimal.Decimal{
		fiscal.MustParse("202503"): decimal.NewFromInt(500),
	}); err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	for _, month := range []string{"202501", "202503"} {
		resp := postTransfer(t, srv, `{"from_proj_id":"A-001","to_proj_id":"B-001","transfer_amount":100,"transfer_yyyymm":"`+month+`"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("transfer %s: status %d", month, resp.StatusCode)
		}
	}

	var all, march, byProject []ledger.Transfer
	getJSON(t, srv.URL+"/transfers", &all)
	getJSON(t, srv.URL+"/transfers?yyyymm=202503", &march)
	getJSON(t, srv.URL+"/transfers?proj_id=B-001", &byProject)
	if len(all) != 2 || len(march) != 1 || len(byProject) != 2 {
		t.Errorf("got all=%d march=%d by project=%d", len(all), len(march), len(byProject))
	}
	if len(march) == 1 && march[0].TransferYYYYMM != "202503" {
		t.Errorf("unexpected month %s", march[0].TransferYYYYMM)
	}

	if status := getJSON(t, srv.URL+"/transfers?yyyymm=2025", nil); status != http.StatusBadRequest {
		t.Errorf("bad filter month: expected 400, got %d", status)
	}
}

func TestBalanceUnknownProject(t *testing.T) {
	srv, _ := newTransferServer(t)
	if status := getJSON(t, srv.URL+"/Z-999/balance/202501", nil); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
	if status := getJSON(t, srv.URL+"/A-001/balance/13", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
}
