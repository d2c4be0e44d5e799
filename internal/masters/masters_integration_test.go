package masters_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"

	"github.com/itopex/opex-backend/internal/db"
	"github.com/itopex/opex-backend/internal/masters"
)

var dbAvailable bool

var testServer *httptest.Server

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		os.Exit(m.Run())
	}

	if err := db.Connect(databaseURL, "silent"); err != nil {
		fmt.Fprintln(os.Stderr, "skipping masters integration tests:", err)
		os.Exit(m.Run())
	}
	dbAvailable = true

	if err := masters.Init(db.DB); err != nil {
		fmt.Fprintln(os.Stderr, "masters init:", err)
		os.Exit(1)
	}

	open := func(next http.Handler) http.Handler { return next }
	h := masters.NewHandler(db.DB, nil)

	r := chi.NewRouter()
	r.Mount("/vendors", masters.SetupVendorRoutes(h, open))
	r.Mount("/accounts", masters.SetupAccountRoutes(h, open))
	testServer = httptest.NewServer(r)

	code := m.Run()
	testServer.Close()
	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if !dbAvailable {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
}

// uniqueBizRegNo returns a registration number no other test run uses.
func uniqueBizRegNo() string {
	return "T" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(testServer.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateVendorRejectsDuplicateBizRegNo(t *testing.T) {
	requireDB(t)
	regNo := uniqueBizRegNo()
	t.Cleanup(func() { db.DB.Where("biz_reg_no = ?", regNo).Delete(&masters.Vendor{}) })

	resp := postJSON(t, "/vendors/", map[string]any{"vendor_name": "Acme", "biz_reg_no": regNo})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var v masters.Vendor
	json.NewDecoder(resp.Body).Decode(&v)
	if !strings.HasPrefix(v.VendorID, "V") || len(v.VendorID) != 5 {
		t.Errorf("unexpected generated id %q", v.VendorID)
	}

	resp = postJSON(t, "/vendors/", map[string]any{"vendor_name": "Acme again", "biz_reg_no": regNo})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

func vendorSheet(t *testing.T, rows ...[]any) (*bytes.Buffer, string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	header := []any{"업체명", "사업자등록번호", "SAP 코드", "별칭"}
	f.SetSheetRow(sheet, "A1", &header)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		f.SetSheetRow(sheet, cell, &row)
	}
	xlsx, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "vendors.xlsx")
	part.Write(xlsx.Bytes())
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestBulkVendors(t *testing.T) {
	requireDB(t)
	a, b := uniqueBizRegNo(), uniqueBizRegNo()
	t.Cleanup(func() { db.DB.Where("biz_reg_no IN ?", []string{a, b}).Delete(&masters.Vendor{}) })

	body, ctype := vendorSheet(t,
		[]any{"Alpha", a, "S100", "alpha, α"},
		[]any{"Beta", b, "", ""},
		[]any{"Alpha dup", a, "", ""},
	)
	resp, err := http.Post(testServer.URL+"/vendors/bulk", ctype, body)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res struct {
		TotalCount     int `json:"total_count"`
		SuccessCount   int `json:"success_count"`
		DuplicateCount int `json:"duplicate_count"`
	}
	json.NewDecoder(resp.Body).Decode(&res)
	if res.TotalCount != 3 || res.SuccessCount != 2 || res.DuplicateCount != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	var alpha masters.Vendor
	if err := db.DB.First(&alpha, "biz_reg_no = ?", a).Error; err != nil {
		t.Fatalf("load alpha: %v", err)
	}
	if len(alpha.Aliases) != 2 {
		t.Errorf("expected 2 aliases, got %v", alpha.Aliases)
	}
}

func TestBudgetCodeLifecycle(t *testing.T) {
	requireDB(t)
	codeType := "TEST_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	t.Cleanup(func() { db.DB.Where("code_type = ?", codeType).Delete(&masters.BudgetCode{}) })

	resp := postJSON(t, "/accounts/budget-code", map[string]any{"name": "Root", "code_type": codeType})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var root masters.BudgetCode
	json.NewDecoder(resp.Body).Decode(&root)
	if root.CodeID != codeType+"_001" {
		t.Errorf("unexpected id %s", root.CodeID)
	}

	resp = postJSON(t, "/accounts/budget-code", map[string]any{"name": "Child", "code_type": codeType, "parent_code_id": root.CodeID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, testServer.URL+"/accounts/budget-code/"+root.CodeID, nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusConflict {
		t.Errorf("deleting a parent: expected 409, got %d", del.StatusCode)
	}
}
