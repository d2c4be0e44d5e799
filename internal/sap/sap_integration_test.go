package sap_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/itopex/opex-backend/internal/db"
	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/importer"
	"github.com/itopex/opex-backend/internal/ledger"
	"github.com/itopex/opex-backend/internal/projects"
	"github.com/itopex/opex-backend/internal/sap"
)

var dbAvailable bool

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		os.Exit(m.Run())
	}

	if err := db.Connect(databaseURL, "silent"); err != nil {
		fmt.Fprintln(os.Stderr, "skipping sap integration tests:", err)
		os.Exit(m.Run())
	}
	dbAvailable = true

	for name, initFn := range map[string]func() error{
		"projects": func() error { return projects.Init(db.DB) },
		"ledger":   func() error { return ledger.Init(db.DB) },
		"sap":      func() error { return sap.Init(db.DB) },
	} {
		if err := initFn(); err != nil {
			fmt.Fprintf(os.Stderr, "%s init: %v\n", name, err)
			os.Exit(1)
		}
	}

	os.Exit(m.Run())
}

// createProject inserts a throwaway project whose id matches the posting
// text pattern and removes it with its postings and records afterwards.
func createProject(t *testing.T) string {
	t.Helper()
	if !dbAvailable {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	var id string
	for attempt := 0; attempt < 20; attempt++ {
		candidate := fmt.Sprintf("Q-%03d", rand.Intn(1000))
		var n int64
		db.DB.Model(&projects.Project{}).Where("proj_id = ?", candidate).Count(&n)
		if n == 0 {
			id = candidate
			break
		}
	}
	if id == "" {
		t.Fatal("no free test project id")
	}

	p := projects.Project{ProjID: id, ProjName: "sap test " + id, DeptCode: "Q", FiscalYear: 2031, ProjStatus: projects.StatusPending}
	if err := db.DB.Create(&p).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	t.Cleanup(func() {
		db.DB.Where("mapped_proj_id = ?", id).Delete(&sap.Posting{})
		db.DB.Where("proj_id = ?", id).Delete(&ledger.ExecutionRecord{})
		db.DB.Where("proj_id = ?", id).Delete(&projects.Project{})
	})
	return id
}

func TestUploadMapAndSync(t *testing.T) {
	projID := createProject(t)
	ctx := context.Background()
	svc := sap.NewService(db.DB, ledger.NewService(ledger.NewGormStore(db.DB)), nil)

	slip := "T" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	csv := "전표 번호,전기일,금액(현지 통화),개별 항목,회계연도,텍스트\n" +
		fmt.Sprintf("%s,2031-01-10,\"700,000\",1,2031,[%s] 유지보수\n", slip, projID) +
		fmt.Sprintf("%s,2031-01-10,\"300,000\",2,2031,%s 추가분\n", slip, projID) +
		fmt.Sprintf("%s,2031-01-10,\"700,000\",1,2031,[%s] 유지보수\n", slip, projID)
	sheet, err := importer.Read(strings.NewReader(csv), "export.csv")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	res, err := svc.Import(ctx, sheet)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.SuccessCount != 2 || res.DuplicateCount != 1 {
		t.Fatalf("expected 2 imported and 1 duplicate, got %+v", res)
	}

	if _, err := svc.AutoMap(ctx, "tester"); err != nil {
		t.Fatalf("AutoMap: %v", err)
	}

	var mapped []sap.Posting
	db.DB.Where("slip_no = ?", slip).Find(&mapped)
	for _, p := range mapped {
		if p.MapStatus != sap.StatusMapped || p.MappedProjID == nil || *p.MappedProjID != projID || p.MappedBy != "tester" {
			t.Errorf("posting %d not mapped: %+v", p.RawID, p)
		}
	}

	var rec ledger.ExecutionRecord
	err = db.DB.Where("proj_id = ? AND yyyymm = ?", projID, fiscal.MustParse("203101")).First(&rec).Error
	if err != nil {
		t.Fatalf("execution record: %v", err)
	}
	if !rec.ActualAmt.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("actual = %s, want 1000000", rec.ActualAmt)
	}
}

func actualOf(t *testing.T, projID string, month fiscal.Month) decimal.Decimal {
	t.Helper()
	var rec ledger.ExecutionRecord
	err := db.DB.Where("proj_id = ? AND yyyymm = ?", projID, month).First(&rec).Error
	if err != nil {
		t.Fatalf("execution record %s/%s: %v", projID, month, err)
	}
	return rec.ActualAmt
}

func TestManualRemapResetsPreviousProject(t *testing.T) {
	from := createProject(t)
	to := createProject(t)
	ctx := context.Background()
	svc := sap.NewService(db.DB, ledger.NewService(ledger.NewGormStore(db.DB)), nil)
	jan := fiscal.MustParse("203101")

	slip := "R" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	csv := "전표 번호,전기일,금액(현지 통화),개별 항목,회계연도,텍스트\n" +
		fmt.Sprintf("%s,2031-01-20,\"250,000\",1,2031,[%s] 라이선스\n", slip, from)
	sheet, err := importer.Read(strings.NewReader(csv), "export.csv")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := svc.Import(ctx, sheet); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if _, err := svc.AutoMap(ctx, "tester"); err != nil {
		t.Fatalf("AutoMap: %v", err)
	}
	if got := actualOf(t, from, jan); !got.Equal(decimal.NewFromInt(250_000)) {
		t.Fatalf("actual of %s = %s, want 250000", from, got)
	}

	var posting sap.Posting
	if err := db.DB.First(&posting, "slip_no = ?", slip).Error; err != nil {
		t.Fatalf("load posting: %v", err)
	}
	if _, err := svc.ManualMap(ctx, []uint{posting.RawID}, to, "tester"); err != nil {
		t.Fatalf("ManualMap: %v", err)
	}

	if got := actualOf(t, from, jan); !got.IsZero() {
		t.Errorf("actual of %s = %s after remap, want 0", from, got)
	}
	if got := actualOf(t, to, jan); !got.Equal(decimal.NewFromInt(250_000)) {
		t.Errorf("actual of %s = %s, want 250000", to, got)
	}
}

func TestManualMapUnknownProject(t *testing.T) {
	if !dbAvailable {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	svc := sap.NewService(db.DB, ledger.NewService(ledger.NewGormStore(db.DB)), nil)
	_, err := svc.ManualMap(context.Background(), []uint{1}, "NOPE-1", "tester")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}
