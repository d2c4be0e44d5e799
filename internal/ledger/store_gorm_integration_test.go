package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/joho/godotenv"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/db"
	"github.com/itopex/opex-backend/internal/events"
	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/ledger"
)

var dbAvailable bool

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		os.Exit(m.Run())
	}

	if err := db.Connect(databaseURL, "silent"); err != nil {
		fmt.Fprintln(os.Stderr, "skipping ledger integration tests:", err)
		os.Exit(m.Run())
	}
	if err := ledger.Init(db.DB); err != nil {
		fmt.Fprintln(os.Stderr, "ledger init:", err)
		os.Exit(1)
	}
	dbAvailable = true

	os.Exit(m.Run())
}

// freeMonth picks a far-future month without a status row and removes
// whatever the test stores for it.
func freeMonth(t *testing.T) fiscal.Month {
	t.Helper()
	if !dbAvailable {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	for attempt := 0; attempt < 20; attempt++ {
		m := fiscal.Of(2900+rand.Intn(90), 1+rand.Intn(12))
		var n int64
		db.DB.Model(&ledger.PeriodStatus{}).Where("yyyymm = ?", string(m)).Count(&n)
		if n == 0 {
			t.Cleanup(func() { db.DB.Where("yyyymm = ?", string(m)).Delete(&ledger.PeriodStatus{}) })
			return m
		}
	}
	t.Fatal("no free month")
	return ""
}

func TestConcurrentClosesTransitionOnce(t *testing.T) {
	month := freeMonth(t)
	rec := &events.Recorder{}
	svc := ledger.NewService(ledger.NewGormStore(db.DB), ledger.WithPublisher(rec))

	const workers = 8
	results := make([]ledger.PeriodStatus, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.SetStatus(context.Background(), month, ledger.StatusClosed, fmt.Sprintf("closer-%d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	if n := len(rec.Events()); n != 1 {
		t.Fatalf("expected exactly one transition, got %d events", n)
	}

	stored, err := svc.GetStatus(context.Background(), month)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !stored.Closed() || stored.ClosedBy == nil {
		t.Fatalf("unexpected stored status %+v", stored)
	}
	// Every caller reports the one close that happened.
	for i, r := range results {
		if !r.Closed() || r.ClosedBy == nil || *r.ClosedBy != *stored.ClosedBy {
			t.Errorf("worker %d saw %+v, stored closer %s", i, r, *stored.ClosedBy)
		}
	}
}

func TestGateWaitsForPendingClose(t *testing.T) {
	month := freeMonth(t)
	store := ledger.NewGormStore(db.DB)
	svc := ledger.NewService(store)
	ctx := context.Background()

	closed := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.Tx(ctx, func(st ledger.Store) error {
			if _, err := svc.Bind(st).SetStatus(ctx, month, ledger.StatusClosed, "admin"); err != nil {
				return err
			}
			close(closed)
			<-release
			return nil
		})
	}()
	<-closed

	// The gate runs in its own transaction and blocks on the month until the
	// close commits.
	gate := make(chan error, 1)
	go func() {
		gate <- store.Tx(ctx, func(st ledger.Store) error {
			return svc.Bind(st).CheckMutable(ctx, month)
		})
	}()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("close tx: %v", err)
	}
	if err := <-gate; !errors.Is(err, apperr.ErrMonthClosed) {
		t.Errorf("expected ErrMonthClosed, got %v", err)
	}
}
