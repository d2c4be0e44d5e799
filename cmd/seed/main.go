package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

var (
	fixturePath = flag.String("fixture", "", "Path to the master data YAML fixture (required)")
	dsn         = flag.String("dsn", "", "Postgres DSN (default: env DATABASE_URL)")
	dryRun      = flag.Bool("dry-run", false, "Parse and validate only; no DB writes")
)

type counts struct {
	Vendors, GLAccounts, CostCenters, BudgetCodes int64
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *fixturePath == "" {
		fatalf("--fixture is required")
	}
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}

	fx, err := loadFixture(*fixturePath)
	if err != nil {
		fatalf("fixture: %v", err)
	}
	if err := fx.validate(); err != nil {
		fatalf("fixture validation failed: %v", err)
	}

	if *dryRun {
		printPlan(fx)
		fmt.Println("Dry run complete. No changes made.")
		return
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	before, err := countAll(ctx, tx)
	if err != nil {
		fatalf("pre-count (run the server once to create the tables): %v", err)
	}

	if err := upsertAll(ctx, tx, fx); err != nil {
		fatalf("upsert: %v", err)
	}

	after, err := countAll(ctx, tx)
	if err != nil {
		fatalf("post-count: %v", err)
	}
	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}

	fmt.Printf("vendors %d -> %d, gl_accounts %d -> %d, cost_centers %d -> %d, budget_codes %d -> %d\n",
		before.Vendors, after.Vendors, before.GLAccounts, after.GLAccounts,
		before.CostCenters, after.CostCenters, before.BudgetCodes, after.BudgetCodes)
	fmt.Println("Seed complete")
}

func printPlan(fx *Fixture) {
	fmt.Println("Plan preview:")
	fmt.Printf("  Vendors:      %d\n", len(fx.Vendors))
	fmt.Printf("  G/L accounts: %d\n", len(fx.GLAccounts))
	fmt.Printf("  Cost centers: %d\n", len(fx.CostCenters))
	fmt.Printf("  Budget codes: %d\n", len(fx.BudgetCodes))
	fmt.Println("  Existing rows with the same keys are updated in place.")
}

func countAll(ctx context.Context, tx *sql.Tx) (counts, error) {
	var c counts
	targets := []struct {
		table string
		dst   *int64
	}{
		{"opex.vendors", &c.Vendors},
		{"opex.gl_accounts", &c.GLAccounts},
		{"opex.cost_centers", &c.CostCenters},
		{"opex.budget_codes", &c.BudgetCodes},
	}
	for _, t := range targets {
		if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM "+t.table).Scan(t.dst); err != nil {
			return c, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return c, nil
}

func upsertAll(ctx context.Context, tx *sql.Tx, fx *Fixture) error {
	now := time.Now()

	for _, v := range fx.Vendors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO opex.vendors (vendor_id, biz_reg_no, vendor_name, sap_vendor_cd, aliases, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, $6, $6)
			ON CONFLICT (vendor_id) DO UPDATE SET
				biz_reg_no = EXCLUDED.biz_reg_no,
				vendor_name = EXCLUDED.vendor_name,
				sap_vendor_cd = EXCLUDED.sap_vendor_cd,
				aliases = EXCLUDED.aliases,
				updated_at = EXCLUDED.updated_at`,
			v.ID, v.BizRegNo, v.Name, v.SAPCode, pq.StringArray(v.Aliases), now)
		if err != nil {
			return fmt.Errorf("vendor %s: %w", v.ID, err)
		}
	}

	for _, a := range fx.GLAccounts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO opex.gl_accounts (gl_account_code, gl_account_name, account_type, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, true, $4, $4)
			ON CONFLICT (gl_account_code) DO UPDATE SET
				gl_account_name = EXCLUDED.gl_account_name,
				account_type = EXCLUDED.account_type,
				updated_at = EXCLUDED.updated_at`,
			a.Code, a.Name, a.Type, now)
		if err != nil {
			return fmt.Errorf("gl account %s: %w", a.Code, err)
		}
	}

	for _, c := range fx.CostCenters {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO opex.cost_centers (cc_code, cc_name, is_active, created_at, updated_at)
			VALUES ($1, $2, true, $3, $3)
			ON CONFLICT (cc_code) DO UPDATE SET
				cc_name = EXCLUDED.cc_name,
				updated_at = EXCLUDED.updated_at`,
			c.Code, c.Name, now)
		if err != nil {
			return fmt.Errorf("cost center %s: %w", c.Code, err)
		}
	}

	for _, c := range fx.orderedBudgetCodes() {
		var parent sql.NullString
		if c.Parent != "" {
			parent = sql.NullString{String: c.Parent, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO opex.budget_codes (code_id, code_name, parent_code_id, code_type, sort_order, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, true, $6)
			ON CONFLICT (code_id) DO UPDATE SET
				code_name = EXCLUDED.code_name,
				parent_code_id = EXCLUDED.parent_code_id,
				code_type = EXCLUDED.code_type,
				sort_order = EXCLUDED.sort_order`,
			c.ID, c.Name, parent, c.Type, c.Sort, now)
		if err != nil {
			return fmt.Errorf("budget code %s: %w", c.ID, err)
		}
	}
	return nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
