// Package report aggregates the execution ledger into yearly budget versus
// actual figures per project.
package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/ledger"
)

// Row is one project's figures for a fiscal year.
type Row struct {
	DeptCode        string          `json:"dept_code"`
	ProjID          string          `json:"proj_id"`
	ProjName        string          `json:"proj_name"`
	PlanAmt         decimal.Decimal `json:"plan_amt"`
	AdjustedPlanAmt decimal.Decimal `json:"adjusted_plan_amt"`
	ActualAmt       decimal.Decimal `json:"actual_amt"`
	EstAmt          decimal.Decimal `json:"est_amt"`
	DiffAmt         decimal.Decimal `json:"diff_amt"`
	BurnRate        float64         `json:"burn_rate"`

	PlanDisplay   string `json:"plan_display"`
	ActualDisplay string `json:"actual_display"`
	DiffDisplay   string `json:"diff_display"`
}

// BurnRate is actual as a percentage of plan with one decimal; zero plans
// burn at 0.
func BurnRate(actual, plan decimal.Decimal) float64 {
	if !plan.IsPositive() {
		return 0
	}
	return actual.Div(plan).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
}

type Builder struct {
	ledger *ledger.Service
}

func NewBuilder(svc *ledger.Service) *Builder {
	return &Builder{ledger: svc}
}

// BudgetVsActual sums the twelve months of year per project, ordered by
// department and project id.
func (b *Builder) BudgetVsActual(ctx context.Context, year int) ([]Row, error) {
	months := fiscal.MonthsOf(year)
	views := make([][]ledger.MonthlyStatus, len(months))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, m := range months {
		g.Go(func() error {
			rows, err := b.ledger.MonthlyStatus(ctx, m)
			views[i] = rows
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byProject := make(map[string]*Row)
	for _, view := range views {
		for _, s := range view {
			r, ok := byProject[s.ProjID]
			if !ok {
				r = &Row{DeptCode: s.DeptCode, ProjID: s.ProjID, ProjName: s.ProjName}
				byProject[s.ProjID] = r
			}
			r.PlanAmt = r.PlanAmt.Add(s.PlanAmt)
			r.AdjustedPlanAmt = r.AdjustedPlanAmt.Add(s.AdjustedPlanAmt)
			r.ActualAmt = r.ActualAmt.Add(s.ActualAmt)
			r.EstAmt = r.EstAmt.Add(s.EstAmt)
		}
	}

	out := make([]Row, 0, len(byProject))
	for _, r := range byProject {
		r.DiffAmt = r.PlanAmt.Sub(r.ActualAmt)
		r.BurnRate = BurnRate(r.ActualAmt, r.PlanAmt)
		r.PlanDisplay = KRW(r.PlanAmt)
		r.ActualDisplay = KRW(r.ActualAmt)
		r.DiffDisplay = KRW(r.DiffAmt)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeptCode != out[j].DeptCode {
			return out[i].DeptCode < out[j].DeptCode
		}
		return out[i].ProjID < out[j].ProjID
	})
	return out, nil
}
