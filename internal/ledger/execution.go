package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/events"
	"github.com/itopex/opex-backend/internal/fiscal"
)

// MonthlyStatus lists every project of month's fiscal year with its
// execution figures. Missing records read as zero.
func (s *Service) MonthlyStatus(ctx context.Context, month fiscal.Month) ([]MonthlyStatus, error) {
	projects, err := s.store.ListProjects(ctx, month.Year())
	if err != nil {
		return nil, apperr.Internal("failed to list projects", err)
	}
	records, err := s.store.ListRecords(ctx, month)
	if err != nil {
		return nil, apperr.Internal("failed to list execution records", err)
	}
	transfers, err := s.store.ListTransfers(ctx, TransferFilter{Month: month})
	if err != nil {
		return nil, apperr.Internal("failed to list transfers", err)
	}

	byProject := make(map[string]ExecutionRecord, len(records))
	for _, r := range records {
		byProject[r.ProjID] = r
	}
	in := make(map[string]decimal.Decimal)
	out := make(map[string]decimal.Decimal)
	for _, t := range transfers {
		if t.Status != TransferApplied {
			continue
		}
		in[t.ToProjID] = in[t.ToProjID].Add(t.TransferAmount)
		out[t.FromProjID] = out[t.FromProjID].Add(t.TransferAmount)
	}

	// Records can belong to a project registered under another fiscal year.
	listed := make(map[string]bool, len(projects))
	for _, p := range projects {
		listed[p.ProjID] = true
	}
	for _, r := range records {
		if listed[r.ProjID] {
			continue
		}
		p, err := s.store.FindProject(ctx, r.ProjID)
		if err != nil {
			return nil, apperr.Internal("failed to load project", err)
		}
		if p == nil {
			p = &ProjectRef{ProjID: r.ProjID}
		}
		projects = append(projects, *p)
		listed[r.ProjID] = true
	}

	rows := make([]MonthlyStatus, 0, len(projects))
	for _, p := range projects {
		rec := byProject[p.ProjID]
		row := MonthlyStatus{
			ProjID:            p.ProjID,
			ProjName:          p.ProjName,
			DeptCode:          p.DeptCode,
			VendorName:        p.VendorName,
			YYYYMM:            month,
			PlanAmt:           rec.PlanAmt,
			ActualAmt:         rec.ActualAmt,
			EstAmt:            rec.EstAmt,
			TransferIn:        in[p.ProjID],
			TransferOut:       out[p.ProjID],
			IsActualFinalized: rec.IsActualFinalized,
		}
		row.AdjustedPlanAmt = row.PlanAmt.Sub(row.TransferOut).Add(row.TransferIn)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProjID < rows[j].ProjID })
	return rows, nil
}

// UpdateForecast sets the forecast of one project and month, creating the
// record when absent.
func (s *Service) UpdateForecast(ctx context.Context, projID string, month fiscal.Month, amount decimal.Decimal) (ExecutionRecord, error) {
	var result ExecutionRecord
	err := s.store.Tx(ctx, func(st Store) error {
		if err := checkMutable(ctx, st, month); err != nil {
			return err
		}
		rec, err := st.GetRecord(ctx, projID, month)
		if err != nil {
			return apperr.Internal("failed to read execution record", err)
		}
		if rec != nil && rec.IsActualFinalized {
			return apperr.ErrAlreadyFinalized.WithMessage("actuals of %s for %s are finalized", projID, month)
		}
		if amount.IsNegative() {
			return apperr.ErrInvalidAmount.WithMessage("forecast amount must not be negative")
		}
		if !wholeWon(amount) {
			return apperr.ErrInvalidAmount.WithMessage("forecast amount must be a whole number of won")
		}
		if rec == nil {
			p, err := st.FindProject(ctx, projID)
			if err != nil {
				return apperr.Internal("failed to load project", err)
			}
			if p == nil {
				return apperr.NotFound("project %s not found", projID)
			}
			rec = &ExecutionRecord{ProjID: projID, YYYYMM: month, PlanAmt: decimal.Zero, ActualAmt: decimal.Zero}
		}
		rec.EstAmt = amount
		if err := st.SaveRecord(ctx, rec); err != nil {
			return apperr.Internal("failed to save forecast", err)
		}
		result = *rec
		return nil
	})
	s.observe("update_forecast", err)
	if err != nil {
		return ExecutionRecord{}, err
	}
	return result, nil
}

// FinalizeMonth marks every record of month with a non-zero actual as
// finalized. Finalizing does not close the month and cannot be undone.
func (s *Service) FinalizeMonth(ctx context.Context, month fiscal.Month, actor string) ([]ExecutionRecord, error) {
	var (
		result    []ExecutionRecord
		finalized int
	)
	by := actorOrDefault(actor)
	err := s.store.Tx(ctx, func(st Store) error {
		if err := checkMutable(ctx, st, month); err != nil {
			return err
		}
		records, err := st.ListRecords(ctx, month)
		if err != nil {
			return apperr.Internal("failed to list execution records", err)
		}
		total := decimal.Zero
		for _, r := range records {
			total = total.Add(r.ActualAmt)
		}
		if total.IsZero() {
			return apperr.ErrNothingToFinalize.WithMessage("no actual amounts to finalize for %s", month)
		}

		now := s.now()
		finalized = 0
		for i := range records {
			r := &records[i]
			if r.ActualAmt.IsZero() || r.IsActualFinalized {
				continue
			}
			r.IsActualFinalized = true
			r.FinalizedAt = &now
			r.FinalizedBy = &by
			if err := st.SaveRecord(ctx, r); err != nil {
				return apperr.Internal("failed to finalize execution record", err)
			}
			finalized++
		}
		result = records
		return nil
	})
	s.observe("finalize_month", err)
	if err != nil {
		return nil, err
	}

	s.log.Info("month finalized",
		zap.String("yyyymm", month.String()),
		zap.Int("records", finalized),
		zap.String("actor", by))
	s.publish(ctx, events.ExecutionFinalized, by, map[string]any{
		"yyyymm":  month,
		"records": finalized,
	})
	return result, nil
}

// SetPlanAmounts writes plan amounts for a project. Months whose amount does
// not change are skipped; a changed amount in a closed month fails the whole
// call.
func (s *Service) SetPlanAmounts(ctx context.Context, projID string, amounts map[fiscal.Month]decimal.Decimal) error {
	months := make([]fiscal.Month, 0, len(amounts))
	for m := range amounts {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	err := s.store.Tx(ctx, func(st Store) error {
		for _, m := range months {
			amount := amounts[m]
			if amount.IsNegative() {
				return apperr.ErrInvalidAmount.WithMessage("plan amount for %s must not be negative", m)
			}
			if !wholeWon(amount) {
				return apperr.ErrInvalidAmount.WithMessage("plan amount for %s must be a whole number of won", m)
			}
			// The period is read before the record: months lock ahead of rows.
			gate := checkMutable(ctx, st, m)
			if gate != nil && apperr.KindOf(gate) == apperr.KindInternal {
				return gate
			}
			rec, err := st.GetRecord(ctx, projID, m)
			if err != nil {
				return apperr.Internal("failed to read execution record", err)
			}
			current := decimal.Zero
			if rec != nil {
				current = rec.PlanAmt
			}
			if current.Equal(amount) {
				continue
			}
			if gate != nil {
				return gate
			}
			if rec == nil {
				rec = &ExecutionRecord{ProjID: projID, YYYYMM: m, ActualAmt: decimal.Zero, EstAmt: decimal.Zero}
			}
			rec.PlanAmt = amount
			if err := st.SaveRecord(ctx, rec); err != nil {
				return apperr.Internal("failed to save plan amount", err)
			}
		}
		return nil
	})
	s.observe("set_plan", err)
	return err
}

// RecordActuals stores reconciled actual totals. Closed months and finalized
// records are left untouched and counted as skipped.
func (s *Service) RecordActuals(ctx context.Context, actuals []Actual) (SyncResult, error) {
	var res SyncResult
	err := s.store.Tx(ctx, func(st Store) error {
		res = SyncResult{}
		// Gate every month up front in ascending order, as BulkSetStatus does.
		closed := make(map[fiscal.Month]bool)
		for _, a := range actuals {
			closed[a.Month] = false
		}
		months := make([]fiscal.Month, 0, len(closed))
		for m := range closed {
			months = append(months, m)
		}
		sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
		for _, m := range months {
			err := checkMutable(ctx, st, m)
			if err != nil && apperr.KindOf(err) == apperr.KindInternal {
				return err
			}
			closed[m] = err != nil
		}

		for _, a := range actuals {
			if closed[a.Month] {
				res.SkippedClosed++
				continue
			}

			rec, err := st.GetRecord(ctx, a.ProjID, a.Month)
			if err != nil {
				return apperr.Internal("failed to read execution record", err)
			}
			switch {
			case rec == nil && a.Amount.IsZero():
				continue
			case rec == nil:
				rec = &ExecutionRecord{ProjID: a.ProjID, YYYYMM: a.Month, PlanAmt: decimal.Zero, EstAmt: decimal.Zero}
				res.Created++
			case rec.IsActualFinalized:
				res.SkippedFinalized++
				continue
			case rec.ActualAmt.Equal(a.Amount):
				continue
			default:
				res.Updated++
			}
			rec.ActualAmt = a.Amount
			if err := st.SaveRecord(ctx, rec); err != nil {
				return apperr.Internal("failed to save actual amount", err)
			}
		}
		return nil
	})
	s.observe("record_actuals", err)
	if err != nil {
		return SyncResult{}, err
	}
	s.log.Info("actuals synchronised", zap.Stringer("result", res))
	return res, nil
}

// Dependents summarises ledger data that references a project.
type Dependents struct {
	Transfers     int
	ActiveRecords int
}

func (d Dependents) Any() bool { return d.Transfers > 0 || d.ActiveRecords > 0 }

func (s *Service) ProjectDependents(ctx context.Context, projID string) (Dependents, error) {
	transfers, err := s.store.ListTransfers(ctx, TransferFilter{ProjID: projID})
	if err != nil {
		return Dependents{}, apperr.Internal("failed to list transfers", err)
	}
	records, err := s.store.ListProjectRecords(ctx, projID)
	if err != nil {
		return Dependents{}, apperr.Internal("failed to list execution records", err)
	}
	d := Dependents{Transfers: len(transfers)}
	for _, r := range records {
		if r.Active() {
			d.ActiveRecords++
		}
	}
	return d, nil
}

// DeleteProjectRecords drops the plan rows of a project that has no
// dependents.
func (s *Service) DeleteProjectRecords(ctx context.Context, projID string) error {
	if err := s.store.DeleteProjectRecords(ctx, projID); err != nil {
		return apperr.Internal("failed to delete execution records", err)
	}
	return nil
}

// ProjectRecords returns every execution record of a project in month order.
func (s *Service) ProjectRecords(ctx context.Context, projID string) ([]ExecutionRecord, error) {
	records, err := s.store.ListProjectRecords(ctx, projID)
	if err != nil {
		return nil, apperr.Internal("failed to list execution records", err)
	}
	return records, nil
}
