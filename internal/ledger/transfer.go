package ledger

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/events"
	"github.com/itopex/opex-backend/internal/fiscal"
)

// ExecuteTransfer appends a plan transfer between two projects. Checks run
// in order: distinct projects, positive amount, open month, known projects,
// sufficient remaining balance of the source.
func (s *Service) ExecuteTransfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	t, err := s.executeTransfer(ctx, req)
	s.observe("transfer", err)
	if err != nil {
		return Transfer{}, err
	}

	s.log.Info("budget transferred",
		zap.Uint("transfer_id", t.TransferID),
		zap.String("from", t.FromProjID),
		zap.String("to", t.ToProjID),
		zap.String("amount", t.TransferAmount.String()),
		zap.String("yyyymm", t.TransferYYYYMM.String()))
	s.publish(ctx, events.TransferApplied, t.TransferredBy, t)
	return t, nil
}

func (s *Service) executeTransfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	from := strings.TrimSpace(req.FromProjID)
	to := strings.TrimSpace(req.ToProjID)
	if from == "" || to == "" {
		return Transfer{}, apperr.Validation("from_proj_id and to_proj_id are required")
	}
	if from == to {
		return Transfer{}, apperr.ErrSelfTransfer
	}
	if !req.Amount.IsPositive() {
		return Transfer{}, apperr.ErrInvalidAmount.WithMessage("transfer amount must be positive")
	}
	if !wholeWon(req.Amount) {
		return Transfer{}, apperr.ErrInvalidAmount.WithMessage("transfer amount must be a whole number of won")
	}
	month, err := fiscal.Parse(req.Month)
	if err != nil {
		return Transfer{}, err
	}

	var entry Transfer
	err = s.store.Tx(ctx, func(st Store) error {
		if err := checkMutable(ctx, st, month); err != nil {
			return err
		}

		// Lock in a stable order so opposite transfers cannot deadlock.
		ids := []string{from, to}
		sort.Strings(ids)
		for _, id := range ids {
			p, err := st.FindProject(ctx, id)
			if err != nil {
				return apperr.Internal("failed to load project", err)
			}
			if p == nil {
				return apperr.NotFound("project %s not found", id)
			}
		}

		balance, err := remainingBalance(ctx, st, from, month)
		if err != nil {
			return err
		}
		if balance.LessThan(req.Amount) {
			return apperr.ErrInsufficientBalance.WithMessage(
				"remaining balance %s of %s in %s is less than %s", balance, from, month, req.Amount)
		}

		entry = Transfer{
			FromProjID:     from,
			ToProjID:       to,
			TransferAmount: req.Amount,
			TransferYYYYMM: month,
			Reason:         strings.TrimSpace(req.Reason),
			Status:         TransferApplied,
			TransferredAt:  s.now(),
			TransferredBy:  actorOrDefault(req.Actor),
		}
		if err := st.AppendTransfer(ctx, &entry); err != nil {
			return apperr.Internal("failed to record transfer", err)
		}
		return nil
	})
	return entry, err
}

// RemainingBalance is plan minus outgoing plus incoming transfers for a
// project and month.
func (s *Service) RemainingBalance(ctx context.Context, projID string, month fiscal.Month) (decimal.Decimal, error) {
	return remainingBalance(ctx, s.store, projID, month)
}

func remainingBalance(ctx context.Context, st Store, projID string, month fiscal.Month) (decimal.Decimal, error) {
	rec, err := st.GetRecord(ctx, projID, month)
	if err != nil {
		return decimal.Zero, apperr.Internal("failed to read execution record", err)
	}
	plan := decimal.Zero
	if rec != nil {
		plan = rec.PlanAmt
	}
	in, out, err := st.TransferTotals(ctx, projID, month)
	if err != nil {
		return decimal.Zero, apperr.Internal("failed to sum transfers", err)
	}
	return plan.Sub(out).Add(in), nil
}

func (s *Service) ListTransfers(ctx context.Context, f TransferFilter) ([]Transfer, error) {
	out, err := s.store.ListTransfers(ctx, f)
	if err != nil {
		return nil, apperr.Internal("failed to list transfers", err)
	}
	return out, nil
}

// Balance breaks down the remaining balance of a project in one month.
type Balance struct {
	ProjID      string          `json:"proj_id"`
	YYYYMM      fiscal.Month    `json:"yyyymm"`
	PlanAmt     decimal.Decimal `json:"plan_amt"`
	TransferIn  decimal.Decimal `json:"transfer_in"`
	TransferOut decimal.Decimal `json:"transfer_out"`
	Remaining   decimal.Decimal `json:"remaining_balance"`
}

func (s *Service) ProjectBalance(ctx context.Context, projID string, month fiscal.Month) (Balance, error) {
	p, err := s.store.FindProject(ctx, projID)
	if err != nil {
		return Balance{}, apperr.Internal("failed to load project", err)
	}
	if p == nil {
		return Balance{}, apperr.NotFound("project %s not found", projID)
	}

	b := Balance{ProjID: projID, YYYYMM: month}
	rec, err := s.store.GetRecord(ctx, projID, month)
	if err != nil {
		return Balance{}, apperr.Internal("failed to read execution record", err)
	}
	if rec != nil {
		b.PlanAmt = rec.PlanAmt
	}
	if b.TransferIn, b.TransferOut, err = s.store.TransferTotals(ctx, projID, month); err != nil {
		return Balance{}, apperr.Internal("failed to sum transfers", err)
	}
	b.Remaining = b.PlanAmt.Sub(b.TransferOut).Add(b.TransferIn)
	return b, nil
}
