package sap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/importer"
	"github.com/itopex/opex-backend/internal/ledger"
	"github.com/itopex/opex-backend/internal/metrics"
	"github.com/itopex/opex-backend/internal/projects"
)

// Service owns the posting table and feeds mapped totals into the ledger.
type Service struct {
	db     *gorm.DB
	ledger *ledger.Service
	log    *zap.Logger
	now    func() time.Time
}

func NewService(gdb *gorm.DB, svc *ledger.Service, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: gdb, ledger: svc, log: log, now: time.Now}
}

// Import stores the postings of an export sheet. Rows already uploaded
// (same fiscal year, slip and line item) are counted as duplicates.
func (s *Service) Import(ctx context.Context, sheet *importer.Sheet) (importer.BulkResult, error) {
	if err := sheet.Require(requiredColumns...); err != nil {
		return importer.BulkResult{}, err
	}

	var res importer.BulkResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res = importer.BulkResult{}
		for _, row := range sheet.Rows {
			if skipRow(row) {
				continue
			}
			res.TotalCount++

			p, err := postingFromRow(row)
			if err != nil {
				res.Reject(row.Line, err.Error())
				continue
			}
			created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
			if created.Error != nil {
				return apperr.Internal("failed to store posting", created.Error)
			}
			if created.RowsAffected == 0 {
				res.Duplicate(fmt.Sprintf("%s/%s/%d", p.FiscalYear, p.SlipNo, p.LineItem))
				continue
			}
			res.Created()
		}
		return nil
	})
	if err != nil {
		return importer.BulkResult{}, err
	}

	res.Finish()
	metrics.SAPPostings.WithLabelValues("uploaded").Add(float64(res.SuccessCount))
	metrics.SAPPostings.WithLabelValues("duplicate").Add(float64(res.DuplicateCount))
	s.log.Info("sap postings imported",
		zap.Int("total", res.TotalCount),
		zap.Int("imported", res.SuccessCount),
		zap.Int("duplicates", res.DuplicateCount),
		zap.Int("invalid", res.InvalidCount))
	return res, nil
}

// Unmapped lists postings not yet assigned to a project.
func (s *Service) Unmapped(ctx context.Context) ([]Posting, error) {
	var out []Posting
	err := s.db.WithContext(ctx).
		Where("map_status = ?", StatusUnmapped).
		Order("slip_no, line_item").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Internal("failed to list unmapped postings", err)
	}
	return out, nil
}

// AutoMap assigns unmapped postings whose text names an existing project,
// then refreshes the actuals when anything was mapped.
func (s *Service) AutoMap(ctx context.Context, actor string) (MapResult, error) {
	var res MapResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []Posting
		if err := tx.Select("raw_id", "text").
			Where("map_status = ?", StatusUnmapped).
			Find(&pending).Error; err != nil {
			return apperr.Internal("failed to load unmapped postings", err)
		}
		res.Scanned = len(pending)

		byProject := make(map[string][]uint)
		for _, p := range pending {
			if id := ExtractProjectID(p.Text); id != "" {
				byProject[id] = append(byProject[id], p.RawID)
			}
		}
		if len(byProject) == 0 {
			return nil
		}

		candidates := make([]string, 0, len(byProject))
		for id := range byProject {
			candidates = append(candidates, id)
		}
		var existing []string
		if err := tx.Model(&projects.Project{}).
			Where("proj_id IN ?", candidates).
			Pluck("proj_id", &existing).Error; err != nil {
			return apperr.Internal("failed to look up projects", err)
		}
		sort.Strings(existing)

		for _, id := range existing {
			n, _, err := s.assign(tx, byProject[id], id, actor)
			if err != nil {
				return err
			}
			res.Mapped += n
		}
		return nil
	})
	if err != nil {
		return MapResult{}, err
	}

	res.Message = fmt.Sprintf("%d of %d postings mapped", res.Mapped, res.Scanned)
	metrics.SAPPostings.WithLabelValues("mapped").Add(float64(res.Mapped))
	s.log.Info("sap auto mapping", zap.Int("scanned", res.Scanned), zap.Int("mapped", res.Mapped))

	if res.Mapped > 0 {
		if _, err := s.syncActuals(ctx, nil); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ManualMap assigns the given postings to projID and refreshes the actuals.
// Postings may already be mapped; the project they leave is recomputed too.
func (s *Service) ManualMap(ctx context.Context, rawIDs []uint, projID, actor string) (MapResult, error) {
	if len(rawIDs) == 0 {
		return MapResult{}, apperr.Validation("raw_ids must not be empty")
	}
	if projID == "" {
		return MapResult{}, apperr.Validation("target_proj_id is required")
	}

	res := MapResult{Scanned: len(rawIDs)}
	var released []mappedTotal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p projects.Project
		err := tx.Select("proj_id").First(&p, "proj_id = ?", projID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("project %s not found", projID)
		}
		if err != nil {
			return apperr.Internal("failed to load project", err)
		}

		res.Mapped, released, err = s.assign(tx, rawIDs, projID, actor)
		return err
	})
	if err != nil {
		return MapResult{}, err
	}

	res.Message = fmt.Sprintf("%d postings mapped to %s", res.Mapped, projID)
	metrics.SAPPostings.WithLabelValues("mapped").Add(float64(res.Mapped))
	s.log.Info("sap manual mapping", zap.String("proj_id", projID), zap.Int("mapped", res.Mapped))

	if _, err := s.syncActuals(ctx, released); err != nil {
		return res, err
	}
	return res, nil
}

// assign maps rawIDs to projID. It also returns the (project, month) pairs
// that lose postings because they were mapped elsewhere before.
func (s *Service) assign(tx *gorm.DB, rawIDs []uint, projID, actor string) (int, []mappedTotal, error) {
	var released []mappedTotal
	err := tx.Model(&Posting{}).
		Select("DISTINCT mapped_proj_id AS proj_id, yyyymm").
		Where("raw_id IN ? AND map_status = ? AND mapped_proj_id IS NOT NULL AND mapped_proj_id <> ?", rawIDs, StatusMapped, projID).
		Scan(&released).Error
	if err != nil {
		return 0, nil, apperr.Internal("failed to read previous mappings", err)
	}

	now := s.now()
	updated := tx.Model(&Posting{}).
		Where("raw_id IN ?", rawIDs).
		Updates(map[string]any{
			"map_status":     StatusMapped,
			"mapped_proj_id": projID,
			"mapped_at":      now,
			"mapped_by":      actor,
		})
	if updated.Error != nil {
		return 0, nil, apperr.Internal("failed to map postings", updated.Error)
	}
	return int(updated.RowsAffected), released, nil
}

type mappedTotal struct {
	ProjID string
	YYYYMM string
	Total  decimal.Decimal
}

// SyncActuals sums mapped postings per project and month and records the
// totals as actuals.
func (s *Service) SyncActuals(ctx context.Context) (ledger.SyncResult, error) {
	return s.syncActuals(ctx, nil)
}

// syncActuals is SyncActuals where the released pairs are reset to zero
// unless postings still map to them.
func (s *Service) syncActuals(ctx context.Context, released []mappedTotal) (ledger.SyncResult, error) {
	var totals []mappedTotal
	err := s.db.WithContext(ctx).Model(&Posting{}).
		Select("mapped_proj_id AS proj_id, yyyymm, SUM(amount) AS total").
		Where("map_status = ? AND mapped_proj_id IS NOT NULL AND yyyymm <> ?", StatusMapped, string(UnknownMonth)).
		Group("mapped_proj_id, yyyymm").
		Order("mapped_proj_id, yyyymm").
		Scan(&totals).Error
	if err != nil {
		return ledger.SyncResult{}, apperr.Internal("failed to sum mapped postings", err)
	}

	return s.ledger.RecordActuals(ctx, actualsOf(withReleased(totals, released), s.log))
}

// withReleased appends a zero total for every released pair that has no
// mapped postings left.
func withReleased(totals, released []mappedTotal) []mappedTotal {
	if len(released) == 0 {
		return totals
	}
	type key struct{ proj, month string }
	seen := make(map[key]bool, len(totals))
	for _, t := range totals {
		seen[key{t.ProjID, t.YYYYMM}] = true
	}
	out := totals
	for _, r := range released {
		k := key{r.ProjID, r.YYYYMM}
		if seen[k] || r.YYYYMM == string(UnknownMonth) {
			continue
		}
		seen[k] = true
		out = append(out, mappedTotal{ProjID: r.ProjID, YYYYMM: r.YYYYMM, Total: decimal.Zero})
	}
	return out
}

func actualsOf(totals []mappedTotal, log *zap.Logger) []ledger.Actual {
	out := make([]ledger.Actual, 0, len(totals))
	for _, t := range totals {
		m, err := fiscal.Parse(t.YYYYMM)
		if err != nil {
			log.Warn("skipping posting total with invalid month",
				zap.String("proj_id", t.ProjID), zap.String("yyyymm", t.YYYYMM))
			continue
		}
		out = append(out, ledger.Actual{ProjID: t.ProjID, Month: m, Amount: t.Total})
	}
	return out
}
