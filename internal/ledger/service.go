// Package ledger implements period closing, monthly execution records and the
// budget transfer ledger, together with the closing gate that guards them.
package ledger

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itopex/opex-backend/internal/apperr"
	"github.com/itopex/opex-backend/internal/events"
	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/metrics"
)

// DefaultActor is recorded when a mutation carries no user.
const DefaultActor = "admin"

type Service struct {
	store  Store
	now    func() time.Time
	events events.Publisher
	log    *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		events: events.Nop{},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind returns a copy of the service working on store, e.g. a Store wrapping
// a caller's transaction.
func (s *Service) Bind(store Store) *Service {
	cp := *s
	cp.store = store
	return &cp
}

// CheckMutable is the closing gate: it fails with ErrMonthClosed when month
// is closed and succeeds otherwise.
func (s *Service) CheckMutable(ctx context.Context, month fiscal.Month) error {
	return checkMutable(ctx, s.store, month)
}

func checkMutable(ctx context.Context, st Store, month fiscal.Month) error {
	p, err := st.GetPeriod(ctx, month)
	if err != nil {
		return apperr.Internal("failed to read closing status", err)
	}
	if p != nil && p.Closed() {
		return apperr.ErrMonthClosed.WithMessage("month %s is closed", month)
	}
	return nil
}

// GetStatus returns the stored status, or OPEN without timestamp when the
// month was never closed.
func (s *Service) GetStatus(ctx context.Context, month fiscal.Month) (PeriodStatus, error) {
	p, err := s.store.GetPeriod(ctx, month)
	if err != nil {
		return PeriodStatus{}, apperr.Internal("failed to read closing status", err)
	}
	if p == nil {
		return PeriodStatus{YYYYMM: month, Status: StatusOpen}, nil
	}
	return *p, nil
}

// SetStatus moves month to status. Repeating the current status is a no-op
// that returns the stored record unchanged.
func (s *Service) SetStatus(ctx context.Context, month fiscal.Month, status Status, actor string) (PeriodStatus, error) {
	var (
		result  PeriodStatus
		changed bool
	)
	err := s.store.Tx(ctx, func(st Store) error {
		var err error
		result, changed, err = s.setStatus(ctx, st, month, status, actor)
		return err
	})
	s.observe("set_status", err)
	if err != nil {
		return PeriodStatus{}, err
	}
	if changed {
		s.periodChanged(ctx, result)
	}
	return result, nil
}

// BulkSetStatus applies status to every month in one transaction; either all
// months transition or none do.
func (s *Service) BulkSetStatus(ctx context.Context, months []fiscal.Month, status Status, actor string) ([]PeriodStatus, error) {
	if len(months) == 0 {
		return nil, apperr.Validation("at least one month is required")
	}
	unique := make([]fiscal.Month, 0, len(months))
	seen := make(map[fiscal.Month]bool, len(months))
	for _, m := range months {
		if !seen[m] {
			seen[m] = true
			unique = append(unique, m)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	results := make([]PeriodStatus, 0, len(unique))
	var changed []PeriodStatus
	err := s.store.Tx(ctx, func(st Store) error {
		results = results[:0]
		changed = changed[:0]
		for _, m := range unique {
			p, ok, err := s.setStatus(ctx, st, m, status, actor)
			if err != nil {
				return err
			}
			results = append(results, p)
			if ok {
				changed = append(changed, p)
			}
		}
		return nil
	})
	s.observe("bulk_set_status", err)
	if err != nil {
		return nil, err
	}
	for _, p := range changed {
		s.periodChanged(ctx, p)
	}
	return results, nil
}

func (s *Service) setStatus(ctx context.Context, st Store, month fiscal.Month, status Status, actor string) (PeriodStatus, bool, error) {
	cur, err := st.GetPeriod(ctx, month)
	if err != nil {
		return PeriodStatus{}, false, apperr.Internal("failed to read closing status", err)
	}
	if cur == nil {
		if status == StatusOpen {
			return PeriodStatus{YYYYMM: month, Status: StatusOpen}, false, nil
		}
		cur = &PeriodStatus{YYYYMM: month, Status: StatusOpen}
	}
	if cur.Status == status {
		return *cur, false, nil
	}

	now := s.now()
	by := actorOrDefault(actor)
	cur.Status = status
	cur.ClosedAt = &now
	cur.ClosedBy = &by
	if err := st.SavePeriod(ctx, cur); err != nil {
		return PeriodStatus{}, false, apperr.Internal("failed to save closing status", err)
	}
	return *cur, true, nil
}

func (s *Service) periodChanged(ctx context.Context, p PeriodStatus) {
	eventType := events.PeriodOpened
	if p.Closed() {
		eventType = events.PeriodClosed
	}
	actor := ""
	if p.ClosedBy != nil {
		actor = *p.ClosedBy
	}
	s.log.Info("period status changed",
		zap.String("yyyymm", p.YYYYMM.String()),
		zap.String("status", string(p.Status)),
		zap.String("actor", actor))
	s.publish(ctx, eventType, actor, p)
}

// YearStatuses returns the status of each month of year in calendar order.
func (s *Service) YearStatuses(ctx context.Context, year int) ([]PeriodStatus, error) {
	months := fiscal.MonthsOf(year)
	out := make([]PeriodStatus, len(months))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, m := range months {
		i, m := i, m
		g.Go(func() error {
			p, err := s.GetStatus(ctx, m)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, eventType, actor string, payload any) {
	e, err := events.New(eventType, actor, payload)
	if err == nil {
		err = s.events.Publish(ctx, e)
	}
	if err != nil {
		s.log.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = apperr.CodeOf(err)
	}
	metrics.ObserveLedger(op, result)
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return DefaultActor
	}
	return actor
}
