package sap

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// jobTimeout bounds one scheduled mapping run.
const jobTimeout = 10 * time.Minute

// cronLogger routes cron's own messages through zap.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// StartScheduler runs AutoMap on schedule (standard five-field cron syntax)
// in loc. The caller stops the returned cron on shutdown.
func StartScheduler(schedule string, loc *time.Location, svc *Service, log *zap.Logger) (*cron.Cron, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	clog := cronLogger{s: log.Sugar()}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		res, err := svc.AutoMap(ctx, "scheduler")
		if err != nil {
			log.Error("scheduled sap mapping failed", zap.Error(err))
			return
		}
		log.Info("scheduled sap mapping finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("mapped", res.Mapped),
			zap.Duration("took", time.Since(started)))
	})
	if err != nil {
		return nil, fmt.Errorf("schedule sap mapping %q: %w", schedule, err)
	}

	c.Start()
	log.Info("sap mapping scheduler started", zap.String("schedule", schedule), zap.String("timezone", loc.String()))
	return c, nil
}
