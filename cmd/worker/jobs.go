package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"drawtica/internal/infra"
	"drawtica/internal/metrics"
)

const (
	jobDowngradeTiers = "downgrade_tiers"
	jobExpireIntents  = "expire_intents"

	jobTimeout = 2 * time.Minute
)

type tierDowngrader interface {
	DowngradeExpiredTiers(ctx context.Context, now time.Time) (int64, error)
}

type intentExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// maintenance holds the periodic housekeeping jobs. Each job is a single
// conditional UPDATE, so overlapping runs on several workers are harmless.
type maintenance struct {
	accounts tierDowngrader
	intents  intentExpirer
	metrics  *metrics.Metrics
	logger   infra.Logger
	now      func() time.Time
}

func (m *maintenance) schedule(ctx context.Context, c *cron.Cron, spec string) error {
	if _, err := c.AddFunc(spec, func() { m.runAll(ctx) }); err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}
	return nil
}

func (m *maintenance) runAll(ctx context.Context) {
	m.run(ctx, jobDowngradeTiers, func(ctx context.Context) (int64, error) {
		return m.accounts.DowngradeExpiredTiers(ctx, m.now())
	})
	m.run(ctx, jobExpireIntents, m.intents.ExpireStale)
}

func (m *maintenance) run(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := fn(ctx)
	if err != nil {
		m.logger.Error().Err(err).Str("job", name).Msg("worker: job failed")
		return
	}
	m.metrics.MaintenanceRows(name, n)
	m.logger.Info().Str("job", name).Int64("rows", n).Dur("took", time.Since(start)).Msg("worker: job done")
}
