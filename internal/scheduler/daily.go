package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/infra/resilience"
	"github.com/billzap/billzap-go/internal/port"
)

// RoutineRunner runs one tenant's daily routine. Implemented by
// service.BillingService.
type RoutineRunner interface {
	RunDailyRoutine(ctx context.Context, tenantID string, trigger domain.RunTrigger) domain.RunResult
}

// DailyTrigger is the per-minute sweep over all tenants. When a
// tenant's configured trigger time matches the current minute and the
// persisted marker does not already cover it, the tenant's routine
// starts. The bulkhead bounds how many routines run concurrently; the
// sweep itself waits for all started routines before returning so a
// Stop never abandons work mid-run.
type DailyTrigger struct {
	runner   RoutineRunner
	settings port.SettingsStore
	markers  port.RunMarkerStore
	bulkhead *resilience.Bulkhead
	logger   *zap.Logger

	now func() time.Time
}

// NewDailyTrigger creates the sweep.
func NewDailyTrigger(
	runner RoutineRunner,
	settings port.SettingsStore,
	markers port.RunMarkerStore,
	bulkhead *resilience.Bulkhead,
	logger *zap.Logger,
) *DailyTrigger {
	return &DailyTrigger{
		runner:   runner,
		settings: settings,
		markers:  markers,
		bulkhead: bulkhead,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the trigger clock. Test hook.
func (t *DailyTrigger) WithClock(now func() time.Time) *DailyTrigger {
	t.now = now
	return t
}

// Sweep checks every tenant once and runs the due ones.
func (t *DailyTrigger) Sweep(ctx context.Context) {
	now := t.now()

	tenantIDs, err := t.settings.ListTenantIDs(ctx)
	if err != nil {
		t.logger.Error("sweep: failed to list tenants", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, tenantID := range tenantIDs {
		cfg, err := t.settings.GetBillingSettings(ctx, tenantID)
		if err != nil {
			t.logger.Warn("sweep: failed to load settings",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			continue
		}

		marker, err := t.markers.LastRun(ctx, tenantID)
		if err != nil {
			t.logger.Warn("sweep: failed to read run marker",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			continue
		}

		if !ShouldRun(now, cfg.DailyTriggerTime, marker) {
			continue
		}

		// Hold the run slot before writing the marker: a cancelled
		// Acquire here must leave the tenant unmarked so the run is
		// retried, not lost for the day.
		if err := t.bulkhead.Acquire(ctx); err != nil {
			t.logger.Warn("sweep: cancelled while waiting for a run slot",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			break
		}

		// Mark before dispatching so the next sweep in the same
		// minute does not fire the tenant twice.
		if err := t.markers.SetLastRun(ctx, tenantID, RunKey(now)); err != nil {
			t.logger.Error("sweep: failed to set run marker",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			t.bulkhead.Release()
			continue
		}

		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			defer t.bulkhead.Release()

			result := t.runner.RunDailyRoutine(ctx, tenantID, domain.TriggerScheduled)
			t.logger.Info("sweep: tenant run finished",
				zap.String("tenant_id", tenantID),
				zap.String("run_id", result.RunID),
				zap.String("state", string(result.State)),
			)
		}(tenantID)
	}

	wg.Wait()
}
