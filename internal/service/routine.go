package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/billzap/billzap-go/internal/domain"
)

// ============================================================
// Daily routine orchestration
// ============================================================

// RunDailyRoutine executes one full pass for a tenant: customer sync,
// invoice sync with reconciliation, then evaluation and dispatch.
//
// The routine never panics its caller with an error: every failure mode
// lands in the returned RunResult, so a manual trigger always gets a
// report back.
func (s *BillingService) RunDailyRoutine(ctx context.Context, tenantID string, trigger domain.RunTrigger) domain.RunResult {
	ctx, span := tracer.Start(ctx, "BillingService.RunDailyRoutine")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("run.trigger", string(trigger)),
	)

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("daily_routine", time.Since(start))
	}()

	result := domain.RunResult{
		RunID:     uuid.NewString(),
		TenantID:  tenantID,
		Trigger:   trigger,
		State:     domain.RunIdle,
		StartedAt: start,
	}

	s.logger.Info("daily routine started",
		zap.String("tenant_id", tenantID),
		zap.String("run_id", result.RunID),
		zap.String("trigger", string(trigger)),
	)

	// --- Step 0: load tenant configuration concurrently ---
	var (
		cfg       *domain.TenantBillingConfig
		templates domain.TemplateSet
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.settings.GetBillingSettings(gCtx, tenantID)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	})
	g.Go(func() error {
		t, err := s.settings.GetTemplateSet(gCtx, tenantID)
		if err != nil {
			return err
		}
		templates = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.finishFailed(result, "load tenant configuration: "+err.Error())
	}

	// --- Step 1: customer sync ---
	result.State = domain.RunSyncingCustomers
	arena := newCustomerArena()

	if _, err := s.syncCustomers(ctx, tenantID, arena); err != nil {
		s.metrics.IncrExternalError("provider")
		return s.finishFailed(result, "customer sync: "+err.Error())
	}

	// --- Step 2: invoice sync & reconciliation ---
	result.State = domain.RunSyncingInvoices

	syncRes, err := s.syncInvoices(ctx, tenantID, arena)
	if err != nil {
		return s.finishFailed(result, "invoice sync: "+err.Error())
	}
	result.ProcessedInvoices = syncRes.processed
	result.Errors += syncRes.errors

	// --- Step 3: evaluate & send ---
	result.State = domain.RunEvaluating

	out := s.dispatchNotifications(ctx, tenantID, cfg, templates, syncRes.invoices, arena)
	result.MessagesSent = out.sent
	result.Skipped = out.skipped
	result.Errors += out.errors

	result.State = domain.RunCompleted
	result.FinishedAt = s.now()

	s.metrics.IncrRun("completed")
	s.metrics.AddInvoicesProcessed(result.ProcessedInvoices)
	s.lastRuns.Set(tenantID, result)

	s.logger.Info("daily routine completed",
		zap.String("tenant_id", tenantID),
		zap.String("run_id", result.RunID),
		zap.Int("processed_invoices", result.ProcessedInvoices),
		zap.Int("messages_sent", result.MessagesSent),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
	return result
}

func (s *BillingService) finishFailed(result domain.RunResult, reason string) domain.RunResult {
	result.State = domain.RunFailed
	result.FailureReason = reason
	result.FinishedAt = s.now()

	s.metrics.IncrRun("failed")
	s.lastRuns.Set(result.TenantID, result)

	s.logger.Error("daily routine failed",
		zap.String("tenant_id", result.TenantID),
		zap.String("run_id", result.RunID),
		zap.String("reason", reason),
	)
	return result
}
