package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
)

// ============================================================
// Notification dispatch
// ============================================================

// dispatchOutcome tallies one evaluation-and-send pass.
type dispatchOutcome struct {
	sent    int
	skipped int
	errors  int
}

// templateVars builds the placeholder substitutions for one invoice.
func templateVars(cust domain.Customer, inv domain.Invoice) map[string]string {
	return map[string]string{
		"%name%":    cust.Name,
		"%invoice%": inv.InvoiceNumber,
		"%valor%":   fmt.Sprintf("%.2f", inv.Value),
		"%link%":    inv.InvoiceURL,
		"%pix%":     inv.PixCode,
	}
}

// dispatchNotifications evaluates every synced invoice against the
// tenant's ladder and sends the resulting messages one by one. A
// failure on one message never blocks the rest.
func (s *BillingService) dispatchNotifications(
	ctx context.Context,
	tenantID string,
	cfg *domain.TenantBillingConfig,
	templates domain.TemplateSet,
	invoices []domain.Invoice,
	arena *customerArena,
) dispatchOutcome {
	ctx, span := tracer.Start(ctx, "BillingService.dispatchNotifications")
	defer span.End()

	now := s.now()
	var out dispatchOutcome

	for _, inv := range invoices {
		stage, ok := EvaluateStage(*cfg, inv, now)
		if !ok {
			out.skipped++
			continue
		}

		cust, err := s.resolve(ctx, arena, inv.CustomerID)
		if err != nil {
			out.errors++
			s.logger.Warn("notification skipped, customer lookup failed",
				zap.String("tenant_id", tenantID),
				zap.String("invoice_id", inv.ID),
				zap.Error(err),
			)
			continue
		}

		// Template resolution comes before the phone check so a tenant
		// misconfiguration is surfaced even for unreachable contacts.
		tpl, ok := templates[stage]
		if !ok || tpl == "" {
			out.errors++
			s.metrics.IncrNotificationError("template")
			cfgErr := &domain.ErrConfiguration{TenantID: tenantID, Stage: stage}
			s.logger.Error("notification failed", zap.Error(cfgErr))
			continue
		}

		if cust.Phone == "" {
			out.skipped++
			s.logger.Debug("notification skipped, contact has no phone",
				zap.String("tenant_id", tenantID),
				zap.String("invoice_id", inv.ID),
			)
			continue
		}

		body := domain.RenderTemplate(tpl, templateVars(cust, inv))

		msgID, err := s.transport.SendMessage(ctx, cust.Phone, body)
		if err != nil {
			out.errors++
			s.metrics.IncrNotificationError("transport")
			s.metrics.IncrExternalError("whatsapp")
			s.logger.Error("notification delivery failed",
				zap.String("tenant_id", tenantID),
				zap.String("invoice_id", inv.ID),
				zap.String("stage", string(stage)),
				zap.Error(err),
			)
			continue
		}

		out.sent++
		s.metrics.IncrMessageSent(string(stage))
		s.logger.Info("notification sent",
			zap.String("tenant_id", tenantID),
			zap.String("invoice_id", inv.ID),
			zap.String("stage", string(stage)),
			zap.String("message_id", msgID),
		)
	}

	return out
}
