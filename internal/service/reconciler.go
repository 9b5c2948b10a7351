package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
)

// ============================================================
// Invoice sync & contact status reconciliation
// ============================================================

// reconcileStatuses are the provider status classes pulled every run,
// in no significant order: the merge makes the outcome order-free.
var reconcileStatuses = []domain.InvoiceStatus{
	domain.InvoiceOverdue,
	domain.InvoiceReceived,
	domain.InvoiceConfirmed,
	domain.InvoicePending,
}

// invoiceSyncResult carries everything the evaluation phase needs out
// of the sync phase.
type invoiceSyncResult struct {
	// invoices still eligible for a notification (pending or overdue).
	invoices  []domain.Invoice
	processed int
	errors    int
}

// syncInvoices pulls each status class from the provider, reconciles
// contact statuses from what it sees, and collects the invoices the
// evaluator will look at.
//
// A rejected credential aborts the whole sync. Any other provider
// failure abandons the current status class only; the partial data
// from the remaining classes is still reconciled.
func (s *BillingService) syncInvoices(ctx context.Context, tenantID string, arena *customerArena) (*invoiceSyncResult, error) {
	ctx, span := tracer.Start(ctx, "BillingService.syncInvoices")
	defer span.End()

	res := &invoiceSyncResult{}
	statusByEmail := make(map[string]domain.ContactStatus)

	for _, status := range reconcileStatuses {
		err := s.gateway.ListPaymentsByStatus(ctx, status, s.pageSize, func(inv domain.Invoice) error {
			res.processed++

			cust, err := s.resolve(ctx, arena, inv.CustomerID)
			if err != nil {
				var authErr *domain.ErrAuthentication
				if errors.As(err, &authErr) {
					return err
				}
				// One unresolvable customer does not poison the class.
				res.errors++
				s.logger.Warn("customer lookup failed",
					zap.String("tenant_id", tenantID),
					zap.String("customer_id", inv.CustomerID),
					zap.Error(err),
				)
				return nil
			}
			if cust.Email != "" {
				projected := domain.ContactStatusFor(inv.Status)
				statusByEmail[cust.Email] = domain.MergeContactStatus(statusByEmail[cust.Email], projected)
			}

			if inv.Status == domain.InvoicePending || inv.Status == domain.InvoiceOverdue {
				res.invoices = append(res.invoices, inv)
			}
			return nil
		})
		if err != nil {
			var authErr *domain.ErrAuthentication
			if errors.As(err, &authErr) {
				return nil, authErr
			}

			res.errors++
			s.metrics.IncrExternalError("provider")
			s.logger.Warn("invoice sync abandoned status class",
				zap.String("tenant_id", tenantID),
				zap.String("status", string(status)),
				zap.Error(err),
			)
		}
	}

	// Reconciled writes are keyed by tenant+email; the merge above
	// already resolved conflicting classes, so write order is free.
	for email, status := range statusByEmail {
		if err := s.contacts.UpsertContactStatus(ctx, tenantID, email, status); err != nil {
			res.errors++
			s.metrics.IncrExternalError("supabase")
			s.logger.Error("contact status write failed",
				zap.String("tenant_id", tenantID),
				zap.String("status", string(status)),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("invoice sync completed",
		zap.String("tenant_id", tenantID),
		zap.Int("invoices", res.processed),
		zap.Int("contacts_reconciled", len(statusByEmail)),
		zap.Int("errors", res.errors),
	)
	return res, nil
}
