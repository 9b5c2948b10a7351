package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
)

// ============================================================
// Customer sync & per-run customer resolution
// ============================================================

// customerArena memoizes provider customers for the duration of one
// run. Invoices for the same customer resolve the provider record once.
type customerArena struct {
	byID map[string]domain.Customer
}

func newCustomerArena() *customerArena {
	return &customerArena{byID: make(map[string]domain.Customer)}
}

func (a *customerArena) put(c domain.Customer) {
	a.byID[c.ID] = c
}

// resolve returns the customer for a provider id, fetching it at most
// once per run.
func (s *BillingService) resolve(ctx context.Context, arena *customerArena, customerID string) (domain.Customer, error) {
	if c, ok := arena.byID[customerID]; ok {
		s.metrics.IncrCacheHit("customer")
		return c, nil
	}
	s.metrics.IncrCacheMiss("customer")

	c, err := s.gateway.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	arena.put(*c)
	return *c, nil
}

// syncCustomers pulls the provider's full customer base, upserts each
// one as a provider-sourced contact, and prefills the arena so the
// dispatch phase rarely needs customer lookups.
func (s *BillingService) syncCustomers(ctx context.Context, tenantID string, arena *customerArena) (int, error) {
	ctx, span := tracer.Start(ctx, "BillingService.syncCustomers")
	defer span.End()

	synced := 0
	err := s.gateway.ListCustomers(ctx, s.pageSize, func(c domain.Customer) error {
		arena.put(c)

		contact := &domain.Contact{
			TenantID:   tenantID,
			Name:       c.Name,
			Phone:      c.Phone,
			Email:      c.Email,
			TaxID:      c.TaxID,
			Source:     domain.SourceProvider,
			ProviderID: c.ID,
		}
		if err := s.contacts.UpsertProviderContact(ctx, tenantID, contact); err != nil {
			return err
		}
		synced++
		return nil
	})
	if err != nil {
		s.logger.Error("customer sync failed",
			zap.String("tenant_id", tenantID),
			zap.Int("synced_before_failure", synced),
			zap.Error(err),
		)
		return synced, err
	}

	s.logger.Info("customer sync completed",
		zap.String("tenant_id", tenantID),
		zap.Int("customers", synced),
	)
	return synced, nil
}
