package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/infra/observability"
	"github.com/billzap/billzap-go/internal/port"
)

var tracer = otel.Tracer("service/billing")

// BillingService runs the daily collection routine: provider sync,
// contact reconciliation, schedule evaluation and message dispatch.
type BillingService struct {
	gateway   port.ProviderGateway
	contacts  port.ContactStore
	settings  port.SettingsStore
	transport port.MessageTransport
	lastRuns  port.Cache[domain.RunResult]
	metrics   *observability.Metrics
	logger    *zap.Logger

	pageSize int
	now      func() time.Time
}

// NewBillingService creates the billing service with all dependencies
// injected. lastRuns keeps the most recent run result per tenant for
// the admin API.
func NewBillingService(
	gateway port.ProviderGateway,
	contacts port.ContactStore,
	settings port.SettingsStore,
	transport port.MessageTransport,
	lastRuns port.Cache[domain.RunResult],
	metrics *observability.Metrics,
	logger *zap.Logger,
	pageSize int,
) *BillingService {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &BillingService{
		gateway:   gateway,
		contacts:  contacts,
		settings:  settings,
		transport: transport,
		lastRuns:  lastRuns,
		metrics:   metrics,
		logger:    logger,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *BillingService) WithClock(now func() time.Time) *BillingService {
	s.now = now
	return s
}

// LastRunResult returns the most recent run result for a tenant, if one
// happened since startup.
func (s *BillingService) LastRunResult(tenantID string) (domain.RunResult, bool) {
	return s.lastRuns.Get(tenantID)
}

// GetSettings exposes a tenant's ladder configuration to the admin API.
func (s *BillingService) GetSettings(ctx context.Context, tenantID string) (*domain.TenantBillingConfig, error) {
	ctx, span := tracer.Start(ctx, "BillingService.GetSettings")
	defer span.End()

	return s.settings.GetBillingSettings(ctx, tenantID)
}

// GetTemplates exposes a tenant's message templates to the admin API.
func (s *BillingService) GetTemplates(ctx context.Context, tenantID string) (domain.TemplateSet, error) {
	ctx, span := tracer.Start(ctx, "BillingService.GetTemplates")
	defer span.End()

	return s.settings.GetTemplateSet(ctx, tenantID)
}

// ListContacts lists a tenant's contacts, optionally filtered by
// status.
func (s *BillingService) ListContacts(ctx context.Context, tenantID string, status domain.ContactStatus) ([]domain.Contact, error) {
	ctx, span := tracer.Start(ctx, "BillingService.ListContacts")
	defer span.End()

	switch status {
	case "", domain.ContactActive, domain.ContactOverdue, domain.ContactPaid, domain.ContactBlocked:
	default:
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown contact status"}
	}
	return s.contacts.ListContactsByTenant(ctx, tenantID, status)
}
