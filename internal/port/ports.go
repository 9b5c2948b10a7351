// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/billzap/billzap-go/internal/domain"
)

// ProviderGateway is the paginated client against the payment
// provider's REST API. List methods stream items page by page through
// visit; the sequence is finite and not restartable. A non-nil error
// from visit aborts the remaining pages.
type ProviderGateway interface {
	ListPaymentsByStatus(ctx context.Context, status domain.InvoiceStatus, pageSize int, visit func(domain.Invoice) error) error
	ListCustomers(ctx context.Context, pageSize int, visit func(domain.Customer) error) error
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
}

// ContactStore persists the local contact projections. Implemented by
// the Supabase adapter (or any other persistence layer).
type ContactStore interface {
	// UpsertContactStatus issues a keyed (tenant+email) status write.
	// Last write wins within a run.
	UpsertContactStatus(ctx context.Context, tenantID, email string, status domain.ContactStatus) error
	// UpsertProviderContact refreshes the sync-owned fields of a
	// provider-sourced contact. Identity fields edited by users are
	// never touched here.
	UpsertProviderContact(ctx context.Context, tenantID string, c *domain.Contact) error
	ListContactsByTenant(ctx context.Context, tenantID string, status domain.ContactStatus) ([]domain.Contact, error)
}

// SettingsStore reads per-tenant billing configuration. Configuration
// is loaded once per orchestration run.
type SettingsStore interface {
	GetBillingSettings(ctx context.Context, tenantID string) (*domain.TenantBillingConfig, error)
	GetTemplateSet(ctx context.Context, tenantID string) (domain.TemplateSet, error)
	// ListTenantIDs returns every tenant with billing settings, for the
	// recurring trigger sweep.
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// RunMarkerStore persists the per-tenant "last run key" that guards the
// recurring trigger against double-firing within the same minute. The
// guard is advisory, not a distributed lock.
type RunMarkerStore interface {
	LastRun(ctx context.Context, tenantID string) (string, error)
	SetLastRun(ctx context.Context, tenantID, marker string) error
}

// MessageTransport delivers a rendered message to a phone number and
// returns the transport's message id.
type MessageTransport interface {
	SendMessage(ctx context.Context, phone, body string) (string, error)
}

// TextCompleter is the opaque text-completion collaborator used to
// draft message templates.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
