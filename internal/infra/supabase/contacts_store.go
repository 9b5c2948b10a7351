package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/infra/resilience"
)

// ============================================================
// Contacts — implements port.ContactStore
// ============================================================

// contactRow maps the contacts table columns to our domain.
type contactRow struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenant_id"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Email        string  `json:"email"`
	TaxID        string  `json:"tax_id"`
	Status       string  `json:"status"`
	Source       string  `json:"source"`
	TotalPaid    float64 `json:"total_paid"`
	OpenInvoices int     `json:"open_invoices"`
	ProviderID   string  `json:"provider_id"`
	SyncedAt     string  `json:"synced_at"`
}

func (r contactRow) toDomain() domain.Contact {
	syncedAt, _ := time.Parse(time.RFC3339, r.SyncedAt)
	return domain.Contact{
		ID:           r.ID,
		TenantID:     r.TenantID,
		Name:         r.Name,
		Phone:        r.Phone,
		Email:        r.Email,
		TaxID:        r.TaxID,
		Status:       domain.ContactStatus(r.Status),
		Source:       domain.ContactSource(r.Source),
		TotalPaid:    r.TotalPaid,
		OpenInvoices: r.OpenInvoices,
		ProviderID:   r.ProviderID,
		SyncedAt:     syncedAt,
	}
}

// UpsertContactStatus writes a reconciled status for the contact keyed
// by tenant+email. Identity fields are untouched; a contact that does
// not exist yet is not created here, status writes only land on rows
// the user (or the customer sync) already owns.
func (c *Client) UpsertContactStatus(ctx context.Context, tenantID, email string, status domain.ContactStatus) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertContactStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("contact.status", string(status)),
	)

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("contacts?tenant_id=eq.%s&email=eq.%s",
				url.QueryEscape(tenantID), url.QueryEscape(email))
			return c.doPatch(ctx, path, map[string]any{
				"status":     string(status),
				"updated_at": time.Now().UTC().Format(time.RFC3339),
			})
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/contacts", Err: err}
	}
	return nil
}

// UpsertProviderContact refreshes the sync-owned fields of a
// provider-sourced contact, creating the row on first sight. Name,
// phone and email edited by the user are preserved on conflict by
// only merging the sync columns.
func (c *Client) UpsertProviderContact(ctx context.Context, tenantID string, contact *domain.Contact) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertProviderContact")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	row := map[string]any{
		"tenant_id":     tenantID,
		"email":         contact.Email,
		"name":          contact.Name,
		"phone":         contact.Phone,
		"tax_id":        contact.TaxID,
		"source":        string(domain.SourceProvider),
		"total_paid":    contact.TotalPaid,
		"open_invoices": contact.OpenInvoices,
		"provider_id":   contact.ProviderID,
		"synced_at":     time.Now().UTC().Format(time.RFC3339),
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.doUpsert(ctx, "contacts", "tenant_id,email", row)
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/contacts", Err: err}
	}
	return nil
}

// ListContactsByTenant returns a tenant's contacts, optionally filtered
// by status (empty status means all).
func (c *Client) ListContactsByTenant(ctx context.Context, tenantID string, status domain.ContactStatus) ([]domain.Contact, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListContactsByTenant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	var contacts []domain.Contact

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("contacts?tenant_id=eq.%s&order=name.asc", url.QueryEscape(tenantID))
			if status != "" {
				path += fmt.Sprintf("&status=eq.%s", url.QueryEscape(string(status)))
			}
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				contacts = []domain.Contact{}
				return nil
			}

			var rows []contactRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode contacts: %w", err)
			}

			contacts = make([]domain.Contact, 0, len(rows))
			for _, r := range rows {
				contacts = append(contacts, r.toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/contacts", Err: err}
	}

	return contacts, nil
}
