package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/infra/resilience"
)

// ============================================================
// Tenant billing settings & templates — implements port.SettingsStore
// ============================================================

// settingsRow maps the tenant_billing_settings table.
type settingsRow struct {
	TenantID               string `json:"tenant_id"`
	DailyTriggerTime       string `json:"daily_trigger_time"`
	DaysBeforeDue          int    `json:"days_before_due"`
	RemindBeforeEnabled    bool   `json:"remind_before_enabled"`
	RemindOnDueDateEnabled bool   `json:"remind_on_due_date_enabled"`
	RecoveryEnabled        bool   `json:"recovery_enabled"`
	RecoveryWeekdays       []int  `json:"recovery_weekdays"`
}

// templateRow maps the message_templates table. One row per stage.
type templateRow struct {
	TenantID string `json:"tenant_id"`
	Stage    string `json:"stage"`
	Body     string `json:"body"`
}

// GetBillingSettings fetches one tenant's collection-ladder settings.
func (c *Client) GetBillingSettings(ctx context.Context, tenantID string) (*domain.TenantBillingConfig, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBillingSettings")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	var cfg *domain.TenantBillingConfig

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("tenant_billing_settings?tenant_id=eq.%s&limit=1", url.QueryEscape(tenantID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "billing_settings", ID: tenantID}
			}

			var rows []settingsRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode billing settings: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "billing_settings", ID: tenantID}
			}

			r := rows[0]
			// Stored trigger times may be unpadded or carry seconds;
			// the scheduler compares the canonical "HH:MM" form only.
			trigger, terr := domain.NormalizeTriggerTime(r.DailyTriggerTime)
			if terr != nil {
				c.logger.Warn("supabase: malformed daily trigger time, tenant will not fire automatically",
					zap.String("tenant_id", r.TenantID),
					zap.String("daily_trigger_time", r.DailyTriggerTime),
				)
				trigger = ""
			}
			cfg = &domain.TenantBillingConfig{
				TenantID:               r.TenantID,
				DailyTriggerTime:       trigger,
				DaysBeforeDue:          r.DaysBeforeDue,
				RemindBeforeEnabled:    r.RemindBeforeEnabled,
				RemindOnDueDateEnabled: r.RemindOnDueDateEnabled,
				RecoveryEnabled:        r.RecoveryEnabled,
				RecoveryWeekdays:       r.RecoveryWeekdays,
			}
			return nil
		})
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/settings", Err: err}
	}

	return cfg, nil
}

// GetTemplateSet fetches every message template a tenant has configured.
// A tenant with no templates gets an empty set, not an error; missing
// stages surface later as per-notification configuration errors.
func (c *Client) GetTemplateSet(ctx context.Context, tenantID string) (domain.TemplateSet, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTemplateSet")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	set := domain.TemplateSet{}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("message_templates?tenant_id=eq.%s", url.QueryEscape(tenantID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return nil
			}

			var rows []templateRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode templates: %w", err)
			}

			for _, r := range rows {
				stage := domain.Stage(r.Stage)
				if !stage.Valid() {
					continue
				}
				set[stage] = r.Body
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/templates", Err: err}
	}

	return set, nil
}

// ListTenantIDs returns every tenant that has billing settings.
func (c *Client) ListTenantIDs(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTenantIDs")
	defer span.End()

	var ids []string

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, "tenant_billing_settings?select=tenant_id")
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				ids = []string{}
				return nil
			}

			var rows []struct {
				TenantID string `json:"tenant_id"`
			}
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode tenant ids: %w", err)
			}

			ids = make([]string, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.TenantID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/settings", Err: err}
	}

	return ids, nil
}
