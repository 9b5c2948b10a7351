package service

import (
	"time"

	"github.com/billzap/billzap-go/internal/domain"
)

// ============================================================
// Schedule evaluation (pure)
// ============================================================

// midnight rebuilds t's calendar date at UTC midnight, discarding the
// wall-clock location. Provider due dates arrive as bare dates parsed
// in UTC while the service clock runs in local time; anchoring both to
// UTC keeps the day count an exact multiple of 24h.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the whole calendar days from now's day to due's
// day. Negative when the due date already passed.
func DaysUntil(now, due time.Time) int {
	return int(midnight(due).Sub(midnight(now)) / (24 * time.Hour))
}

// EvaluateStage decides which collection-ladder stage, if any, an
// invoice triggers today under the tenant's configuration.
//
// Overdue invoices are only eligible for recovery; a recovery message
// goes out when the due date is strictly in the past and today's
// weekday is one of the configured recovery days. Pending invoices are
// eligible for the due-date reminder first (it wins when both rules
// land on the same day) and the preventive reminder second.
func EvaluateStage(cfg domain.TenantBillingConfig, inv domain.Invoice, now time.Time) (domain.Stage, bool) {
	diff := DaysUntil(now, inv.DueDate)

	if inv.Status == domain.InvoiceOverdue {
		if cfg.RecoveryEnabled && diff < 0 && cfg.RecoversOn(now.Weekday()) {
			return domain.StageOverdue, true
		}
		return "", false
	}

	if inv.Status != domain.InvoicePending {
		return "", false
	}

	if cfg.RemindOnDueDateEnabled && diff == 0 {
		return domain.StageDueDate, true
	}
	// The due-date branch above already claims day 0 when enabled, so a
	// DaysBeforeDue of zero still gets its preventive reminder here.
	if cfg.RemindBeforeEnabled && diff == cfg.DaysBeforeDue && diff >= 0 {
		return domain.StagePreventive, true
	}
	return "", false
}
