package domain

import (
	"fmt"
	"time"
)

// ============================================================
// Collection ladder configuration (régua de cobrança)
// ============================================================

// Stage identifies which point in the collection ladder a notification
// belongs to.
type Stage string

const (
	StagePreventive Stage = "preventive"
	StageDueDate    Stage = "due_date"
	StageOverdue    Stage = "overdue"
)

// Valid reports whether s is one of the known ladder stages.
func (s Stage) Valid() bool {
	switch s {
	case StagePreventive, StageDueDate, StageOverdue:
		return true
	}
	return false
}

// TenantBillingConfig is the per-tenant collection-ladder configuration.
// Loaded once at the start of an orchestration run and threaded through
// to schedule evaluation; never re-fetched mid-run.
type TenantBillingConfig struct {
	TenantID string `json:"tenant_id"`

	// DailyTriggerTime is the wall-clock minute ("HH:MM") at which the
	// daily routine fires for this tenant.
	DailyTriggerTime string `json:"daily_trigger_time"`

	// DaysBeforeDue is only meaningful when RemindBeforeEnabled.
	DaysBeforeDue          int  `json:"days_before_due"`
	RemindBeforeEnabled    bool `json:"remind_before_enabled"`
	RemindOnDueDateEnabled bool `json:"remind_on_due_date_enabled"`

	RecoveryEnabled bool `json:"recovery_enabled"`
	// RecoveryWeekdays holds weekdays 0-6 (Sunday=0) on which overdue
	// recovery messages go out.
	RecoveryWeekdays []int `json:"recovery_weekdays"`
}

// NormalizeTriggerTime canonicalizes a stored trigger time to "HH:MM".
// Accepts unpadded hours ("8:30") and the "HH:MM:SS" form Postgres time
// columns serialize to. Empty input stays empty (tenant has no
// scheduled fire). Anything else is an error.
func NormalizeTriggerTime(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	for _, layout := range []string{"15:04", "15:04:05", "3:04", "3:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("invalid trigger time %q", s)
}

// RecoversOn reports whether the overdue-recovery rule is scheduled for
// the given weekday.
func (c TenantBillingConfig) RecoversOn(d time.Weekday) bool {
	for _, wd := range c.RecoveryWeekdays {
		if time.Weekday(wd) == d {
			return true
		}
	}
	return false
}

// TemplateSet maps each ladder stage to its message template for one
// tenant. Templates carry placeholder tokens (%name%, %invoice%,
// %valor%, %link%, %pix%) resolved at dispatch time.
type TemplateSet map[Stage]string
