package domain

import "time"

// ============================================================
// Orchestration runs
// ============================================================

// RunState is the phase a daily routine run is in. A run walks the
// states in order and ends in Completed or Failed; notification-level
// errors never produce Failed, only sync-level ones do.
type RunState string

const (
	RunIdle             RunState = "idle"
	RunSyncingCustomers RunState = "syncing_customers"
	RunSyncingInvoices  RunState = "syncing_invoices"
	RunEvaluating       RunState = "evaluating_and_sending"
	RunCompleted        RunState = "completed"
	RunFailed           RunState = "failed"
)

// RunTrigger records what started a run.
type RunTrigger string

const (
	TriggerManual    RunTrigger = "manual"
	TriggerScheduled RunTrigger = "scheduled"
)

// RunResult aggregates one orchestration pass for a tenant. It is
// created fresh per run, filled while the run progresses, and reported
// as an immutable value afterwards.
type RunResult struct {
	RunID    string     `json:"run_id"`
	TenantID string     `json:"tenant_id"`
	Trigger  RunTrigger `json:"trigger"`
	State    RunState   `json:"state"`

	ProcessedInvoices int `json:"processed_invoices"`
	MessagesSent      int `json:"messages_sent"`
	Skipped           int `json:"skipped"`
	Errors            int `json:"errors"`

	FailureReason string    `json:"failure_reason,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// BillingMetrics is the JSON snapshot served by GET /v1/metrics/billing.
type BillingMetrics struct {
	TotalRuns          int64   `json:"total_runs"`
	CompletedRuns      int64   `json:"completed_runs"`
	FailedRuns         int64   `json:"failed_runs"`
	InvoicesProcessed  int64   `json:"invoices_processed"`
	MessagesSent       int64   `json:"messages_sent"`
	NotificationErrors int64   `json:"notification_errors"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	Period             string  `json:"period"`
}
