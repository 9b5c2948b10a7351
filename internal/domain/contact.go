package domain

import "time"

// ============================================================
// Contacts (clientes da carteira de cobrança)
// ============================================================

// ContactStatus is the local billing status of a contact, reconciled
// from the payment provider's invoice state.
type ContactStatus string

const (
	ContactActive  ContactStatus = "active"
	ContactOverdue ContactStatus = "overdue"
	ContactPaid    ContactStatus = "paid"
	ContactBlocked ContactStatus = "blocked"
)

// ContactSource records where a contact originally came from.
type ContactSource string

const (
	SourceManual   ContactSource = "manual"
	SourceProvider ContactSource = "provider"
	SourceWhatsApp ContactSource = "whatsapp"
)

// Contact is the local projection of a billable customer. Identity
// fields are owned by user CRUD; status and sync fields are owned by
// the reconciler. The two never share a write.
type Contact struct {
	ID       string        `json:"id"`
	TenantID string        `json:"tenant_id"`
	Name     string        `json:"name"`
	Phone    string        `json:"phone"`
	Email    string        `json:"email"`
	TaxID    string        `json:"tax_id"`
	Status   ContactStatus `json:"status"`
	Source   ContactSource `json:"source"`

	// Financial aggregates, refreshed by the customer sync.
	TotalPaid    float64 `json:"total_paid"`
	OpenInvoices int     `json:"open_invoices"`

	ProviderID string    `json:"provider_id,omitempty"`
	SyncedAt   time.Time `json:"synced_at,omitempty"`
}

// statusRank orders contact statuses for reconciliation precedence:
// overdue > paid > active. Blocked is user-managed and never produced
// by reconciliation.
func statusRank(s ContactStatus) int {
	switch s {
	case ContactOverdue:
		return 3
	case ContactPaid:
		return 2
	case ContactActive:
		return 1
	}
	return 0
}

// MergeContactStatus resolves two reconciled statuses for the same
// contact within one run. An overdue invoice always wins over a paid
// one, regardless of the order invoices were processed in.
func MergeContactStatus(a, b ContactStatus) ContactStatus {
	if statusRank(b) > statusRank(a) {
		return b
	}
	return a
}
