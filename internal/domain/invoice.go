package domain

import "time"

// ============================================================
// Provider-owned entities (read-through projections)
// ============================================================

// InvoiceStatus mirrors the payment provider's charge statuses. The
// engine never writes these back; it only projects them onto
// Contact.Status.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "PENDING"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
	InvoiceReceived  InvoiceStatus = "RECEIVED"
	InvoiceConfirmed InvoiceStatus = "CONFIRMED"
)

// ContactStatusFor maps a provider invoice status to the local contact
// status it implies. Unknown statuses map to active (chargeable but not
// late).
func ContactStatusFor(s InvoiceStatus) ContactStatus {
	switch s {
	case InvoiceOverdue:
		return ContactOverdue
	case InvoiceReceived, InvoiceConfirmed:
		return ContactPaid
	default:
		return ContactActive
	}
}

// Invoice is one charge as reported by the payment provider.
type Invoice struct {
	ID            string        `json:"id"`
	CustomerID    string        `json:"customer_id"`
	InvoiceNumber string        `json:"invoice_number"`
	Value         float64       `json:"value"`
	DueDate       time.Time     `json:"due_date"`
	Status        InvoiceStatus `json:"status"`
	Description   string        `json:"description,omitempty"`

	// Payment surfaces forwarded into message templates.
	InvoiceURL string `json:"invoice_url,omitempty"`
	PixCode    string `json:"pix_code,omitempty"`
}

// Customer is the provider's record of an invoice owner, resolved once
// per run per customer and memoized.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	TaxID string `json:"tax_id"`
}
