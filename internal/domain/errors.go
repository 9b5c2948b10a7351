package domain

import "fmt"

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrAuthentication indicates the provider rejected our credentials.
// Fatal to the run; requires human remediation and is never retried.
type ErrAuthentication struct {
	Service string
}

func (e *ErrAuthentication) Error() string {
	return fmt.Sprintf("authentication rejected by %s: check API credentials", e.Service)
}

// ErrProvider indicates a non-2xx response from the payment provider.
// The current status-class loop is abandoned; other loops continue.
type ErrProvider struct {
	Status int
	Body   string
}

func (e *ErrProvider) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// ErrConfiguration indicates a tenant is missing required billing
// configuration, e.g. no template for a ladder stage. Counted per
// notification, not fatal to the run.
type ErrConfiguration struct {
	TenantID string
	Stage    Stage
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("tenant %s has no template for stage %q", e.TenantID, e.Stage)
}

// ErrTransport indicates the outbound message transport failed to
// deliver. Counted, does not block remaining notifications.
type ErrTransport struct {
	Err error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("message transport failure: %v", e.Err)
}

func (e *ErrTransport) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates a missing or invalid admin token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
