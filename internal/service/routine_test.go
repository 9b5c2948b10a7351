package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/infra/cache"
	"github.com/billzap/billzap-go/internal/infra/observability"
	"github.com/billzap/billzap-go/internal/service"
)

// --- Mocks ---

type fakeGateway struct {
	customers    []domain.Customer
	customersErr error
	payments     map[domain.InvoiceStatus][]domain.Invoice
	paymentsErr  map[domain.InvoiceStatus]error
	lookups      int
}

func (f *fakeGateway) ListCustomers(_ context.Context, _ int, visit func(domain.Customer) error) error {
	if f.customersErr != nil {
		return f.customersErr
	}
	for _, c := range f.customers {
		if err := visit(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeGateway) ListPaymentsByStatus(_ context.Context, status domain.InvoiceStatus, _ int, visit func(domain.Invoice) error) error {
	if err := f.paymentsErr[status]; err != nil {
		return err
	}
	for _, inv := range f.payments[status] {
		if err := visit(inv); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeGateway) GetCustomer(_ context.Context, customerID string) (*domain.Customer, error) {
	f.lookups++
	for _, c := range f.customers {
		if c.ID == customerID {
			cc := c
			return &cc, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "customer", ID: customerID}
}

type fakeContacts struct {
	statusWrites   map[string]domain.ContactStatus
	providerWrites int
	statusErr      error
}

func newFakeContacts() *fakeContacts {
	return &fakeContacts{statusWrites: make(map[string]domain.ContactStatus)}
}

func (f *fakeContacts) UpsertContactStatus(_ context.Context, _, email string, status domain.ContactStatus) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusWrites[email] = status
	return nil
}

func (f *fakeContacts) UpsertProviderContact(_ context.Context, _ string, _ *domain.Contact) error {
	f.providerWrites++
	return nil
}

func (f *fakeContacts) ListContactsByTenant(_ context.Context, _ string, _ domain.ContactStatus) ([]domain.Contact, error) {
	return nil, nil
}

type fakeSettings struct {
	cfg       *domain.TenantBillingConfig
	templates domain.TemplateSet
	tenants   []string
	err       error
}

func (f *fakeSettings) GetBillingSettings(_ context.Context, _ string) (*domain.TenantBillingConfig, error) {
	return f.cfg, f.err
}

func (f *fakeSettings) GetTemplateSet(_ context.Context, _ string) (domain.TemplateSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.templates, nil
}

func (f *fakeSettings) ListTenantIDs(_ context.Context) ([]string, error) {
	return f.tenants, f.err
}

type sentMessage struct {
	Phone string
	Body  string
}

type fakeTransport struct {
	sent []sentMessage
	err  error
}

func (f *fakeTransport) SendMessage(_ context.Context, phone, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{Phone: phone, Body: body})
	return "msg-1", nil
}

// --- Fixtures ---

// wednesday is a recovery weekday in the default test config.
var wednesday = time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC)

func defaultTemplates() domain.TemplateSet {
	return domain.TemplateSet{
		domain.StagePreventive: "Olá %name%, sua fatura %invoice% de R$ %valor% vence em breve.",
		domain.StageDueDate:    "Olá %name%, sua fatura %invoice% vence hoje. %link%",
		domain.StageOverdue:    "Olá %name%, sua fatura %invoice% está em aberto. Pague via PIX: %pix%",
	}
}

func newService(gw *fakeGateway, contacts *fakeContacts, settings *fakeSettings, transport *fakeTransport) *service.BillingService {
	return service.NewBillingService(
		gw, contacts, settings, transport,
		cache.New[domain.RunResult](time.Hour),
		observability.NewMetrics(),
		zap.NewNop(),
		100,
	).WithClock(func() time.Time { return wednesday })
}

// --- Tests ---

func TestRunDailyRoutine_FullPass(t *testing.T) {
	gw := &fakeGateway{
		customers: []domain.Customer{
			{ID: "cus_1", Name: "Maria", Email: "maria@example.com", Phone: "+5511911110000"},
			{ID: "cus_2", Name: "João", Email: "joao@example.com", Phone: "+5511922220000"},
			{ID: "cus_3", Name: "Ana", Email: "ana@example.com", Phone: "+5511933330000"},
		},
		payments: map[domain.InvoiceStatus][]domain.Invoice{
			// Ana is overdue since last week; Wednesday is a recovery day.
			domain.InvoiceOverdue: {
				{ID: "pay_3", CustomerID: "cus_3", InvoiceNumber: "F-3", Value: 300, Status: domain.InvoiceOverdue, DueDate: date(2026, 8, 25), PixCode: "pix-3"},
			},
			domain.InvoiceReceived: {
				{ID: "pay_4", CustomerID: "cus_2", InvoiceNumber: "F-4", Value: 50, Status: domain.InvoiceReceived, DueDate: date(2026, 8, 20)},
			},
			domain.InvoicePending: {
				// Maria's invoice is due in exactly DaysBeforeDue days.
				{ID: "pay_1", CustomerID: "cus_1", InvoiceNumber: "F-1", Value: 150.5, Status: domain.InvoicePending, DueDate: date(2026, 9, 5)},
				// João's invoice is due today.
				{ID: "pay_2", CustomerID: "cus_2", InvoiceNumber: "F-2", Value: 80, Status: domain.InvoicePending, DueDate: date(2026, 9, 2)},
			},
		},
	}
	contacts := newFakeContacts()
	settings := &fakeSettings{
		cfg: &domain.TenantBillingConfig{
			TenantID:               "tenant-1",
			DaysBeforeDue:          3,
			RemindBeforeEnabled:    true,
			RemindOnDueDateEnabled: true,
			RecoveryEnabled:        true,
			RecoveryWeekdays:       []int{int(time.Wednesday)},
		},
		templates: defaultTemplates(),
	}
	transport := &fakeTransport{}

	svc := newService(gw, contacts, settings, transport)
	result := svc.RunDailyRoutine(context.Background(), "tenant-1", domain.TriggerManual)

	if result.State != domain.RunCompleted {
		t.Fatalf("expected completed run, got %s (%s)", result.State, result.FailureReason)
	}
	if result.ProcessedInvoices != 4 {
		t.Errorf("expected 4 processed invoices, got %d", result.ProcessedInvoices)
	}
	if result.MessagesSent != 3 {
		t.Fatalf("expected 3 messages sent, got %d", result.MessagesSent)
	}
	if result.Errors != 0 {
		t.Errorf("expected no errors, got %d", result.Errors)
	}

	if contacts.providerWrites != 3 {
		t.Errorf("expected 3 provider contact upserts, got %d", contacts.providerWrites)
	}

	// João paid one invoice but still owes the one due today; the
	// pending projection keeps him active, the received one marks him
	// paid, and paid wins over active.
	if got := contacts.statusWrites["joao@example.com"]; got != domain.ContactPaid {
		t.Errorf("expected joao paid, got %s", got)
	}
	if got := contacts.statusWrites["ana@example.com"]; got != domain.ContactOverdue {
		t.Errorf("expected ana overdue, got %s", got)
	}
	if got := contacts.statusWrites["maria@example.com"]; got != domain.ContactActive {
		t.Errorf("expected maria active, got %s", got)
	}

	// Template rendering carried the customer and invoice fields.
	for _, msg := range transport.sent {
		if msg.Phone == "+5511933330000" && msg.Body != "Olá Ana, sua fatura F-3 está em aberto. Pague via PIX: pix-3" {
			t.Errorf("unexpected overdue message body: %q", msg.Body)
		}
	}

	// The run is retrievable afterwards.
	last, ok := svc.LastRunResult("tenant-1")
	if !ok || last.RunID != result.RunID {
		t.Errorf("expected last run result cached, ok=%v", ok)
	}
}

func TestRunDailyRoutine_CustomerSyncFailureFailsRun(t *testing.T) {
	gw := &fakeGateway{
		customersErr: &domain.ErrProvider{Status: 503, Body: "unavailable"},
	}
	settings := &fakeSettings{cfg: &domain.TenantBillingConfig{TenantID: "tenant-1"}, templates: defaultTemplates()}
	transport := &fakeTransport{}

	svc := newService(gw, newFakeContacts(), settings, transport)
	result := svc.RunDailyRoutine(context.Background(), "tenant-1", domain.TriggerScheduled)

	if result.State != domain.RunFailed {
		t.Fatalf("expected failed run, got %s", result.State)
	}
	if result.FailureReason == "" {
		t.Error("expected failure reason to be recorded")
	}
	if len(transport.sent) != 0 {
		t.Errorf("expected no messages after sync failure, got %d", len(transport.sent))
	}
}

func TestRunDailyRoutine_AuthErrorFailsRun(t *testing.T) {
	gw := &fakeGateway{
		customers: []domain.Customer{{ID: "cus_1", Email: "a@b.c", Phone: "+55"}},
		paymentsErr: map[domain.InvoiceStatus]error{
			domain.InvoiceOverdue: &domain.ErrAuthentication{Service: "provider"},
		},
	}
	settings := &fakeSettings{
		cfg:       &domain.TenantBillingConfig{TenantID: "tenant-1"},
		templates: defaultTemplates(),
	}
	transport := &fakeTransport{}

	svc := newService(gw, newFakeContacts(), settings, transport)
	result := svc.RunDailyRoutine(context.Background(), "tenant-1", domain.TriggerScheduled)

	if result.State != domain.RunFailed {
		t.Fatalf("expected failed run on rejected credentials, got %s", result.State)
	}
	if len(transport.sent) != 0 {
		t.Errorf("expected no messages, got %d", len(transport.sent))
	}
}

func TestRunDailyRoutine_ProviderErrorAbandonsClassOnly(t *testing.T) {
	gw := &fakeGateway{
		customers: []domain.Customer{
			{ID: "cus_1", Name: "Maria", Email: "maria@example.com", Phone: "+5511911110000"},
		},
		payments: map[domain.InvoiceStatus][]domain.Invoice{
			domain.InvoicePending: {
				{ID: "pay_1", CustomerID: "cus_1", InvoiceNumber: "F-1", Value: 10, Status: domain.InvoicePending, DueDate: date(2026, 9, 2)},
			},
		},
		paymentsErr: map[domain.InvoiceStatus]error{
			domain.InvoiceOverdue: &domain.ErrProvider{Status: 500, Body: "boom"},
		},
	}
	settings := &fakeSettings{
		cfg: &domain.TenantBillingConfig{
			TenantID:               "tenant-1",
			RemindOnDueDateEnabled: true,
		},
		templates: defaultTemplates(),
	}
	transport := &fakeTransport{}

	svc := newService(gw, newFakeContacts(), settings, transport)
	result := svc.RunDailyRoutine(context.Background(), "tenant-1", domain.TriggerManual)

	if result.State != domain.RunCompleted {
		t.Fatalf("expected completed run despite one failed class, got %s", result.State)
	}
	if result.Errors != 1 {
		t.Errorf("expected 1 error for the abandoned class, got %d", result.Errors)
	}
	if result.MessagesSent != 1 {
		t.Errorf("expected pending class to still notify, got %d", result.MessagesSent)
	}
}

func TestRunDailyRoutine_TransportFailuresDoNotFailRun(t *testing.T) {
	gw := &fakeGateway{
		customers: []domain.Customer{
			{ID: "cus_1", Name: "Maria", Email: "maria@example.com", Phone: "+5511911110000"},
		},
		payments: map[domain.InvoiceStatus][]domain.Invoice{
			domain.InvoicePending: {
				{ID: "pay_1", CustomerID: "cus_1", InvoiceNumber: "F-1", Value: 10, Status: domain.InvoicePending, DueDate: date(2026, 9, 2)},
			},
		},
	}
	settings := &fakeSettings{
		cfg:       &domain.TenantBillingConfig{TenantID: "tenant-1", RemindOnDueDateEnabled: true},
		templates: defaultTemplates(),
	}
	transport := &fakeTransport{err: &domain.ErrTransport{Err: context.DeadlineExceeded}}

	svc := newService(gw, newFakeContacts(), settings, transport)
	result := svc.RunDailyRoutine(context.Background(), "tenant-1", domain.TriggerManual)

	if result.State != domain.RunCompleted {
		t.Fatalf("expected completed run, got %s", result.State)
	}
	if result.Errors != 1 {
		t.Errorf("expected 1 delivery error, got %d", result.Errors)
	}
	if result.MessagesSent != 0 {
		t.Errorf("expected 0 messages sent, got %d", result.MessagesSent)
	}
}

func TestRunDailyRoutine_MissingPhoneSkips(t *testing.T) {
	gw := &fakeGateway{
		customers: []domain.Customer{
			{ID: "cus_1", Name: "Maria", Email: "maria@example.com"}, // no phone
		},
		payments: map[domain.InvoiceStatus][]domain.Invoice{
			domain.InvoicePending: {
				{ID: "pay_1", CustomerID: "cus_1", InvoiceNumber: "F-1", Value: 10, Status: domain.InvoicePending, DueDate: date(2026, 9, 2)},
			},
		},
	}
	settings := &fakeSettings{
		cfg:       &domain.TenantBillingConfig{TenantID: "tenant-1", RemindOnDueDateEnabled: true},
		templates: defaultTemplates(),
	}
	transport := &fakeTransport{}

	svc := newService(gw, newFakeContacts(), settings, transport)
	result := svc.RunDailyRoutine(context.Background(), "tenant-1", domain.TriggerManual)

	if result.State != domain.RunCompleted {
		t.Fatalf("expected completed run, got %s", result.State)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", result.Skipped)
	}
	if result.Errors != 0 {
		t.Errorf("a missing phone is not an error, got %d", result.Errors)
	}
}

func TestRunDailyRoutine_MissingTemplateCountsError(t *testing.T) {
	gw := &fakeGateway{
		customers: []domain.Customer{
			{ID: "cus_1", Name: "Maria", Email: "maria@example.com", Phone: "+5511911110000"},
		},
		payments: map[domain.InvoiceStatus][]domain.Invoice{
			domain.InvoicePending: {
				{ID: "pay_1", CustomerID: "cus_1", InvoiceNumber: "F-1", Value: 10, Status: domain.InvoicePending, DueDate: date(2026, 9, 2)},
			},
		},
	}
	settings := &fakeSettings{
		cfg:       &domain.TenantBillingConfig{TenantID: "tenant-1", RemindOnDueDateEnabled: true},
		templates: domain.TemplateSet{}, // no templates configured
	}
	transport := &fakeTransport{}

	svc := newService(gw, newFakeContacts(), settings, transport)
	result := svc.RunDailyRoutine(context.Background(), "tenant-1", domain.TriggerManual)

	if result.State != domain.RunCompleted {
		t.Fatalf("expected completed run, got %s", result.State)
	}
	if result.Errors != 1 {
		t.Errorf("expected 1 configuration error, got %d", result.Errors)
	}
	if len(transport.sent) != 0 {
		t.Errorf("expected nothing sent, got %d", len(transport.sent))
	}
}

func TestRunDailyRoutine_MissingTemplateReportedBeforeMissingPhone(t *testing.T) {
	// When both the template and the phone are absent the tenant
	// misconfiguration is the finding that matters.
	gw := &fakeGateway{
		customers: []domain.Customer{
			{ID: "cus_1", Name: "Maria", Email: "maria@example.com"}, // no phone
		},
		payments: map[domain.InvoiceStatus][]domain.Invoice{
			domain.InvoicePending: {
				{ID: "pay_1", CustomerID: "cus_1", InvoiceNumber: "F-1", Value: 10, Status: domain.InvoicePending, DueDate: date(2026, 9, 2)},
			},
		},
	}
	settings := &fakeSettings{
		cfg:       &domain.TenantBillingConfig{TenantID: "tenant-1", RemindOnDueDateEnabled: true},
		templates: domain.TemplateSet{}, // no templates configured
	}
	transport := &fakeTransport{}

	svc := newService(gw, newFakeContacts(), settings, transport)
	result := svc.RunDailyRoutine(context.Background(), "tenant-1", domain.TriggerManual)

	if result.Errors != 1 {
		t.Errorf("expected 1 configuration error, got %d", result.Errors)
	}
	if result.Skipped != 0 {
		t.Errorf("expected 0 skipped, got %d", result.Skipped)
	}
}

func TestRunDailyRoutine_CustomerLookupsAreMemoized(t *testing.T) {
	gw := &fakeGateway{
		customers: []domain.Customer{
			{ID: "cus_1", Name: "Maria", Email: "maria@example.com", Phone: "+5511911110000"},
		},
		payments: map[domain.InvoiceStatus][]domain.Invoice{
			domain.InvoicePending: {
				{ID: "pay_1", CustomerID: "cus_1", Status: domain.InvoicePending, DueDate: date(2026, 9, 2)},
				{ID: "pay_2", CustomerID: "cus_1", Status: domain.InvoicePending, DueDate: date(2026, 9, 10)},
				{ID: "pay_3", CustomerID: "cus_1", Status: domain.InvoicePending, DueDate: date(2026, 9, 20)},
			},
		},
	}
	settings := &fakeSettings{
		cfg:       &domain.TenantBillingConfig{TenantID: "tenant-1", RemindOnDueDateEnabled: true},
		templates: defaultTemplates(),
	}

	svc := newService(gw, newFakeContacts(), settings, &fakeTransport{})
	result := svc.RunDailyRoutine(context.Background(), "tenant-1", domain.TriggerManual)

	if result.State != domain.RunCompleted {
		t.Fatalf("expected completed run, got %s", result.State)
	}
	// The customer sync prefills the memo, so the invoice passes never
	// hit the provider's customer endpoint.
	if gw.lookups != 0 {
		t.Errorf("expected 0 customer lookups, got %d", gw.lookups)
	}
}
