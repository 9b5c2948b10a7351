package integration_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/handler"
	"github.com/billzap/billzap-go/internal/infra/cache"
	"github.com/billzap/billzap-go/internal/infra/observability"
	"github.com/billzap/billzap-go/internal/infra/provider"
	"github.com/billzap/billzap-go/internal/infra/resilience"
	"github.com/billzap/billzap-go/internal/infra/supabase"
	"github.com/billzap/billzap-go/internal/infra/transport"
	"github.com/billzap/billzap-go/internal/service"
)

const jwtSecret = "integration-secret"

// TestIntegration_ManualRunFullFlow spins up mock external services and
// drives one manual billing run through the HTTP API.
func TestIntegration_ManualRunFullFlow(t *testing.T) {
	// --- Mock payment provider ---
	providerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("access_token") != "prov-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/customers":
			fmt.Fprint(w, `{"data":[
				{"id":"cus_1","name":"Maria Silva","email":"maria@example.com","mobilePhone":"+5511911110000","cpfCnpj":"12345678900"},
				{"id":"cus_2","name":"Ana Souza","email":"ana@example.com","mobilePhone":"+5511922220000","cpfCnpj":"98765432100"}
			],"hasMore":false}`)
		case r.URL.Path == "/payments" && r.URL.Query().Get("status") == "PENDING":
			// Due today.
			today := time.Now().Format("2006-01-02")
			fmt.Fprintf(w, `{"data":[
				{"id":"pay_1","customer":"cus_1","invoiceNumber":"F-1","value":150.5,"dueDate":"%s","status":"PENDING","invoiceUrl":"https://pay.example/f1"}
			],"hasMore":false}`, today)
		case r.URL.Path == "/payments":
			fmt.Fprint(w, `{"data":[],"hasMore":false}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer providerServer.Close()

	// --- Mock Supabase PostgREST ---
	var mu sync.Mutex
	statusWrites := 0
	contactUpserts := 0

	supabaseServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/rest/v1/tenant_billing_settings"):
			fmt.Fprint(w, `[{"tenant_id":"tenant-1","daily_trigger_time":"08:00","days_before_due":3,"remind_before_enabled":true,"remind_on_due_date_enabled":true,"recovery_enabled":true,"recovery_weekdays":[1,2,3,4,5]}]`)
		case strings.HasPrefix(r.URL.Path, "/rest/v1/message_templates"):
			io.WriteString(w, `[
				{"tenant_id":"tenant-1","stage":"preventive","body":"Olá %name%, a fatura %invoice% vence em breve."},
				{"tenant_id":"tenant-1","stage":"due_date","body":"Olá %name%, a fatura %invoice% de R$ %valor% vence hoje. %link%"},
				{"tenant_id":"tenant-1","stage":"overdue","body":"Olá %name%, a fatura %invoice% está em aberto."}
			]`)
		case strings.HasPrefix(r.URL.Path, "/rest/v1/contacts") && r.Method == http.MethodPatch:
			mu.Lock()
			statusWrites++
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		case strings.HasPrefix(r.URL.Path, "/rest/v1/contacts") && r.Method == http.MethodPost:
			mu.Lock()
			contactUpserts++
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer supabaseServer.Close()

	// --- Mock WhatsApp gateway ---
	var sentBodies []string
	whatsappServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PhoneNumber string `json:"phoneNumber"`
			Message     string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		sentBodies = append(sentBodies, req.Message)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"message":"Accepted","messageId":"wamid-1"}`)
	}))
	defer whatsappServer.Close()

	// --- Build service & router ---
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	resilienceCfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	providerClient := provider.NewClient(httpClient, providerServer.URL, "prov-key",
		resilience.NewCircuitBreaker("provider-it"), logger)
	supabaseClient := supabase.NewClient(httpClient, supabaseServer.URL, "anon", "service",
		resilience.NewCircuitBreaker("supabase-it"), resilienceCfg, logger)
	whatsappClient := transport.NewWhatsAppClient(httpClient, whatsappServer.URL, "", logger)

	svc := service.NewBillingService(
		providerClient, supabaseClient, supabaseClient, whatsappClient,
		cache.New[domain.RunResult](time.Hour),
		metrics, logger, 100,
	)

	router := handler.NewRouter(svc, nil, nil, metrics, logger, jwtSecret)

	// --- Trigger a manual run ---
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/tenants/tenant-1/billing/run", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode run result: %v", err)
	}

	if result.State != domain.RunCompleted {
		t.Fatalf("expected completed run, got %s (%s)", result.State, result.FailureReason)
	}
	if result.ProcessedInvoices != 1 {
		t.Errorf("expected 1 processed invoice, got %d", result.ProcessedInvoices)
	}
	if result.MessagesSent != 1 {
		t.Fatalf("expected 1 message sent, got %d", result.MessagesSent)
	}

	mu.Lock()
	defer mu.Unlock()
	if contactUpserts != 2 {
		t.Errorf("expected 2 provider contact upserts, got %d", contactUpserts)
	}
	if statusWrites != 1 {
		t.Errorf("expected 1 reconciled status write, got %d", statusWrites)
	}
	if len(sentBodies) != 1 || !strings.Contains(sentBodies[0], "Olá Maria Silva, a fatura F-1 de R$ 150.50 vence hoje.") {
		t.Errorf("unexpected message bodies: %v", sentBodies)
	}

	// --- The run is visible on the last-run endpoint ---
	lastReq := httptest.NewRequest(http.MethodGet, "/v1/tenants/tenant-1/billing/runs/last", nil)
	lastRec := httptest.NewRecorder()
	router.ServeHTTP(lastRec, lastReq)

	if lastRec.Code != http.StatusOK {
		t.Fatalf("expected 200 from last-run endpoint, got %d", lastRec.Code)
	}
	if !strings.Contains(lastRec.Body.String(), result.RunID) {
		t.Errorf("expected last run to match run %s", result.RunID)
	}
}
