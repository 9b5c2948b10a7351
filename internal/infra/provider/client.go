// Package provider implements the paginated HTTP client against the
// payment provider's REST API (Asaas-compatible). All list calls are a
// single pass, page by page; failed pages are not retried, the caller
// decides whether the partial data is usable.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
)

var tracer = otel.Tracer("provider")

const dueDateLayout = "2006-01-02"

// Client talks to the payment provider's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a provider client. apiKey is sent on every request
// in the access_token header.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		logger:     logger,
	}
}

// page is the provider's list envelope.
type page[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"hasMore"`
}

// paymentRow maps the provider's charge payload.
type paymentRow struct {
	ID            string  `json:"id"`
	Customer      string  `json:"customer"`
	InvoiceNumber string  `json:"invoiceNumber"`
	Value         float64 `json:"value"`
	DueDate       string  `json:"dueDate"`
	Status        string  `json:"status"`
	Description   string  `json:"description"`
	InvoiceURL    string  `json:"invoiceUrl"`
	PixCode       string  `json:"pixTransaction"`
}

// customerRow maps the provider's customer payload.
type customerRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	MobilePhone string `json:"mobilePhone"`
	Phone       string `json:"phone"`
	CpfCnpj     string `json:"cpfCnpj"`
}

func (r paymentRow) toDomain() (domain.Invoice, error) {
	due, err := time.Parse(dueDateLayout, r.DueDate)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("invalid dueDate %q: %w", r.DueDate, err)
	}
	return domain.Invoice{
		ID:            r.ID,
		CustomerID:    r.Customer,
		InvoiceNumber: r.InvoiceNumber,
		Value:         r.Value,
		DueDate:       due,
		Status:        domain.InvoiceStatus(r.Status),
		Description:   r.Description,
		InvoiceURL:    r.InvoiceURL,
		PixCode:       r.PixCode,
	}, nil
}

func (r customerRow) toDomain() domain.Customer {
	phone := r.MobilePhone
	if phone == "" {
		phone = r.Phone
	}
	return domain.Customer{
		ID:    r.ID,
		Name:  r.Name,
		Email: r.Email,
		Phone: phone,
		TaxID: r.CpfCnpj,
	}
}

// doGet executes one authenticated GET against the provider.
// 401 maps to ErrAuthentication, any other non-2xx to ErrProvider.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.cb.Execute(func() (any, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error("provider: request failed",
				zap.String("path", path),
				zap.Error(err),
			)
			return nil, &domain.ErrTransport{Err: err}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &domain.ErrTransport{Err: err}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			c.logger.Error("provider: credentials rejected", zap.String("path", path))
			return nil, &domain.ErrAuthentication{Service: "provider"}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.Warn("provider: non-2xx response",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
			)
			return nil, &domain.ErrProvider{Status: resp.StatusCode, Body: string(raw)}
		}

		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// ListPaymentsByStatus streams every charge in the given status through
// visit, walking offset pages until the provider reports no more data.
func (c *Client) ListPaymentsByStatus(ctx context.Context, status domain.InvoiceStatus, pageSize int, visit func(domain.Invoice) error) error {
	ctx, span := tracer.Start(ctx, "Provider.ListPaymentsByStatus")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.status", string(status)))

	for offset := 0; ; offset += pageSize {
		path := fmt.Sprintf("payments?status=%s&limit=%d&offset=%d",
			url.QueryEscape(string(status)), pageSize, offset)
		raw, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}

		var p page[paymentRow]
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode payments page: %w", err)
		}
		if len(p.Data) == 0 {
			return nil
		}
		for _, row := range p.Data {
			inv, err := row.toDomain()
			if err != nil {
				// A zero due date would read as overdue by years and
				// trigger bogus recovery messages. Skip the charge.
				c.logger.Warn("provider: skipping charge with unparseable due date",
					zap.String("payment_id", row.ID),
					zap.Error(err),
				)
				continue
			}
			if err := visit(inv); err != nil {
				return err
			}
		}
		if !p.HasMore {
			return nil
		}
	}
}

// ListCustomers streams the whole customer base through visit.
func (c *Client) ListCustomers(ctx context.Context, pageSize int, visit func(domain.Customer) error) error {
	ctx, span := tracer.Start(ctx, "Provider.ListCustomers")
	defer span.End()

	for offset := 0; ; offset += pageSize {
		path := fmt.Sprintf("customers?limit=%d&offset=%d", pageSize, offset)
		raw, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}

		var p page[customerRow]
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode customers page: %w", err)
		}
		if len(p.Data) == 0 {
			return nil
		}
		for _, row := range p.Data {
			if err := visit(row.toDomain()); err != nil {
				return err
			}
		}
		if !p.HasMore {
			return nil
		}
	}
}

// GetCustomer fetches a single customer by provider id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Provider.GetCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	raw, err := c.doGet(ctx, fmt.Sprintf("customers/%s", url.PathEscape(customerID)))
	if err != nil {
		return nil, err
	}

	var row customerRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode customer: %w", err)
	}
	cust := row.toDomain()
	return &cust, nil
}
