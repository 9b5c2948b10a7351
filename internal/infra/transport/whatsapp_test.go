package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
)

func TestWhatsAppClient_SendMessage_Success(t *testing.T) {
	t.Parallel()

	type gotReq struct {
		Method      string
		Path        string
		AuthHeader  string
		ContentType string
		Body        []byte
	}

	var captured gotReq

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.AuthHeader = r.Header.Get("Authorization")
		captured.ContentType = r.Header.Get("Content-Type")
		captured.Body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted","messageId":"abc-123"}`))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.Client(), srv.URL, "tok-1", zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msgID, err := c.SendMessage(ctx, "+5511999990000", "Olá")
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if msgID != "abc-123" {
		t.Fatalf("expected messageId %q, got %q", "abc-123", msgID)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %q", captured.Method)
	}
	if captured.Path != "/send" {
		t.Fatalf("expected path /send, got %q", captured.Path)
	}
	if captured.AuthHeader != "Bearer tok-1" {
		t.Fatalf("expected bearer token, got %q", captured.AuthHeader)
	}

	var req sendRequest
	if err := json.Unmarshal(captured.Body, &req); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured.Body))
	}
	if req.PhoneNumber != "+5511999990000" {
		t.Fatalf("expected phoneNumber %q, got %q", "+5511999990000", req.PhoneNumber)
	}
	if req.Message != "Olá" {
		t.Fatalf("expected message %q, got %q", "Olá", req.Message)
	}
}

func TestWhatsAppClient_SendMessage_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("gateway down"))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.Client(), srv.URL, "", zap.NewNop())

	_, err := c.SendMessage(context.Background(), "+55", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	var transportErr *domain.ErrTransport
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected ErrTransport, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "unexpected status code: 502") {
		t.Fatalf("expected error to mention status code, got: %v", err)
	}
}

func TestWhatsAppClient_SendMessage_MissingMessageID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.Client(), srv.URL, "", zap.NewNop())

	_, err := c.SendMessage(context.Background(), "+55", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "missing messageId") {
		t.Fatalf("expected missing messageId error, got: %v", err)
	}
}
