package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/service"
)

// ============================================================
// Billing admin endpoints
// ============================================================

// runBillingHandler triggers the daily routine for one tenant and
// returns the full run report, whether the run succeeded or not.
func runBillingHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		if tenantID == "" {
			writeError(w, http.StatusBadRequest, "tenantID is required")
			return
		}

		logger.Info("manual billing run requested",
			zap.String("tenant_id", tenantID),
			zap.String("subject", SubjectFromContext(r.Context())),
		)

		result := svc.RunDailyRoutine(r.Context(), tenantID, domain.TriggerManual)
		writeJSON(w, http.StatusOK, result)
	}
}

// lastRunHandler returns the most recent run report for a tenant.
func lastRunHandler(svc *service.BillingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		result, ok := svc.LastRunResult(tenantID)
		if !ok {
			writeError(w, http.StatusNotFound, "no run recorded for tenant "+tenantID)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func billingSettingsHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		cfg, err := svc.GetSettings(r.Context(), tenantID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func listTemplatesHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		templates, err := svc.GetTemplates(r.Context(), tenantID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, templates)
	}
}

func listContactsHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		status := domain.ContactStatus(r.URL.Query().Get("status"))

		contacts, err := svc.ListContacts(r.Context(), tenantID, status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, contacts)
	}
}

type suggestTemplateRequest struct {
	Stage domain.Stage `json:"stage"`
	Tone  string       `json:"tone"`
}

type suggestTemplateResponse struct {
	Stage    domain.Stage `json:"stage"`
	Template string       `json:"template"`
}

func suggestTemplateHandler(advisor *service.TemplateAdvisor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		var req suggestTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		draft, err := advisor.Suggest(r.Context(), tenantID, req.Stage, req.Tone)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, suggestTemplateResponse{Stage: req.Stage, Template: draft})
	}
}
