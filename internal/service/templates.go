package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
	"github.com/billzap/billzap-go/internal/port"
)

// ============================================================
// Template advisor
// ============================================================

// TemplateAdvisor drafts message-template suggestions for a ladder
// stage. The suggestion is a draft only; nothing is persisted and the
// billing pipeline never depends on it.
type TemplateAdvisor struct {
	completer port.TextCompleter
	logger    *zap.Logger
}

// NewTemplateAdvisor creates a template advisor.
func NewTemplateAdvisor(completer port.TextCompleter, logger *zap.Logger) *TemplateAdvisor {
	return &TemplateAdvisor{completer: completer, logger: logger}
}

var stagePrompts = map[domain.Stage]string{
	domain.StagePreventive: "um lembrete amigável de que a fatura vence em breve",
	domain.StageDueDate:    "um lembrete de que a fatura vence hoje",
	domain.StageOverdue:    "uma cobrança cordial de fatura vencida",
}

// Suggest returns a draft WhatsApp message template for the stage,
// carrying the standard placeholder tokens.
func (a *TemplateAdvisor) Suggest(ctx context.Context, tenantID string, stage domain.Stage, tone string) (string, error) {
	ctx, span := tracer.Start(ctx, "TemplateAdvisor.Suggest")
	defer span.End()

	if !stage.Valid() {
		return "", &domain.ErrValidation{Field: "stage", Message: "must be preventive, due_date or overdue"}
	}
	if tone == "" {
		tone = "profissional e cordial"
	}

	prompt := fmt.Sprintf(
		"Escreva uma mensagem curta de WhatsApp em português brasileiro: %s. "+
			"Tom: %s. Use os placeholders %%name%%, %%invoice%%, %%valor%% e, se fizer sentido, %%link%% e %%pix%%. "+
			"Responda apenas com o texto da mensagem.",
		stagePrompts[stage], tone,
	)

	draft, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		a.logger.Error("template suggestion failed",
			zap.String("tenant_id", tenantID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return "", err
	}

	return strings.TrimSpace(draft), nil
}
