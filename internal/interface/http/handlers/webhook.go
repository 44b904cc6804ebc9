package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/auniver/quiz-bridge/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TELEGRAM WEBHOOK HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// WebhookStatusMessage is returned on GET so the endpoint can be checked by hand.
const WebhookStatusMessage = "Telegram bot webhook is working with API Bridge"

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *tgbotapi.Update) error
}

// TelegramWebhook serves /api/telegram/webhook.
//
// A decoded update is always acknowledged with 200 so Telegram does not
// redeliver it; processing errors are only logged.
type TelegramWebhook struct {
	updates UpdateHandler
	logger  *logger.Logger
	now     func() time.Time
}

// NewTelegramWebhook creates a new webhook handler.
func NewTelegramWebhook(updates UpdateHandler, log *logger.Logger) *TelegramWebhook {
	if log == nil {
		log = logger.Default()
	}
	return &TelegramWebhook{
		updates: updates,
		logger:  log.With(logger.Component("telegram_webhook")),
		now:     time.Now,
	}
}

// ServeHTTP implements http.Handler.
func (h *TelegramWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"message":   WebhookStatusMessage,
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
	case http.MethodPost:
		h.handlePost(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *TelegramWebhook) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No data")
		return
	}

	// null and {} carry no update.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		h.logger.Warn("invalid webhook payload", logger.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "No data")
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		h.logger.Warn("failed to decode telegram update", logger.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.updates.HandleUpdate(r.Context(), &update); err != nil {
		h.logger.Error("update processing failed", logger.UpdateID(update.UpdateID), logger.Err(err))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
