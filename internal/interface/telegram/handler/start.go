package handler

import (
	"context"

	"github.com/auniver/quiz-bridge/internal/interface/telegram/presenter"
	"github.com/auniver/quiz-bridge/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// START HANDLER
// Handles /start, /help and the "help" callback.
// ══════════════════════════════════════════════════════════════════════════════

// StartHandler greets the user. Linked users see their name, others get
// onboarding instructions. Both get the same keyboard.
type StartHandler struct {
	backend   LinkageChecker
	users     TelegramUserRegistrar
	presenter *presenter.Presenter
	logger    *logger.Logger
}

// NewStartHandler creates a new StartHandler.
func NewStartHandler(backend LinkageChecker, users TelegramUserRegistrar, p *presenter.Presenter, log *logger.Logger) *StartHandler {
	return &StartHandler{
		backend:   backend,
		users:     users,
		presenter: p,
		logger:    log.With(logger.Command("start")),
	}
}

// Handle processes /start.
func (h *StartHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	text := h.presenter.WelcomeUnlinked()

	// Any backend failure reads as "not linked".
	if linked, err := h.backend.GetTelegramUser(ctx, req.SenderID()); err == nil {
		text = h.presenter.WelcomeLinked(linked.Name)
	} else {
		h.logger.Debug("telegram user not linked", logger.TelegramID(req.SenderID()), logger.Err(err))
	}

	h.recordUser(ctx, req)

	return &Response{
		Text:     text,
		Keyboard: h.presenter.StartKeyboard(),
	}, nil
}

// recordUser keeps an analytics row for everyone who pressed /start.
func (h *StartHandler) recordUser(ctx context.Context, req Request) {
	if h.users == nil || req.From == nil {
		return
	}
	if _, err := h.users.GetOrCreate(ctx, req.Identity()); err != nil {
		h.logger.Error("failed to record telegram user", logger.TelegramID(req.SenderID()), logger.Err(err))
	}
}
