package handler

import (
	"context"
	"errors"

	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/internal/domain/telegramuser"
	"github.com/auniver/quiz-bridge/internal/interface/telegram/presenter"
	"github.com/auniver/quiz-bridge/pkg/logger"
)

// LinkHandler answers /link and the "link_account" callback.
type LinkHandler struct {
	presenter *presenter.Presenter
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(p *presenter.Presenter) *LinkHandler {
	return &LinkHandler{presenter: p}
}

// Handle returns the linking instructions.
func (h *LinkHandler) Handle(_ context.Context, _ Request) (*Response, error) {
	return &Response{Text: h.presenter.LinkInstructions()}, nil
}

// UnknownHandler answers anything the router does not recognize.
type UnknownHandler struct {
	presenter *presenter.Presenter
}

// NewUnknownHandler creates a new UnknownHandler.
func NewUnknownHandler(p *presenter.Presenter) *UnknownHandler {
	return &UnknownHandler{presenter: p}
}

// Handle returns the command list.
func (h *UnknownHandler) Handle(_ context.Context, _ Request) (*Response, error) {
	return &Response{Text: h.presenter.UnknownCommand()}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CREDENTIALS HANDLER
// Handles "email:<addr>" and "password:<pw>" messages.
// ══════════════════════════════════════════════════════════════════════════════

// CredentialsHandler feeds the two linking messages to the linking service.
type CredentialsHandler struct {
	linker    AccountLinker
	presenter *presenter.Presenter
	logger    *logger.Logger
}

// NewCredentialsHandler creates a new CredentialsHandler.
func NewCredentialsHandler(linker AccountLinker, p *presenter.Presenter, log *logger.Logger) *CredentialsHandler {
	return &CredentialsHandler{
		linker:    linker,
		presenter: p,
		logger:    log.With(logger.Component("credentials")),
	}
}

// HandleEmail stages the email from "email:<addr>".
func (h *CredentialsHandler) HandleEmail(ctx context.Context, req Request) (*Response, error) {
	email, _ := telegramuser.ParseEmailMessage(req.Text)

	if err := h.linker.StageEmail(ctx, req.Identity(), email); err != nil {
		h.logger.Error("failed to stage email", logger.TelegramID(req.SenderID()), logger.Err(err))
		return &Response{Text: h.presenter.EmailSaveFailed()}, nil
	}

	return &Response{Text: h.presenter.EmailSaved(email)}, nil
}

// HandlePassword completes linking with "password:<pw>".
// The password is never logged.
func (h *CredentialsHandler) HandlePassword(ctx context.Context, req Request) (*Response, error) {
	password, _ := telegramuser.ParsePasswordMessage(req.Text)

	user, err := h.linker.CompleteLink(ctx, req.Identity(), req.TelegramData(), password)
	switch {
	case err == nil:
		return &Response{Text: h.presenter.LinkSuccess(user.Name)}, nil
	case errors.Is(err, shared.ErrNotStaged), errors.Is(err, shared.ErrExpired):
		return &Response{Text: h.presenter.SendEmailFirst()}, nil
	case errors.Is(err, shared.ErrUnauthorized):
		return &Response{Text: h.presenter.InvalidCredentials()}, nil
	default:
		h.logger.Error("failed to complete link", logger.TelegramID(req.SenderID()), logger.Err(err))
		return &Response{Text: h.presenter.LinkFailed()}, nil
	}
}
