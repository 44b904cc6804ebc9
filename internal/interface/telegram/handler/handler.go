// Package handler contains Telegram command handlers.
// Each handler follows the pattern: receive request → ask the backend or
// the linking service → format a Response. Sending is the caller's job.
package handler

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/auniver/quiz-bridge/internal/domain/telegramuser"
	"github.com/auniver/quiz-bridge/internal/infrastructure/external/backend"
)

// Request is one message or callback addressed to the bot.
type Request struct {
	// ChatID is where the reply goes.
	ChatID int64

	// From is the sender. For callbacks this is callback.from.
	From *tgbotapi.User

	// Text is the message text or the callback data.
	Text string
}

// Identity returns the sender as a telegram_user identity.
func (r Request) Identity() telegramuser.Identity {
	if r.From == nil {
		return telegramuser.Identity{}
	}
	return telegramuser.Identity{
		TelegramID: r.From.ID,
		Username:   r.From.UserName,
		FirstName:  r.From.FirstName,
		LastName:   r.From.LastName,
	}
}

// TelegramData returns the sender profile forwarded to the Primary Backend.
func (r Request) TelegramData() backend.TelegramData {
	if r.From == nil {
		return backend.TelegramData{}
	}
	return backend.TelegramData{
		ID:           r.From.ID,
		IsBot:        r.From.IsBot,
		FirstName:    r.From.FirstName,
		LastName:     r.From.LastName,
		Username:     r.From.UserName,
		LanguageCode: r.From.LanguageCode,
	}
}

// SenderID returns the sender's Telegram id, or 0 when unknown.
func (r Request) SenderID() int64 {
	if r.From == nil {
		return 0
	}
	return r.From.ID
}

// Response is a reply message.
type Response struct {
	// Text is HTML formatted.
	Text string

	// Keyboard is optional.
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

// Handler handles one kind of request.
type Handler interface {
	Handle(ctx context.Context, req Request) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (*Response, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// LinkageChecker resolves a Telegram id to a linked Primary Backend user.
type LinkageChecker interface {
	GetTelegramUser(ctx context.Context, telegramID int64) (*backend.UserDTO, error)
}

// SubjectLister lists subjects from the Primary Backend.
type SubjectLister interface {
	ListSubjects(ctx context.Context) ([]backend.SubjectDTO, error)
}

// StatsReader reads aggregated stats from the Primary Backend.
type StatsReader interface {
	GetUserStats(ctx context.Context, userID int64) (*backend.StatsDTO, error)
}

// TelegramUserRegistrar records Telegram users for analytics.
type TelegramUserRegistrar interface {
	GetOrCreate(ctx context.Context, id telegramuser.Identity) (*telegramuser.TelegramUser, error)
}

// AccountLinker drives the two-step linking protocol.
type AccountLinker interface {
	StageEmail(ctx context.Context, id telegramuser.Identity, email string) error
	CompleteLink(ctx context.Context, id telegramuser.Identity, tg backend.TelegramData, password string) (*backend.UserDTO, error)
}
