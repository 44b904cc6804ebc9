package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/auniver/quiz-bridge/internal/interface/telegram/handler"
	"github.com/auniver/quiz-bridge/internal/interface/telegram/middleware"
	"github.com/auniver/quiz-bridge/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Sender delivers replies through the Telegram Bot API.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
}

// BotDependencies contains the bot's collaborators.
type BotDependencies struct {
	Sender Sender
	Router *Router

	// Dedup is optional; nil processes every update.
	Dedup *middleware.Dedup

	// Recovery is optional; nil lets panics propagate.
	Recovery *middleware.Recovery

	Logger *logger.Logger
}

// Bot handles webhook updates one at a time per request.
type Bot struct {
	sender   Sender
	router   *Router
	dedup    *middleware.Dedup
	recovery *middleware.Recovery
	logger   *logger.Logger
}

// NewBot creates a new Bot.
func NewBot(deps BotDependencies) *Bot {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}

	return &Bot{
		sender:   deps.Sender,
		router:   deps.Router,
		dedup:    deps.Dedup,
		recovery: deps.Recovery,
		logger:   log.With(logger.Component("telegram_bot")),
	}
}

// HandleUpdate processes a single Telegram update. Updates that are neither
// a message nor a callback query are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update *tgbotapi.Update) error {
	if update == nil {
		return nil
	}

	start := time.Now()
	log := b.logger.With(logger.UpdateID(update.UpdateID))
	log.Info("update received")

	_, err := b.dedup.Run(ctx, update.UpdateID, func() error {
		switch {
		case update.Message != nil:
			return b.handleMessage(ctx, update.Message)
		case update.CallbackQuery != nil:
			return b.handleCallbackQuery(ctx, update.CallbackQuery)
		default:
			return nil
		}
	})

	if err != nil {
		log.Error("failed to handle update", logger.Err(err), logger.Latency(time.Since(start)))
		return err
	}

	log.Debug("update handled", logger.Latency(time.Since(start)))
	return nil
}

// handleMessage routes a message by its exact text.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}

	req := handler.Request{ChatID: msg.Chat.ID, From: msg.From, Text: msg.Text}
	h, route := b.router.Route(msg.Text)

	return b.run(ctx, route, req, h)
}

// handleCallbackQuery routes inline button presses. The reply goes to the
// chat of the message carrying the keyboard, on behalf of callback.from.
func (b *Bot) handleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	defer func() {
		if err := b.sender.AnswerCallbackQuery(ctx, cq.ID); err != nil {
			b.logger.Warn("failed to answer callback query", logger.String("callback_id", cq.ID), logger.Err(err))
		}
	}()

	h, ok := b.router.RouteCallback(cq.Data)
	if !ok || cq.Message == nil || cq.Message.Chat == nil {
		return nil
	}

	req := handler.Request{ChatID: cq.Message.Chat.ID, From: cq.From, Text: cq.Data}
	return b.run(ctx, "callback:"+cq.Data, req, h)
}

func (b *Bot) run(ctx context.Context, route string, req handler.Request, h handler.Handler) error {
	exec := func() error {
		resp, err := h.Handle(ctx, req)
		if err != nil {
			return fmt.Errorf("handle %s: %w", route, err)
		}
		if resp == nil {
			return nil
		}
		if err := b.sender.SendMessage(ctx, req.ChatID, resp.Text, resp.Keyboard); err != nil {
			return fmt.Errorf("send reply to %s: %w", route, err)
		}
		return nil
	}

	b.logger.Debug("routing update",
		logger.Command(route),
		logger.TelegramID(req.SenderID()),
		logger.ChatID(req.ChatID),
	)

	if b.recovery == nil {
		return exec()
	}
	return b.recovery.Run(ctx, req.SenderID(), route, exec)
}
