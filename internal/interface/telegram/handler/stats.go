package handler

import (
	"context"

	"github.com/auniver/quiz-bridge/internal/interface/telegram/presenter"
	"github.com/auniver/quiz-bridge/pkg/logger"
)

// StatsHandler handles /stats for linked users.
type StatsHandler struct {
	linkage   LinkageChecker
	stats     StatsReader
	presenter *presenter.Presenter
	logger    *logger.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(linkage LinkageChecker, stats StatsReader, p *presenter.Presenter, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		linkage:   linkage,
		stats:     stats,
		presenter: p,
		logger:    log.With(logger.Command("stats")),
	}
}

// Handle shows the stats card, keyed by the Primary Backend user id.
func (h *StatsHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	linked, err := h.linkage.GetTelegramUser(ctx, req.SenderID())
	if err != nil {
		return &Response{Text: h.presenter.LinkFirst()}, nil
	}

	stats, err := h.stats.GetUserStats(ctx, linked.ID)
	if err != nil {
		h.logger.Error("failed to get stats", logger.Int64("user_id", linked.ID), logger.Err(err))
		return &Response{Text: h.presenter.StatsEmpty()}, nil
	}
	if stats == nil || stats.TotalTests <= 0 {
		return &Response{Text: h.presenter.StatsEmpty()}, nil
	}

	return &Response{Text: h.presenter.Stats(stats)}, nil
}
