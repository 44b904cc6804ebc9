package handler

import (
	"context"

	"github.com/auniver/quiz-bridge/internal/interface/telegram/presenter"
	"github.com/auniver/quiz-bridge/pkg/logger"
)

// SubjectsHandler handles /subjects for linked users.
type SubjectsHandler struct {
	linkage   LinkageChecker
	subjects  SubjectLister
	presenter *presenter.Presenter
	logger    *logger.Logger
}

// NewSubjectsHandler creates a new SubjectsHandler.
func NewSubjectsHandler(linkage LinkageChecker, subjects SubjectLister, p *presenter.Presenter, log *logger.Logger) *SubjectsHandler {
	return &SubjectsHandler{
		linkage:   linkage,
		subjects:  subjects,
		presenter: p,
		logger:    log.With(logger.Command("subjects")),
	}
}

// Handle lists subjects grouped by faculty.
func (h *SubjectsHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	if _, err := h.linkage.GetTelegramUser(ctx, req.SenderID()); err != nil {
		return &Response{Text: h.presenter.LinkFirst()}, nil
	}

	subjects, err := h.subjects.ListSubjects(ctx)
	if err != nil {
		h.logger.Error("failed to list subjects", logger.Err(err))
	}
	if len(subjects) == 0 {
		return &Response{Text: h.presenter.NoSubjects()}, nil
	}

	return &Response{Text: h.presenter.SubjectList(subjects)}, nil
}
