// Package mirror применяет события основного бэкенда к Remote Store.
//
// Каждая операция - одна или две записи в Supabase с последующей
// публикацией события синхронизации. Публикация не влияет на результат.
package mirror

import (
	"context"
	"log/slog"

	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/internal/domain/telegramuser"
	"github.com/auniver/quiz-bridge/internal/domain/testresult"
	"github.com/auniver/quiz-bridge/internal/domain/user"
	"github.com/auniver/quiz-bridge/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// ВХОДНЫЕ ДАННЫЕ
// ══════════════════════════════════════════════════════════════════════════════

// UserInput - пользователь в том виде, в каком его присылает основной бэкенд.
type UserInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"`
	Role         string `json:"role"`
}

// ResultInput - результат пройденного теста.
type ResultInput struct {
	SubjectID      int64 `json:"subject_id"`
	CorrectAnswers int   `json:"correct_answers"`
	TotalQuestions int   `json:"total_questions"`
}

// TelegramInput - Telegram-профиль, связанный на стороне основного бэкенда.
type TelegramInput struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

// LinkResult - ID, записанные при зеркалировании связывания.
type LinkResult struct {
	UserID     int64
	TelegramID int64
}

// ══════════════════════════════════════════════════════════════════════════════
// СЕРВИС
// ══════════════════════════════════════════════════════════════════════════════

// Service зеркалирует пользователей, результаты тестов и связывания.
type Service struct {
	users     user.Repository
	results   testresult.Repository
	telegram  telegramuser.Repository
	publisher messaging.Publisher
	logger    *slog.Logger
}

// NewService создаёт сервис зеркалирования. publisher может быть nil.
func NewService(
	users user.Repository,
	results testresult.Repository,
	telegram telegramuser.Repository,
	publisher messaging.Publisher,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		users:     users,
		results:   results,
		telegram:  telegram,
		publisher: publisher,
		logger:    logger.With("component", "mirror"),
	}
}

// RegisterUser вставляет или перезаписывает пользователя по email.
// Возвращает ID строки в Remote Store.
func (s *Service) RegisterUser(ctx context.Context, in UserInput) (int64, error) {
	if user.NormalizeEmail(in.Email) == "" {
		return 0, emptyEmail("RegisterUser")
	}

	u := &user.User{
		Name:         in.Name,
		Email:        user.NormalizeEmail(in.Email),
		PasswordHash: &in.PasswordHash,
		Role:         in.Role,
	}

	id, err := s.users.Upsert(ctx, u)
	if err != nil {
		return 0, err
	}

	s.publish(ctx, messaging.EventUserRegistered, map[string]any{
		"supabase_id": id,
		"email":       u.Email,
		"role":        u.Role,
	})
	return id, nil
}

// UpdateUser обновляет name и role. Отсутствие пользователя не ошибка.
func (s *Service) UpdateUser(ctx context.Context, in UserInput) error {
	email := user.NormalizeEmail(in.Email)

	n, err := s.users.UpdateProfile(ctx, email, in.Name, in.Role)
	if err != nil {
		return err
	}

	if n == 0 {
		s.logger.Info("user update matched no rows", "email", email)
	}

	s.publish(ctx, messaging.EventUserUpdated, map[string]any{
		"email":   email,
		"role":    in.Role,
		"matched": n,
	})
	return nil
}

// RecordTestResult находит пользователя по email и добавляет результат.
// Возвращает shared.ErrUserNotFound без записи, если пользователя нет.
func (s *Service) RecordTestResult(ctx context.Context, email string, in ResultInput) (int64, error) {
	email = user.NormalizeEmail(email)

	userID, err := s.users.FindIDByEmail(ctx, email)
	if err != nil {
		return 0, err
	}

	r := &testresult.TestResult{
		UserID:         userID,
		SubjectID:      in.SubjectID,
		CorrectAnswers: in.CorrectAnswers,
		TotalQuestions: in.TotalQuestions,
	}

	id, err := s.results.Insert(ctx, r)
	if err != nil {
		return 0, err
	}

	s.publish(ctx, messaging.EventTestCompleted, map[string]any{
		"result_id":       id,
		"user_id":         userID,
		"subject_id":      in.SubjectID,
		"correct_answers": in.CorrectAnswers,
		"total_questions": in.TotalQuestions,
	})
	return id, nil
}

// LinkTelegram зеркалирует профиль (без password_hash) и проставляет
// user_id в telegram_user.
func (s *Service) LinkTelegram(ctx context.Context, in UserInput, tg TelegramInput) (*LinkResult, error) {
	if user.NormalizeEmail(in.Email) == "" {
		return nil, emptyEmail("LinkTelegram")
	}
	if tg.TelegramID == 0 {
		return nil, shared.NewDomainError("mirror", "LinkTelegram", shared.ErrInvalidInput, "telegram_id is zero")
	}

	userID, err := s.users.UpsertProfile(ctx, user.Profile{
		Name:  in.Name,
		Email: user.NormalizeEmail(in.Email),
		Role:  in.Role,
	})
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, shared.ErrUserNotSynced
	}

	identity := telegramuser.Identity{
		TelegramID: tg.TelegramID,
		Username:   tg.Username,
		FirstName:  tg.FirstName,
		LastName:   tg.LastName,
	}
	if err := s.telegram.UpsertLinked(ctx, identity, userID); err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventTelegramLinked, map[string]any{
		"user_id":     userID,
		"telegram_id": tg.TelegramID,
	})
	return &LinkResult{UserID: userID, TelegramID: tg.TelegramID}, nil
}

// Пустой email стал бы ключом строки, которую потом не найти.
func emptyEmail(op string) error {
	return shared.NewDomainError("mirror", op, shared.ErrInvalidInput, "email is empty")
}

func (s *Service) publish(ctx context.Context, eventType messaging.EventType, payload map[string]any) {
	event := messaging.NewEvent(eventType, payload)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish sync event",
			"event_type", string(eventType),
			"event_id", event.ID,
			"error", err,
		)
	}
}
