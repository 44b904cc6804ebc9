// Package linking implements the two-message account-linking protocol.
//
// State lives only in telegram_user.link_code between messages:
//
//	UNLINKED --"email:<addr>"--> EMAIL_STAGED --"password:<pw>"--> LINKED
//	                                  |                    (backend rejects)
//	                                  +----------------------> EMAIL_STAGED
//
// The Primary Backend alone decides whether credentials are valid and
// whether a Telegram identity is linked.
package linking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/internal/domain/telegramuser"
	"github.com/auniver/quiz-bridge/internal/infrastructure/external/backend"
)

// DefaultLinkCodeTTL bounds how long a staged email waits for a password.
const DefaultLinkCodeTTL = 30 * time.Minute

// AccountLinker verifies credentials and links the account on the Primary Backend.
type AccountLinker interface {
	LinkAccount(ctx context.Context, req backend.LinkRequest) (*backend.LinkResponse, error)
}

// Config configures the Service.
type Config struct {
	// LinkCodeTTL expires staged emails. Zero disables expiry.
	LinkCodeTTL time.Duration

	Logger *slog.Logger
}

// Service drives the account-linking protocol.
type Service struct {
	repo    telegramuser.Repository
	backend AccountLinker
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a linking Service.
func NewService(repo telegramuser.Repository, linker AccountLinker, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:    repo,
		backend: linker,
		ttl:     cfg.LinkCodeTTL,
		logger:  logger.With("component", "linking"),
		now:     time.Now,
	}
}

// StageEmail stores "email:<addr>" for the sender, overwriting any previous stage.
// The row is created when the sender has not pressed /start yet.
func (s *Service) StageEmail(ctx context.Context, id telegramuser.Identity, email string) error {
	code := telegramuser.EmailLinkCode(email)
	if err := s.repo.StageLinkCode(ctx, id, code, s.now().UTC()); err != nil {
		return shared.WrapError("linking", "StageEmail", shared.ErrUpstream, "failed to stage email", err)
	}

	s.logger.Info("email staged", "telegram_id", id.TelegramID)
	return nil
}

// CompleteLink checks the staged email together with password on the Primary
// Backend. On success the stage is cleared and the linked user is returned.
//
// Errors:
//   - shared.ErrLinkNotStaged: no "email:" stage, backend not called
//   - shared.ErrLinkExpired: the stage is older than the TTL, backend not called
//   - shared.ErrInvalidCredentials: backend refused or failed, stage kept
//   - any other error: the Remote Store could not be read
func (s *Service) CompleteLink(ctx context.Context, id telegramuser.Identity, tg backend.TelegramData, password string) (*backend.UserDTO, error) {
	row, err := s.repo.FindByTelegramID(ctx, id.TelegramID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrLinkNotStaged
		}
		return nil, shared.WrapError("linking", "CompleteLink", shared.ErrUpstream, "failed to read staged email", err)
	}

	email, ok := row.StagedEmail(s.now(), s.ttl)
	if !ok {
		if row.HasEmailStage() {
			s.logger.Info("staged email expired", "telegram_id", id.TelegramID)
			return nil, shared.ErrLinkExpired
		}
		return nil, shared.ErrLinkNotStaged
	}

	resp, err := s.backend.LinkAccount(ctx, backend.LinkRequest{
		Email:        email,
		Password:     password,
		TelegramData: tg,
	})
	if err != nil {
		// Wrong password and network failure look the same to the user.
		s.logger.Warn("link rejected",
			"telegram_id", id.TelegramID,
			"rejected", errors.Is(err, backend.ErrLinkRejected),
			"error", err,
		)
		return nil, shared.ErrInvalidCredentials
	}
	if resp == nil || resp.User == nil {
		return nil, shared.ErrInvalidCredentials
	}

	cleared, err := s.repo.ClearLinkCode(ctx, id.TelegramID, telegramuser.EmailLinkCode(email))
	switch {
	case err != nil:
		s.logger.Error("failed to clear link code", "telegram_id", id.TelegramID, "error", err)
	case !cleared:
		s.logger.Info("link code changed during linking, kept newer stage", "telegram_id", id.TelegramID)
	}

	s.logger.Info("account linked", "telegram_id", id.TelegramID, "backend_user_id", resp.User.ID)
	return resp.User, nil
}

// ExpireStale clears stages older than the configured TTL.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	n, err := s.repo.ExpireLinkCodes(ctx, s.now().UTC().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("expire link codes: %w", err)
	}

	if n > 0 {
		s.logger.Info("expired staged emails", "count", n)
	}
	return n, nil
}
