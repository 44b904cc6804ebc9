package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/auniver/quiz-bridge/internal/application/mirror"
	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BRIDGE HANDLERS
// Authenticated endpoints the Primary Backend calls to mirror its writes
// into the Remote Store.
// ══════════════════════════════════════════════════════════════════════════════

// Bridge actions.
const (
	ActionUserRegistered = "user_registered"
	ActionUserUpdated    = "user_updated"
	ActionTestCompleted  = "test_completed"
	ActionLinkTelegram   = "link_telegram"
)

// SyncService applies mirrored writes.
type SyncService interface {
	RegisterUser(ctx context.Context, in mirror.UserInput) (int64, error)
	UpdateUser(ctx context.Context, in mirror.UserInput) error
	RecordTestResult(ctx context.Context, email string, in mirror.ResultInput) (int64, error)
	LinkTelegram(ctx context.Context, in mirror.UserInput, tg mirror.TelegramInput) (*mirror.LinkResult, error)
}

type userRequest struct {
	Action string       `json:"action"`
	User   *userPayload `json:"user"`
}

type testResultRequest struct {
	Action    string         `json:"action"`
	UserEmail string         `json:"user_email"`
	Result    *resultPayload `json:"result"`
}

type telegramLinkRequest struct {
	Action   string           `json:"action"`
	User     *userPayload     `json:"user"`
	Telegram *telegramPayload `json:"telegram"`
}

// Pointer fields tell a missing key apart from an explicit zero value.
type userPayload struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	PasswordHash string  `json:"password_hash"`
	Role         *string `json:"role"`
}

func (p *userPayload) input(op string) (mirror.UserInput, error) {
	if p == nil {
		return mirror.UserInput{}, missingField(op, "user")
	}
	switch {
	case p.Name == nil:
		return mirror.UserInput{}, missingField(op, "user.name")
	case p.Email == nil:
		return mirror.UserInput{}, missingField(op, "user.email")
	case p.Role == nil:
		return mirror.UserInput{}, missingField(op, "user.role")
	}
	return mirror.UserInput{
		Name:         *p.Name,
		Email:        *p.Email,
		PasswordHash: p.PasswordHash,
		Role:         *p.Role,
	}, nil
}

type resultPayload struct {
	SubjectID      *int64 `json:"subject_id"`
	CorrectAnswers *int   `json:"correct_answers"`
	TotalQuestions *int   `json:"total_questions"`
}

func (p *resultPayload) input(op string) (mirror.ResultInput, error) {
	if p == nil {
		return mirror.ResultInput{}, missingField(op, "result")
	}
	switch {
	case p.SubjectID == nil:
		return mirror.ResultInput{}, missingField(op, "result.subject_id")
	case p.CorrectAnswers == nil:
		return mirror.ResultInput{}, missingField(op, "result.correct_answers")
	case p.TotalQuestions == nil:
		return mirror.ResultInput{}, missingField(op, "result.total_questions")
	}
	return mirror.ResultInput{
		SubjectID:      *p.SubjectID,
		CorrectAnswers: *p.CorrectAnswers,
		TotalQuestions: *p.TotalQuestions,
	}, nil
}

type telegramPayload struct {
	TelegramID *int64 `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

func (p *telegramPayload) input(op string) (mirror.TelegramInput, error) {
	if p == nil {
		return mirror.TelegramInput{}, missingField(op, "telegram")
	}
	if p.TelegramID == nil {
		return mirror.TelegramInput{}, missingField(op, "telegram.telegram_id")
	}
	return mirror.TelegramInput{
		TelegramID: *p.TelegramID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
	}, nil
}

var errBadAction = shared.NewDomainError("bridge", "Dispatch", shared.ErrBadAction, "Unknown action")

func missingField(op, field string) error {
	return shared.NewDomainError("bridge", op, shared.ErrInvalidInput, fmt.Sprintf("missing field: %s", field))
}

// BridgeHandlers serves the /api/sync/* endpoints.
type BridgeHandlers struct {
	sync   SyncService
	auth   *BearerAuth
	logger *logger.Logger
}

// NewBridgeHandlers creates the bridge handlers.
func NewBridgeHandlers(sync SyncService, auth *BearerAuth, log *logger.Logger) *BridgeHandlers {
	if log == nil {
		log = logger.Default()
	}
	return &BridgeHandlers{
		sync:   sync,
		auth:   auth,
		logger: log.With(logger.Component("bridge")),
	}
}

// User serves /api/sync/user.
func (h *BridgeHandlers) User() http.Handler {
	return h.wrap("user", func(ctx context.Context, body []byte) (any, error) {
		var req userRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}

		switch req.Action {
		case ActionUserRegistered:
			in, err := req.User.input("RegisterUser")
			if err != nil {
				return nil, err
			}
			id, err := h.sync.RegisterUser(ctx, in)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"success":     true,
				"message":     "User synced to Supabase",
				"supabase_id": id,
			}, nil

		case ActionUserUpdated:
			in, err := req.User.input("UpdateUser")
			if err != nil {
				return nil, err
			}
			if err := h.sync.UpdateUser(ctx, in); err != nil {
				return nil, err
			}
			return map[string]any{
				"success": true,
				"message": "User updated in Supabase",
			}, nil

		default:
			return nil, errBadAction
		}
	})
}

// TestResult serves /api/sync/test-result.
func (h *BridgeHandlers) TestResult() http.Handler {
	return h.wrap("test-result", func(ctx context.Context, body []byte) (any, error) {
		var req testResultRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}

		if req.Action != ActionTestCompleted {
			return nil, errBadAction
		}
		in, err := req.Result.input("RecordTestResult")
		if err != nil {
			return nil, err
		}

		id, err := h.sync.RecordTestResult(ctx, req.UserEmail, in)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success":   true,
			"message":   "Test result synced to Supabase",
			"result_id": id,
		}, nil
	})
}

// TelegramLink serves /api/sync/telegram-link.
func (h *BridgeHandlers) TelegramLink() http.Handler {
	return h.wrap("telegram-link", func(ctx context.Context, body []byte) (any, error) {
		var req telegramLinkRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}

		if req.Action != ActionLinkTelegram {
			return nil, errBadAction
		}
		user, err := req.User.input("LinkTelegram")
		if err != nil {
			return nil, err
		}
		tg, err := req.Telegram.input("LinkTelegram")
		if err != nil {
			return nil, err
		}

		res, err := h.sync.LinkTelegram(ctx, user, tg)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success":     true,
			"message":     "Telegram account linked in Supabase",
			"user_id":     res.UserID,
			"telegram_id": res.TelegramID,
		}, nil
	})
}

type actionFunc func(ctx context.Context, body []byte) (any, error)

// wrap applies the common contract: auth, then method, then body, then action.
func (h *BridgeHandlers) wrap(name string, fn actionFunc) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeDomainError(w, shared.ErrBridgeMethod)
			return
		}

		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp, err := fn(r.Context(), body)
		if err != nil {
			status := statusFor(err)
			log := h.logger.With(logger.String("endpoint", name), logger.Int("status", status), logger.Err(err))
			if status >= http.StatusInternalServerError {
				log.Error("bridge sync failed")
			} else {
				log.Info("bridge sync rejected")
			}
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	})

	return ChainHandler(inner, h.auth.Middleware, RequestSizeLimitMiddleware(MaxBodyBytes))
}

func readBody(r *http.Request) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("empty JSON body")
	}
	return raw, nil
}
