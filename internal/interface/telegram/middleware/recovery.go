// Package middleware contains Telegram update middlewares.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/auniver/quiz-bridge/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Catches panics in handlers so one bad update never takes the webhook down.
// ══════════════════════════════════════════════════════════════════════════════

// ErrPanicRecovered is returned when a handler panicked.
var ErrPanicRecovered = errors.New("telegram: handler panicked")

// PanicInfo contains information about a recovered panic.
type PanicInfo struct {
	PanicValue any
	StackTrace string
	TelegramID int64
	Command    string
	Timestamp  time.Time
}

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace captures debug.Stack() into PanicInfo.
	EnableStackTrace bool

	// OnPanic is called after a panic is logged.
	OnPanic func(ctx context.Context, info *PanicInfo)
}

// DefaultRecoveryConfig returns sensible defaults for recovery middleware.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{EnableStackTrace: true}
}

// Recovery recovers from panics in update handlers.
type Recovery struct {
	config RecoveryConfig
	logger *logger.Logger
}

// NewRecovery creates a new recovery middleware.
func NewRecovery(config RecoveryConfig, log *logger.Logger) *Recovery {
	return &Recovery{config: config, logger: log.With(logger.Component("recovery"))}
}

// Run executes fn and turns a panic into ErrPanicRecovered.
func (m *Recovery) Run(ctx context.Context, telegramID int64, command string, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		info := &PanicInfo{
			PanicValue: r,
			TelegramID: telegramID,
			Command:    command,
			Timestamp:  time.Now(),
		}
		if m.config.EnableStackTrace {
			info.StackTrace = string(debug.Stack())
		}

		m.logger.Error("panic recovered in update handler",
			logger.TelegramID(telegramID),
			logger.Command(command),
			logger.Any("panic", fmt.Sprint(r)),
			logger.String("stack", info.StackTrace),
		)

		if m.config.OnPanic != nil {
			m.config.OnPanic(ctx, info)
		}

		err = fmt.Errorf("%w: %v", ErrPanicRecovered, r)
	}()

	return fn()
}
