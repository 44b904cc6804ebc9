package middleware

import (
	"context"

	"github.com/auniver/quiz-bridge/pkg/logger"
)

// UpdateClaimer marks update ids as processed.
// Implemented by the Redis update deduplicator.
type UpdateClaimer interface {
	Claim(ctx context.Context, updateID int) (bool, error)
	Release(ctx context.Context, updateID int) error
}

// Dedup skips updates Telegram redelivers.
// A nil claimer disables de-duplication.
type Dedup struct {
	claimer UpdateClaimer
	logger  *logger.Logger
}

// NewDedup creates a new Dedup middleware.
func NewDedup(claimer UpdateClaimer, log *logger.Logger) *Dedup {
	return &Dedup{claimer: claimer, logger: log.With(logger.Component("dedup"))}
}

// Run calls fn unless updateID was already claimed. It reports whether fn ran.
// When the cache is unreachable the update is processed anyway. A failed
// update is released so a redelivery can retry it.
func (d *Dedup) Run(ctx context.Context, updateID int, fn func() error) (bool, error) {
	if d == nil || d.claimer == nil {
		return true, fn()
	}

	claimed, err := d.claimer.Claim(ctx, updateID)
	if err != nil {
		d.logger.Warn("update dedup unavailable", logger.UpdateID(updateID), logger.Err(err))
		return true, fn()
	}
	if !claimed {
		d.logger.Info("duplicate update skipped", logger.UpdateID(updateID))
		return false, nil
	}

	if err := fn(); err != nil {
		if relErr := d.claimer.Release(ctx, updateID); relErr != nil {
			d.logger.Warn("failed to release update", logger.UpdateID(updateID), logger.Err(relErr))
		}
		return true, err
	}
	return true, nil
}
