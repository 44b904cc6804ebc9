package scheduler

import (
	"context"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE LINK CODES JOB
// ══════════════════════════════════════════════════════════════════════════════

// LinkCodeExpirer clears staged emails older than its TTL.
type LinkCodeExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// ExpireLinkCodesJob drops staged emails that never received a password,
// so an abandoned "email:" cannot be completed much later.
type ExpireLinkCodesJob struct {
	expirer LinkCodeExpirer
	logger  *slog.Logger
}

// NewExpireLinkCodesJob creates the job.
func NewExpireLinkCodesJob(expirer LinkCodeExpirer, logger *slog.Logger) *ExpireLinkCodesJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpireLinkCodesJob{expirer: expirer, logger: logger}
}

// Name returns the unique name of the job.
func (j *ExpireLinkCodesJob) Name() string { return "expire_link_codes" }

// Description returns a human-readable description of the job.
func (j *ExpireLinkCodesJob) Description() string {
	return "Clears staged link codes past their TTL"
}

// Run executes the job.
func (j *ExpireLinkCodesJob) Run(ctx context.Context) error {
	n, err := j.expirer.ExpireStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.Info("stale link codes expired", "count", n)
	}
	return nil
}
