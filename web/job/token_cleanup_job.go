package job

import (
	"context"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/metrics"
	"github.com/taskboard/taskboard/web/service"
)

// TokenCleanupJob deletes refresh-token rows past their expiry.
type TokenCleanupJob struct {
	authService *service.AuthService
}

func NewTokenCleanupJob(auth *service.AuthService) *TokenCleanupJob {
	return &TokenCleanupJob{authService: auth}
}

func (j *TokenCleanupJob) Run() {
	removed, err := j.authService.SweepExpiredTokens(context.Background())
	metrics.JobRuns.WithLabelValues("token_cleanup", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Warning("token cleanup job err:", err)
		return
	}
	if removed > 0 {
		logger.Debugf("token cleanup removed %d expired refresh tokens", removed)
	}
}
