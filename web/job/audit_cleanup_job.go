package job

import (
	"context"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/metrics"
	"github.com/taskboard/taskboard/web/service"
)

const defaultAuditRetentionDays = 90

// AuditCleanupJob prunes audit entries older than the retention window.
type AuditCleanupJob struct {
	auditService  *service.AuditLogService
	retentionDays int
}

func NewAuditCleanupJob(audit *service.AuditLogService, retentionDays int) *AuditCleanupJob {
	if retentionDays <= 0 {
		retentionDays = defaultAuditRetentionDays
	}
	return &AuditCleanupJob{auditService: audit, retentionDays: retentionDays}
}

func (j *AuditCleanupJob) Run() {
	removed, err := j.auditService.CleanOldLogs(context.Background(), j.retentionDays)
	metrics.JobRuns.WithLabelValues("audit_cleanup", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Warning("Failed to clean old audit logs:", err)
		return
	}
	logger.Debugf("Audit cleanup removed %d entries (retention: %d days)", removed, j.retentionDays)
}
