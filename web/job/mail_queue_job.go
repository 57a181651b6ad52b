package job

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/util/metrics"
	"github.com/taskboard/taskboard/web/service"
)

const (
	mailBatchSize  = 50
	mailRunTimeout = 2 * time.Minute
)

// MailQueueJob delivers due outbound emails. Overlapping ticks are skipped.
type MailQueueJob struct {
	mailService *service.MailService
	running     atomic.Bool
}

func NewMailQueueJob(mail *service.MailService) *MailQueueJob {
	return &MailQueueJob{mailService: mail}
}

func (j *MailQueueJob) Run() {
	if !j.running.CompareAndSwap(false, true) {
		logger.Debug("mail queue job still running, skipping tick")
		return
	}
	defer j.running.Store(false)
	defer common.Recover("mail queue job")

	ctx, cancel := context.WithTimeout(context.Background(), mailRunTimeout)
	defer cancel()

	sent, err := j.mailService.ProcessQueue(ctx, mailBatchSize)
	metrics.JobRuns.WithLabelValues("mail_queue", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Warning("mail queue job err:", err)
		return
	}
	if sent > 0 {
		logger.Infof("mail queue delivered %d emails", sent)
	}
}
