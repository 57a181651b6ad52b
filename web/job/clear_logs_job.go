package job

import (
	"os"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/metrics"
)

// ClearLogsJob moves the current log file into <log>.prev and truncates it,
// so at most two generations are kept on disk.
type ClearLogsJob struct {
	path string
}

func NewClearLogsJob() *ClearLogsJob {
	return &ClearLogsJob{path: logger.LogPath()}
}

func (j *ClearLogsJob) Run() {
	err := rotate(j.path)
	metrics.JobRuns.WithLabelValues("clear_logs", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Warning("clear logs job err:", err)
	}
}

func rotate(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path+".prev", data, 0o640); err != nil {
		return err
	}
	return os.Truncate(path, 0)
}
