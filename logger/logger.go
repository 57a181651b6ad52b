// Package logger provides leveled logging for taskboard with a console/syslog
// backend, a file backend and a bounded in-memory buffer for the admin log view.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/op/go-logging"
	"github.com/taskboard/taskboard/config"
)

const (
	module           = "taskboard"
	maxLogBufferSize = 10240
	logFileName      = "taskboard.log"
	timeFormat       = "2006/01/02 15:04:05"
)

type entry struct {
	time  string
	level logging.Level
	log   string
}

var (
	logger  = logging.MustGetLogger(module)
	logFile *os.File

	bufMu     sync.Mutex
	logBuffer []entry
)

// LevelFromConfig maps the configured level name to a go-logging level.
func LevelFromConfig(l config.LogLevel) (logging.Level, error) {
	switch l {
	case config.Debug:
		return logging.DEBUG, nil
	case config.Info:
		return logging.INFO, nil
	case config.Notice:
		return logging.NOTICE, nil
	case config.Warn:
		return logging.WARNING, nil
	case config.Error:
		return logging.ERROR, nil
	}
	return logging.INFO, fmt.Errorf("unknown log level: %s", l)
}

// InitLogger installs the console backend at the given level and, when the
// log folder is writable, a file backend that always records DEBUG.
func InitLogger(level logging.Level) {
	backends := make([]logging.Backend, 0, 2)

	console := logging.AddModuleLevel(consoleBackend())
	console.SetLevel(level, module)
	backends = append(backends, console)

	if fb := fileBackend(); fb != nil {
		leveled := logging.AddModuleLevel(fb)
		leveled.SetLevel(logging.DEBUG, module)
		backends = append(backends, leveled)
	}

	logger.SetBackend(logging.MultiLogger(backends...))
}

// InitTestLogger discards everything below ERROR and writes to stderr.
func InitTestLogger() {
	b := logging.AddModuleLevel(logging.NewLogBackend(os.Stderr, "", 0))
	b.SetLevel(logging.ERROR, module)
	logger.SetBackend(b)
}

func consoleBackend() logging.Backend {
	if syslog, err := logging.NewSyslogBackend(module); err == nil && !config.IsDebug() {
		return logging.NewBackendFormatter(syslog, newFormatter(false))
	}
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	return logging.NewBackendFormatter(backend, newFormatter(true))
}

func fileBackend() logging.Backend {
	logDir := config.GetLogFolder()
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log folder %s: %v\n", logDir, err)
		return nil
	}

	logPath := LogPath()
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", logPath, err)
		return nil
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file

	return logging.NewBackendFormatter(logging.NewLogBackend(file, "", 0), newFormatter(true))
}

// LogPath is the file the file backend appends to.
func LogPath() string {
	return filepath.Join(config.GetLogFolder(), logFileName)
}

func newFormatter(withTime bool) logging.Formatter {
	format := `%{level} - %{message}`
	if withTime {
		format = `%{time:` + timeFormat + `} %{level} - %{message}`
	}
	return logging.MustStringFormatter(format)
}

// CloseLogger closes the log file.
func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func Debug(args ...any) {
	logger.Debug(args...)
	addToBuffer(logging.DEBUG, fmt.Sprint(args...))
}

func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
	addToBuffer(logging.DEBUG, fmt.Sprintf(format, args...))
}

func Info(args ...any) {
	logger.Info(args...)
	addToBuffer(logging.INFO, fmt.Sprint(args...))
}

func Infof(format string, args ...any) {
	logger.Infof(format, args...)
	addToBuffer(logging.INFO, fmt.Sprintf(format, args...))
}

func Notice(args ...any) {
	logger.Notice(args...)
	addToBuffer(logging.NOTICE, fmt.Sprint(args...))
}

func Noticef(format string, args ...any) {
	logger.Noticef(format, args...)
	addToBuffer(logging.NOTICE, fmt.Sprintf(format, args...))
}

func Warning(args ...any) {
	logger.Warning(args...)
	addToBuffer(logging.WARNING, fmt.Sprint(args...))
}

func Warningf(format string, args ...any) {
	logger.Warningf(format, args...)
	addToBuffer(logging.WARNING, fmt.Sprintf(format, args...))
}

func Error(args ...any) {
	logger.Error(args...)
	addToBuffer(logging.ERROR, fmt.Sprint(args...))
}

func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
	addToBuffer(logging.ERROR, fmt.Sprintf(format, args...))
}

func addToBuffer(level logging.Level, msg string) {
	bufMu.Lock()
	defer bufMu.Unlock()

	if len(logBuffer) >= maxLogBufferSize {
		logBuffer = logBuffer[1:]
	}
	logBuffer = append(logBuffer, entry{
		time:  time.Now().Format(timeFormat),
		level: level,
		log:   msg,
	})
}

// GetLogs returns up to n of the most recent entries at or above the given
// severity (go-logging orders CRITICAL lowest), newest first.
func GetLogs(n int, level string) []string {
	logLevel, err := logging.LogLevel(level)
	if err != nil {
		logLevel = logging.DEBUG
	}

	bufMu.Lock()
	defer bufMu.Unlock()

	output := make([]string, 0, n)
	for i := len(logBuffer) - 1; i >= 0 && len(output) < n; i-- {
		if logBuffer[i].level <= logLevel {
			e := logBuffer[i]
			output = append(output, fmt.Sprintf("%s %s - %s", e.time, e.level, e.log))
		}
	}
	return output
}
