package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"video-assembly-service/pkg/config"
)

// Logger 基于 logrus 的日志服务
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// NewLogger 根据配置创建日志服务
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	lg := &Logger{entry: l}

	var logCfg config.LogConfig
	if cfg != nil {
		logCfg = cfg.Log
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(logCfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(logCfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	switch out := strings.TrimSpace(logCfg.Output); out {
	case "", "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err == nil {
			if f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				lg.file = f
				l.SetOutput(io.MultiWriter(os.Stdout, f))
				break
			}
		}
		l.SetOutput(os.Stdout)
		l.Warnf("log output %s unavailable, falling back to stdout", out)
	}
	return lg
}

// SetGlobalLogger 设置全局日志服务
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Close 关闭日志文件
func (l *Logger) Close() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Close()
	l.file = nil
}

func current() *logrus.Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l == nil || l.entry == nil {
		return logrus.StandardLogger()
	}
	return l.entry
}

func withFields(fields []map[string]interface{}) *logrus.Entry {
	entry := logrus.NewEntry(current())
	for _, f := range fields {
		if len(f) > 0 {
			entry = entry.WithFields(logrus.Fields(f))
		}
	}
	return entry
}

func Debug(msg string, fields ...map[string]interface{}) { withFields(fields).Debug(msg) }
func Info(msg string, fields ...map[string]interface{})  { withFields(fields).Info(msg) }
func Warn(msg string, fields ...map[string]interface{})  { withFields(fields).Warn(msg) }
func Error(msg string, fields ...map[string]interface{}) { withFields(fields).Error(msg) }

// Fatal 记录日志后退出进程
func Fatal(msg string, fields ...map[string]interface{}) { withFields(fields).Fatal(msg) }

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// WithJob 返回带 job_id 字段的 entry
func WithJob(jobID string) *logrus.Entry {
	return current().WithField("job_id", jobID)
}

