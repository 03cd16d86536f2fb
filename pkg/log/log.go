package log

import (
	"io"
	"os"
	"path"
	"sync"

	global_config "portarium/app/config"
	"portarium/pkg/contextx"

	"github.com/sirupsen/logrus"
)

var (
	defaultLoggerName = "portarium"
	loggerMu          sync.Mutex
	baseLogger        *logrus.Logger
	config            = global_config.Config.LOG
)

func Initialize(format string, timeFormat string) {
	if format != "" {
		config.Format = format
	}
	if timeFormat != "" {
		config.TimestampFormat = timeFormat
	}
	GetLogger(nil, defaultLoggerName)
}

func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func logOutput() io.Writer {
	if exists, err := PathExists(config.DirPath); err != nil || !exists {
		if err := os.MkdirAll(config.DirPath, 0770); err != nil {
			return os.Stderr
		}
	}
	outlog := path.Join(config.DirPath, "portarium.log")

	file, err := os.OpenFile(outlog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return os.Stderr
	}
	return file
}

func setupLogger() *logrus.Logger {
	if baseLogger != nil {
		return baseLogger
	}

	formatter := NewLogFormatter()
	if config.TimestampFormat != "" {
		formatter.TimestampFormat = config.TimestampFormat
	}
	if config.Format != "" {
		formatter.OutputFormat = config.Format
	}

	logger := logrus.New()
	logger.SetOutput(logOutput())
	logger.SetLevel(logrus.TraceLevel)
	logger.SetFormatter(formatter)
	baseLogger = logger
	return logger
}

func GetLogger(ctx interface{}, name string) *logrus.Entry {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	logger := setupLogger()
	workspace := "-"
	requestId := "-"
	switch t := ctx.(type) {
	case string:
		workspace = t
	case *contextx.Context:
		if t != nil {
			if w := t.GetWorkspaceID(); w != "" {
				workspace = w
			}
			if r := t.GetRequestID(); r != "" {
				requestId = r
			}
		}
	case map[string]interface{}:
		if w, ok := t["workspace"]; ok {
			workspace = w.(string)
		}
		if r, ok := t["requestId"]; ok {
			requestId = r.(string)
		}
	}
	return logger.WithFields(map[string]interface{}{
		"name":      name,
		"requestId": requestId,
		"workspace": workspace,
	})
}

func Info(ctx interface{}, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Info(args...)
}

func Debug(ctx interface{}, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Debug(args...)
}

func Trace(ctx interface{}, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Trace(args...)
}

func Warn(ctx interface{}, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Warn(args...)
}

func Panic(ctx interface{}, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Panic(args...)
}

func Error(ctx interface{}, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Error(args...)
}

func Infof(ctx interface{}, format string, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Infof(format, args...)
}

func Debugf(ctx interface{}, format string, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Debugf(format, args...)
}

func Tracef(ctx interface{}, format string, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Tracef(format, args...)
}

func Warnf(ctx interface{}, format string, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Warnf(format, args...)
}

func Panicf(ctx interface{}, format string, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Panicf(format, args...)
}

func Errorf(ctx interface{}, format string, args ...interface{}) {
	logger := GetLogger(ctx, defaultLoggerName)
	logger.Errorf(format, args...)
}
