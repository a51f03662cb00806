package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GetLoggers sets up the logging infrastructure by creating a timestamped
// session directory and initializing separate loggers for the application
// and the database layer.
func GetLoggers(logDir string, level string, maxLogsToKeep int) (*zap.Logger, *zap.Logger, error) {
	err := os.MkdirAll(logDir, os.ModePerm)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	// Clean up old log sessions before creating new ones
	err = rotateLogSessions(logDir, maxLogsToKeep)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	sessionDir := filepath.Join(logDir, time.Now().Format("2006-01-02_15-04-05"))

	err = os.MkdirAll(sessionDir, os.ModePerm)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	mainLogger, err := initLogger(filepath.Join(sessionDir, "main.log"), level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	dbLogger, err := initLogger(filepath.Join(sessionDir, "database.log"), level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	return mainLogger, dbLogger, nil
}

// initLogger creates a zap logger with development settings and file output.
func initLogger(logPath string, level string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{logPath}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}

// rotateLogSessions removes the oldest session directories when the total
// exceeds maxLogsToKeep, by file modification time.
func rotateLogSessions(logDir string, maxLogsToKeep int) error {
	sessions, err := filepath.Glob(filepath.Join(logDir, "*"))
	if err != nil {
		return err
	}

	if len(sessions) <= maxLogsToKeep {
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		iInfo, _ := os.Stat(sessions[i])
		jInfo, _ := os.Stat(sessions[j])

		return iInfo.ModTime().Before(jInfo.ModTime())
	})

	for i := 0; i < len(sessions)-maxLogsToKeep; i++ {
		err := os.RemoveAll(sessions[i])
		if err != nil {
			return err
		}
	}

	return nil
}
