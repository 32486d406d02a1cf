package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Logging subsystems.
const (
	SubsysApp     = "APP"
	SubsysSession = "SESS"
	SubsysMessage = "MSGS"
	SubsysEntropy = "ENTR"
	SubsysRelay   = "RLAY"
)

// LogBackend fans log lines out to stdout and an optional rotating file, and
// hands out per-subsystem loggers at their configured level.
type LogBackend struct {
	stdOut          io.Writer
	logRotator      *rotator.Rotator
	bknd            *slog.Backend
	defaultLogLevel slog.Level
	logLevels       map[string]slog.Level

	mu      sync.Mutex
	loggers map[string]slog.Logger
}

// NewLogBackend creates a backend. logFile may be empty; stdOut may be nil.
// debugLevel is "level" or "level,SUBSYS=level,...".
func NewLogBackend(logFile, debugLevel string, stdOut io.Writer) (*LogBackend, error) {
	def, levels, err := parseLevels(debugLevel)
	if err != nil {
		return nil, err
	}

	var logRotator *rotator.Rotator
	if logFile != "" {
		logDir, _ := filepath.Split(logFile)
		if logDir != "" {
			if err := os.MkdirAll(logDir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %v", err)
			}
		}
		logRotator, err = rotator.New(logFile, 1024, false, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %v", err)
		}
	}

	b := &LogBackend{
		stdOut:          stdOut,
		logRotator:      logRotator,
		defaultLogLevel: def,
		logLevels:       levels,
		loggers:         make(map[string]slog.Logger),
	}
	b.bknd = slog.NewBackend(b)
	return b, nil
}

// Write implements io.Writer for the slog backend.
func (bknd *LogBackend) Write(b []byte) (int, error) {
	if bknd.stdOut != nil {
		bknd.stdOut.Write(b)
	}
	if bknd.logRotator != nil {
		bknd.logRotator.Write(b)
	}
	return len(b), nil
}

// Logger returns the logger for subsys, creating it on first use.
func (bknd *LogBackend) Logger(subsys string) slog.Logger {
	bknd.mu.Lock()
	defer bknd.mu.Unlock()
	if l, ok := bknd.loggers[subsys]; ok {
		return l
	}

	l := bknd.bknd.Logger(subsys)
	bknd.loggers[subsys] = l
	if level, ok := bknd.logLevels[subsys]; ok {
		l.SetLevel(level)
	} else {
		l.SetLevel(bknd.defaultLogLevel)
	}
	return l
}

// Close flushes and closes the log file, if any.
func (bknd *LogBackend) Close() error {
	if bknd.logRotator != nil {
		return bknd.logRotator.Close()
	}
	return nil
}
