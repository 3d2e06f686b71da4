// Package logx provides leveled, component-tagged logging for the service.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger writes timestamped, component-tagged lines to stderr.
type Logger struct {
	component string
	logger    *log.Logger
}

var (
	debugMu      sync.RWMutex
	debugEnabled bool
	debugDomains map[string]bool
)

// Debug logging is controlled by DEBUG=1 and optionally narrowed with
// DEBUG_DOMAINS=ingest,agent,store.
func init() {
	if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		debugEnabled = true
	}
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugDomains = make(map[string]bool)
		for _, d := range strings.Split(domains, ",") {
			debugDomains[strings.TrimSpace(d)] = true
		}
	}
}

func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", log.LstdFlags|log.LUTC),
	}
}

// SetDebug overrides the environment-derived debug configuration.
func SetDebug(enabled bool, domains []string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugEnabled = enabled
	if len(domains) == 0 {
		debugDomains = nil
		return
	}
	debugDomains = make(map[string]bool)
	for _, d := range domains {
		debugDomains[strings.TrimSpace(d)] = true
	}
}

func debugEnabledFor(component string) bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	if !debugEnabled {
		return false
	}
	if debugDomains == nil {
		return true
	}
	return debugDomains[component]
}

func (l *Logger) log(level Level, format string, args ...any) {
	l.logger.Printf("[%s] %s: %s", l.component, level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	if !debugEnabledFor(l.component) {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

// Errorf logs and returns the formatted error. Use when a failure must be
// both surfaced to the caller and recorded:
//
//	return logx.Errorf("schema init failed: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + err and returns fmt.Errorf("%s: %w", msg, err).
// Returns nil for a nil error.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}

var defaultLogger = NewLogger("system")
