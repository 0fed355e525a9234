// Package corelog provides the structured logging sink every component of
// the IPC core and its front-end application writes through. It is backed
// by the standard library's log.Logger rather than a third-party logging
// library, matching the rest of this codebase's stack.
package corelog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// Logger is the structured logging sink every core component writes
// through.
type Logger interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	// WithFields returns a logger that includes the given key/value pairs
	// on every subsequent entry.
	WithFields(fields map[string]interface{}) Logger
}

// Config controls logger output shape.
type Config struct {
	// JSONOutput enables single-line JSON log entries instead of plain text.
	JSONOutput bool
}

type defaultLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
	cfg         Config
	fields      map[string]interface{}
}

// New creates a Logger writing to stderr (error/warn) and stdout (info/debug).
func New(cfg Config) Logger {
	return &defaultLogger{
		errorLogger: log.New(os.Stderr, "[ERROR] ", log.LstdFlags),
		warnLogger:  log.New(os.Stderr, "[WARN] ", log.LstdFlags),
		infoLogger:  log.New(os.Stdout, "[INFO] ", log.LstdFlags),
		debugLogger: log.New(os.Stdout, "[DEBUG] ", log.LstdFlags),
		cfg:         cfg,
		fields:      map[string]interface{}{},
	}
}

// NewDefault creates a plain-text Logger.
func NewDefault() Logger { return New(Config{}) }

// NewJSON creates a JSON-output Logger.
func NewJSON() Logger { return New(Config{JSONOutput: true}) }

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *defaultLogger) write(level string, dst *log.Logger, message string) {
	if l.cfg.JSONOutput {
		e := entry{Timestamp: time.Now().UTC().Format(time.RFC3339), Level: level, Message: message}
		if len(l.fields) > 0 {
			e.Fields = l.fields
		}
		if data, err := json.Marshal(e); err == nil {
			dst.Output(3, string(data))
			return
		}
	}
	if len(l.fields) > 0 {
		dst.Output(3, fmt.Sprintf("%s %v", message, l.fields))
		return
	}
	dst.Output(3, message)
}

func (l *defaultLogger) Error(args ...interface{}) { l.write("ERROR", l.errorLogger, fmt.Sprint(args...)) }
func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.write("ERROR", l.errorLogger, fmt.Sprintf(format, args...))
}
func (l *defaultLogger) Warn(args ...interface{}) { l.write("WARN", l.warnLogger, fmt.Sprint(args...)) }
func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.write("WARN", l.warnLogger, fmt.Sprintf(format, args...))
}
func (l *defaultLogger) Info(args ...interface{}) { l.write("INFO", l.infoLogger, fmt.Sprint(args...)) }
func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.write("INFO", l.infoLogger, fmt.Sprintf(format, args...))
}
func (l *defaultLogger) Debug(args ...interface{}) {
	l.write("DEBUG", l.debugLogger, fmt.Sprint(args...))
}
func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.write("DEBUG", l.debugLogger, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &defaultLogger{
		errorLogger: l.errorLogger,
		warnLogger:  l.warnLogger,
		infoLogger:  l.infoLogger,
		debugLogger: l.debugLogger,
		cfg:         l.cfg,
		fields:      merged,
	}
}
