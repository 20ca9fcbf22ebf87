// Package log provides structured logging with stream context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the transport paths (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces
//
// Levels and outputs are explicit Config values passed at construction;
// there is no process-wide default logger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// StreamMeta identifies the stream and upload session a logger reports for.
type StreamMeta struct {
	// StreamName is the ingestion stream name.
	StreamName string
	// SessionID identifies one upload session (one connection).
	SessionID string
}

// Config configures logger construction.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// File, if set, sends output to a size-rotated file instead of stderr.
	File string
	// MaxSizeMB is the rotation threshold for File (default 100).
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept (default 3).
	MaxBackups int
}

// Logger provides structured logging with stream context.
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// ParseLevel converts a level name to a zapcore.Level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error", "err":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %q", s)
	}
}

// New creates a logger from cfg with stream context.
func New(cfg Config, meta StreamMeta) (*Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    defaultInt(cfg.MaxSizeMB, 100),
			MaxBackups: defaultInt(cfg.MaxBackups, 3),
		}
	}

	return newLoggerWithWriter(meta, w, zap.NewAtomicLevelAt(lvl)), nil
}

// NewWithWriter creates a logger writing JSON lines to w at the given level.
func NewWithWriter(meta StreamMeta, w io.Writer, level zapcore.Level) *Logger {
	return newLoggerWithWriter(meta, w, zap.NewAtomicLevelAt(level))
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

func newEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

func newLoggerWithWriter(meta StreamMeta, w io.Writer, level zap.AtomicLevel) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(newEncoderConfig()),
		zapcore.AddSync(w),
		level,
	)

	var contextFields []zap.Field
	if meta.StreamName != "" {
		contextFields = append(contextFields, zap.String("stream", meta.StreamName))
	}
	if meta.SessionID != "" {
		contextFields = append(contextFields, zap.String("session_id", meta.SessionID))
	}

	return &Logger{zap: zap.New(core).With(contextFields...), level: level}
}

// WithSession returns a child logger tagged with an upload session ID.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("session_id", sessionID)), level: l.level}
}

// SetLevel changes the level of this logger and every child derived from it.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
