// Package logging provides the leveled console/file logger used across the
// batch. It is a thin layer over logrus: console lines go to stdout (errors to
// stderr) with optional ANSI color, and an optional log file receives every
// line without color, DEBUG included, whether or not the console is verbose.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backmassage/vidoptimizer/internal/config"
	"github.com/backmassage/vidoptimizer/internal/term"
)

// labelKey carries a display label that overrides the logrus level name
// (used for SUCCESS, which logrus has no level for).
const labelKey = "label"

// Options describes logger construction parameters.
type Options struct {
	Stdout  io.Writer // Default: os.Stdout.
	Stderr  io.Writer // Default: os.Stderr. Receives ERROR lines.
	LogFile string    // Optional append-only file sink.
	Color   bool
	Verbose bool // Enables DEBUG lines on the console.
	Format  config.LogFormat
}

// Logger provides leveled, optionally colored logging with optional file sink.
// Loggers derived with [Logger.With] share sinks with their parent.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

// NewLogger initializes colors from cfg and optionally opens cfg.LogFile.
// Call Close() when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return New(Options{
		LogFile: cfg.LogFile,
		Color:   term.Configure(cfg.ColorMode),
		Verbose: cfg.Verbose,
		Format:  cfg.LogFormat,
	})
}

// New builds a Logger from explicit options.
func New(opts Options) (*Logger, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(logrus.InfoLevel)
	if opts.Verbose || opts.LogFile != "" {
		base.SetLevel(logrus.DebugLevel)
	}

	consoleFmt := formatterFor(opts.Format, opts.Color)
	plainFmt := formatterFor(opts.Format, false)

	errorLevels := []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
	otherLevels := []logrus.Level{logrus.WarnLevel, logrus.InfoLevel}
	if opts.Verbose {
		otherLevels = append(otherLevels, logrus.DebugLevel, logrus.TraceLevel)
	}
	base.AddHook(&sinkHook{w: opts.Stdout, formatter: consoleFmt, levels: otherLevels})
	base.AddHook(&sinkHook{w: opts.Stderr, formatter: consoleFmt, levels: errorLevels})

	l := &Logger{entry: logrus.NewEntry(base)}

	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		base.AddHook(&sinkHook{w: f, formatter: plainFmt, levels: logrus.AllLevels})
		l.file = f
	}
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l, _ := New(Options{Stdout: io.Discard, Stderr: io.Discard})
	return l
}

func formatterFor(format config.LogFormat, color bool) logrus.Formatter {
	if format == config.LogFormatJSON {
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	}
	return &lineFormatter{color: color}
}

// With returns a child logger that tags every line with key=value.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFile returns a child logger that tags every line with the base name of
// the media file being processed.
func (l *Logger) WithFile(path string) *Logger {
	return l.With("file", filepath.Base(path))
}

// Close closes the log file if one was opened. Derived loggers never own it.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...any) {
	l.entry.Infof(format, args...)
}

// Success logs at INFO level with a SUCCESS label (green).
func (l *Logger) Success(format string, args ...any) {
	l.entry.WithField(labelKey, "SUCCESS").Infof(format, args...)
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

// Error logs at ERROR level (red), to stderr.
func (l *Logger) Error(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

// Debug logs at DEBUG level (cyan). The console shows it only when verbose;
// the log file always records it.
func (l *Logger) Debug(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

// DebugEnabled reports whether Debug lines reach any sink.
func (l *Logger) DebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}

// sinkHook formats entries of the given levels with its own formatter and
// writes them to w. Writes are serialized per hook.
type sinkHook struct {
	mu        sync.Mutex
	w         io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *sinkHook) Levels() []logrus.Level { return h.levels }

func (h *sinkHook) Fire(entry *logrus.Entry) error {
	b, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(b)
	return err
}

// lineFormatter renders "2006-01-02 15:04:05 [LEVEL] text key=value".
type lineFormatter struct {
	color bool
}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	label, color := levelLabel(e.Level)
	if v, ok := e.Data[labelKey].(string); ok && v != "" {
		label, color = v, term.Green
	}

	var b bytes.Buffer
	b.WriteString(e.Time.Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	tag := "[" + label + "]"
	if f.color {
		tag = term.Paint(color, tag)
	}
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k != labelKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelLabel(level logrus.Level) (string, string) {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return "DEBUG", term.Cyan
	case logrus.WarnLevel:
		return "WARN", term.Yellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "ERROR", term.Red
	default:
		return "INFO", term.Blue
	}
}
