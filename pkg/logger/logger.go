// Package logger provides leveled, target-aware logging for build runs
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)
	WithTarget(target string) Logger
	WithFields(fields ...Field) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// TargetLogger implements Logger with target awareness
type TargetLogger struct {
	logger     *logrus.Logger
	targetName string
	fields     []Field
	mu         sync.RWMutex
}

// CustomFormatter formats logs with colors
type CustomFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

const successKey = "success"

// Format implements logrus.Formatter
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)

	var levelColor *color.Color
	var levelText string

	switch entry.Level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		levelColor = color.New(color.FgRed, color.Bold)
		levelText = "ERROR"
	case logrus.WarnLevel:
		levelColor = color.New(color.FgYellow, color.Bold)
		levelText = "WARN"
	case logrus.DebugLevel, logrus.TraceLevel:
		levelColor = color.New(color.FgWhite, color.Faint)
		levelText = "DEBUG"
	default:
		levelColor = color.New(color.FgCyan)
		levelText = "INFO"
	}

	data := make(logrus.Fields, len(entry.Data))
	for k, v := range entry.Data {
		data[k] = v
	}
	if _, ok := data[successKey]; ok {
		levelColor = color.New(color.FgGreen)
		levelText = "OK"
		delete(data, successKey)
	}

	targetPrefix := ""
	if target, ok := data["target"]; ok {
		if f.DisableColors {
			targetPrefix = fmt.Sprintf("[%v] ", target)
		} else {
			targetPrefix = fmt.Sprintf("[%s] ", color.New(color.FgBlue).Sprint(target))
		}
		delete(data, "target")
	}

	level := levelText
	if !f.DisableColors {
		level = levelColor.Sprint(levelText)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "jc [%s] %s: %s%s", timestamp, level, targetPrefix, entry.Message)

	if len(data) > 0 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%v", k, data[k])
		}
		fields := " {" + strings.Join(pairs, ", ") + "}"
		if f.DisableColors {
			b.WriteString(fields)
		} else {
			b.WriteString(color.New(color.FgWhite, color.Faint).Sprint(fields))
		}
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// CreateLogger creates a logger writing to stderr and, when logFile is set,
// appending to that file. Stdout is left to build directives.
func CreateLogger(logFile string, logLevel string) Logger {
	var out io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			out = io.MultiWriter(os.Stderr, file)
		}
	}
	return newLogger(logLevel, out, false)
}

// CreateLoggerWithOutput creates a logger with custom output (for testing)
func CreateLoggerWithOutput(logFile string, logLevel string, output io.Writer) Logger {
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			output = io.MultiWriter(output, file)
		}
	}
	return newLogger(logLevel, output, true)
}

// Discard returns a logger that drops everything
func Discard() Logger {
	return newLogger("panic", io.Discard, true)
}

func newLogger(logLevel string, out io.Writer, disableColors bool) *TargetLogger {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   disableColors,
	})
	log.SetOutput(out)

	return &TargetLogger{logger: log}
}

// WithTarget creates a new logger with target context
func (l *TargetLogger) WithTarget(target string) Logger {
	return &TargetLogger{
		logger:     l.logger,
		targetName: target,
		fields:     l.fields,
	}
}

// WithFields creates a new logger that adds fields to every entry
func (l *TargetLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &TargetLogger{
		logger:     l.logger,
		targetName: l.targetName,
		fields:     merged,
	}
}

// convertFields converts Field slice to logrus.Fields
func (l *TargetLogger) convertFields(fields []Field) logrus.Fields {
	result := make(logrus.Fields)
	if l.targetName != "" {
		result["target"] = l.targetName
	}
	for _, f := range l.fields {
		result[f.Key] = f.Value
	}
	for _, f := range fields {
		result[f.Key] = f.Value
	}
	return result
}

// Info logs an info message
func (l *TargetLogger) Info(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info(message)
}

// Error logs an error message
func (l *TargetLogger) Error(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Error(message)
}

// Warn logs a warning message
func (l *TargetLogger) Warn(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Warn(message)
}

// Debug logs a debug message
func (l *TargetLogger) Debug(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Debug(message)
}

// Success logs at info level with success formatting
func (l *TargetLogger) Success(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	data := l.convertFields(fields)
	data[successKey] = true
	l.logger.WithFields(data).Info(message)
}

// ConsoleLogger provides plain console output for CLI commands
type ConsoleLogger struct {
	out io.Writer
	err io.Writer
}

// NewConsoleLogger creates a console logger for CLI output
func NewConsoleLogger(out, errOut io.Writer) *ConsoleLogger {
	return &ConsoleLogger{out: out, err: errOut}
}

// Info prints info message
func (c *ConsoleLogger) Info(message string) {
	fmt.Fprintf(c.out, "%s %s\n", color.CyanString("[jointcomp]"), message)
}

// Error prints error message
func (c *ConsoleLogger) Error(message string) {
	fmt.Fprintf(c.err, "%s %s\n", color.RedString("[jointcomp]"), message)
}

// Warn prints warning message
func (c *ConsoleLogger) Warn(message string) {
	fmt.Fprintf(c.err, "%s %s\n", color.YellowString("[jointcomp]"), message)
}

// Success prints success message
func (c *ConsoleLogger) Success(message string) {
	fmt.Fprintf(c.out, "%s %s\n", color.GreenString("[jointcomp]"), message)
}
