package mapvar

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level for logs.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "INFO":
		return LevelInfo
	case "DEBUG":
		return LevelDebug
	default:
		return LevelWarn // default
	}
}

// Logger is the interface trace sessions log through.
type Logger interface {
	// Debugf, Infof, Warnf, Errorf log formatted messages at respective levels.
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// With returns a child logger augmented with the provided fields.
	With(fields map[string]any) Logger
}

// textFormatter emits compact single-line text logs.
// Format: [LEVEL] ts msg key1=val1 key2=val2 ...
type textFormatter struct {
	includeTimestamp bool
}

func newTextFormatter() *textFormatter {
	return &textFormatter{
		includeTimestamp: true,
	}
}

func (f *textFormatter) format(ts time.Time, level LogLevel, msg string, fields map[string]any) []byte {
	var b strings.Builder
	b.Grow(128)

	b.WriteByte('[')
	b.WriteString(level.String())
	b.WriteByte(']')
	b.WriteByte(' ')

	if f.includeTimestamp {
		b.WriteString(ts.UTC().Format(time.RFC3339Nano))
		b.WriteByte(' ')
	}

	// Message first for readability
	b.WriteString(msg)

	// Sort field keys for deterministic output
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(safeSprint(fields[k]))
		}
	}

	b.WriteByte('\n')
	return []byte(b.String())
}

func safeSprint(v any) string {
	switch t := v.(type) {
	case string:
		// Quote if contains whitespace
		if strings.IndexFunc(t, func(r rune) bool { return r <= ' ' }) >= 0 {
			return fmt.Sprintf("%q", t)
		}
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// defaultLogger is a thread-safe logger implementation supporting With() context.
type defaultLogger struct {
	out       io.Writer
	level     LogLevel
	formatter *textFormatter

	// baseFields are the context fields attached to this logger.
	baseFields map[string]any

	// mu serializes writes to the writer and protects baseFields during write.
	mu *sync.Mutex
}

// NewLogger creates a default logger with the given level.
// If w is nil, os.Stderr is used.
func NewLogger(level LogLevel, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &defaultLogger{
		out:        w,
		level:      level,
		formatter:  newTextFormatter(),
		baseFields: make(map[string]any),
		mu:         &sync.Mutex{},
	}
}

// noopLogger is a logger that discards all output.
type noopLogger struct{}

func (l *noopLogger) Debugf(format string, args ...any) {}
func (l *noopLogger) Infof(format string, args ...any)  {}
func (l *noopLogger) Warnf(format string, args ...any)  {}
func (l *noopLogger) Errorf(format string, args ...any) {}
func (l *noopLogger) With(fields map[string]any) Logger { return l }

// newNoopLogger returns a logger that discards all output.
func newNoopLogger() Logger {
	return &noopLogger{}
}

func (l *defaultLogger) IsEnabled(level LogLevel) bool {
	return level <= l.level
}

func (l *defaultLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	// Shallow copy of base fields to avoid parent mutation
	newFields := make(map[string]any, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &defaultLogger{
		out:        l.out,
		level:      l.level,
		formatter:  l.formatter,
		baseFields: newFields,
		mu:         l.mu, // share same lock and writer
	}
}

func (l *defaultLogger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

func (l *defaultLogger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

func (l *defaultLogger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, format, args...)
}

func (l *defaultLogger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

func (l *defaultLogger) logf(level LogLevel, format string, args ...any) {
	if !l.IsEnabled(level) {
		return
	}
	// Format message only when enabled
	msg := fmt.Sprintf(format, args...)

	// Snapshot fields to avoid mutation races by callers
	fields := make(map[string]any, len(l.baseFields))
	for k, v := range l.baseFields {
		fields[k] = v
	}

	ts := time.Now()
	line := l.formatter.format(ts, level, msg, fields)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}

// ----------------------------------------------------------------------------
// Helpers: variable and key summaries, truncation
// ----------------------------------------------------------------------------

// Summarize returns the compact one-line shape of a variable, the same form
// the session logger uses.
func Summarize(v Variable) string {
	return summarizeVariable(v)
}

// summarizeVariable returns a compact one-line representation of a variable's
// shape. It avoids heavy traversal and truncates collections to keep output
// small.
func summarizeVariable(v Variable) string {
	if v == nil {
		return "<nil>"
	}
	switch t := v.(type) {
	case *ConstantVariable:
		return "const(" + safeSprint(t.Value) + ")"
	case *ConstMapVariable:
		return fmt.Sprintf("%s{len=%d keys=%s}", t.Kind(), t.Len(), previewKeys(t, 4))
	case *DefaultMapVariable:
		factory := "none"
		if t.factory != nil {
			factory = summarizeVariable(t.factory)
		}
		return fmt.Sprintf("default_map{len=%d factory=%s}", t.Len(), factory)
	case *RecordVariable:
		return fmt.Sprintf("record(%s){len=%d}", t.class.Name, t.Len())
	case *CustomRecordVariable:
		return fmt.Sprintf("custom_record(%s){len=%d}", t.class.Name, t.Len())
	case *ModuleTableVariable:
		return "module_table"
	case *TupleVariable:
		return fmt.Sprintf("tuple[%d]", len(t.items))
	case *ListVariable:
		return fmt.Sprintf("list[%d]", len(t.items))
	case *SetVariable:
		return fmt.Sprintf("set[%d]", len(t.items))
	default:
		return v.Kind().String()
	}
}

// previewKeys renders up to limit keys of a mapping variable.
func previewKeys(m *ConstMapVariable, limit int) string {
	keys := make([]string, 0, m.Len())
	for _, e := range m.Entries() {
		keys = append(keys, e.Key.Summary())
	}
	return "[" + truncateList(keys, limit) + "]"
}

// truncateList joins items with "," and appends +N if truncated.
func truncateList(items []string, limit int) string {
	if limit <= 0 || len(items) <= limit {
		return strings.Join(items, ",")
	}
	head := items[:limit]
	return strings.Join(head, ",") + fmt.Sprintf(",+%d", len(items)-limit)
}
