package mapvar

// Options configures trace-session behavior.
type Options struct {
	// Behavior flags
	StrictMode bool // If true, fail when the host-table fallback would snapshot; if false, snapshot (default: false)
	MaxItems   int  // Max entries wrapped from a single live mapping (default: 512)

	// Logging configuration
	LogLevel string // Log level: "error", "warn", "info", "debug" (default: "warn")
	Logger   Logger // Custom logger; overrides LogLevel when set (default: nil)

	// Inline execution (optional)
	// InlineFunc symbolically runs a guest callable. Customizable-record
	// overrides and user-function default factories dispatch through it.
	// If unset, those paths fail as unsupported.
	InlineFunc InlineFunc
}

// InlineFunc symbolically executes a guest callable against symbolic
// arguments and returns the resulting variable.
type InlineFunc func(tx Tracer, fn Variable, args []Variable, kwargs map[string]Variable) (Variable, error)

// DefaultOptions returns the default configuration for trace sessions.
func DefaultOptions() Options {
	return Options{
		StrictMode: false,
		MaxItems:   512,
		LogLevel:   "warn",

		// InlineFunc is supplied by the embedding tracer when available
		InlineFunc: nil,
	}
}

func (o Options) logger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	if o.LogLevel == "" {
		return newNoopLogger()
	}
	return NewLogger(ParseLogLevel(o.LogLevel), nil)
}
