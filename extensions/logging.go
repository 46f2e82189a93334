package extensions

import (
	"io"
	"log/slog"
	"time"

	"github.com/pumped-fn/flowcompose"
)

// NewLogger creates a text logger writing to w. The "error" key is
// rewritten to "err" so every extension logs failures under one key.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// LoggingExtension logs flow calls and unit invocations
type LoggingExtension struct {
	flowcompose.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a new logging extension. A nil logger
// falls back to slog.Default().
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension{
		BaseExtension: flowcompose.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(next func() (any, error), op *flowcompose.Operation) (any, error) {
	start := time.Now()
	attrs := []any{"op", string(op.Kind), "unit", op.Name, "call", op.Context.ID()}
	e.logger.Debug("starting", attrs...)

	result, err := next()

	attrs = append(attrs, "duration", time.Since(start))
	if err != nil {
		e.logger.Warn("failed", append(attrs, "error", err)...)
	} else {
		e.logger.Debug("completed", attrs...)
	}
	return result, err
}

func (e *LoggingExtension) OnCacheHit(op *flowcompose.Operation) {
	e.logger.Debug("cache hit", "unit", op.Name, "call", op.Context.ID())
}

func (e *LoggingExtension) OnFlowStart(c *flowcompose.Context) error {
	e.logger.Info("flow started", "flow", c.Flow(), "call", c.ID())
	return nil
}

func (e *LoggingExtension) OnFlowEnd(c *flowcompose.Context, result any, err error) error {
	if err != nil {
		e.logger.Error("flow failed", "flow", c.Flow(), "call", c.ID(), "error", err)
		return nil
	}
	e.logger.Info("flow finished", "flow", c.Flow(), "call", c.ID())
	return nil
}
