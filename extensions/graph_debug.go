package extensions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/m1gwings/treedrawer/tree"
	"github.com/pumped-fn/flowcompose"
)

// GraphDebugExtension logs the dependency graph of a flow when a call fails.
//
// Usage:
//
//	// Human-readable formatted output (with line breaks)
//	handler := extensions.NewHumanHandler(os.Stdout, slog.LevelError)
//	ext := extensions.NewGraphDebugExtension(handler)
//
//	// Structured JSON logging (compact, machine-readable)
//	handler := slog.NewJSONHandler(os.Stdout, nil)
//	ext := extensions.NewGraphDebugExtension(handler)
//
//	// Silent (for testing)
//	ext := extensions.NewGraphDebugExtension(extensions.NewSilentHandler())
//
// The extension logs at ERROR level for both failed calls and flow panics.
type GraphDebugExtension struct {
	flowcompose.BaseExtension
	logger *slog.Logger
}

// NewGraphDebugExtension creates a new graph debug extension.
func NewGraphDebugExtension(logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension: flowcompose.NewBaseExtension("graph-debug"),
		logger:        slog.New(logHandler),
	}
}

// OnError logs the dependency graph once per call that failed to resolve.
// Errors bubble through every invoker on the way up, so only the flow level
// reports. Other failures carry no wiring information and are skipped.
func (e *GraphDebugExtension) OnError(err error, op *flowcompose.Operation) {
	if op.Kind != flowcompose.OpFlow || op.Context == nil {
		return
	}

	var re *flowcompose.ResolutionError
	if !errors.As(err, &re) {
		return
	}
	missing, owner := re.Missing, re.Owner

	e.logger.Error("Dependency Resolution Error",
		"flow", op.Context.Flow(),
		"call", op.Context.ID(),
		"owner", owner,
		"error", err.Error(),
		"operation", string(op.Kind),
		"dependency_graph", RenderTree(op.Context.Graph(), missing...),
	)
}

// OnFlowPanic logs context when flow panics
func (e *GraphDebugExtension) OnFlowPanic(c *flowcompose.Context, recovered any, stack []byte) error {
	e.logger.Error("Flow Panic",
		"panic", fmt.Sprintf("%v", recovered),
		"stack_trace", string(stack),
		"flow", c.Flow(),
	)
	return nil
}

// RenderTree draws the graph as a tree rooted at the flow. Names listed in
// missing are marked as such; recursive references are drawn as leaves.
func RenderTree(g *flowcompose.Graph, missing ...string) string {
	if g == nil {
		return "(no graph)"
	}

	marked := make(map[string]bool, len(missing))
	for _, name := range missing {
		marked[name] = true
	}

	var root *tree.Tree
	var parents []*tree.Tree
	g.Walk(func(n *flowcompose.GraphNode, depth int, cycle bool) bool {
		label := nodeLabel(n, cycle, marked[n.Name])
		if depth == 0 {
			root = tree.NewTree(tree.NodeString(label))
			parents = []*tree.Tree{root}
			return true
		}
		child := parents[depth-1].AddChild(tree.NodeString(label))
		parents = append(parents[:depth], child)
		return !cycle
	})

	if root == nil {
		return "(empty)"
	}
	return root.String()
}

func nodeLabel(n *flowcompose.GraphNode, cycle, missing bool) string {
	var sb strings.Builder
	sb.WriteString(n.Name)
	if n.Unit != "" && n.Unit != n.Name {
		sb.WriteString(" = " + n.Unit)
	}
	if n.Cached {
		sb.WriteString(" [cached]")
	}
	switch {
	case missing:
		sb.WriteString(" ❌ missing")
	case cycle:
		sb.WriteString(" ↻")
	case n.Source == flowcompose.SourceUnbound:
		sb.WriteString(" (unbound)")
	}
	return sb.String()
}

// SilentHandler is a slog.Handler that discards all log output
// Useful for testing when you don't want log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}

// HumanHandler is a slog.Handler that formats logs for human readability,
// printing dependency trees and stack traces on their own lines.
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler creates a new human-readable log handler
func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{
		writer: writer,
		level:  level,
	}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	switch record.Message {
	case "Dependency Resolution Error":
		return h.handleDependencyError(record)
	case "Flow Panic":
		return h.handleFlowPanic(record)
	}

	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleDependencyError(record slog.Record) error {
	attrs := collectAttrs(record)
	rule := strings.Repeat("=", 70)

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s\n[GraphDebug] Dependency Resolution Error\n%s\n", rule, rule)
	fmt.Fprintf(&sb, "\nFlow: %s (%s)\n", attrs["flow"], attrs["call"])
	fmt.Fprintf(&sb, "Failed: %s\n", attrs["owner"])
	fmt.Fprintf(&sb, "Error: %s\n", attrs["error"])
	fmt.Fprintf(&sb, "Operation: %s\n", attrs["operation"])
	fmt.Fprintf(&sb, "\nDependency Graph:\n%s\n%s\n\n", attrs["dependency_graph"], rule)

	_, err := io.WriteString(h.writer, sb.String())
	return err
}

func (h *HumanHandler) handleFlowPanic(record slog.Record) error {
	attrs := collectAttrs(record)
	rule := strings.Repeat("=", 70)

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s\n[GraphDebug] Flow Panic\n%s\n", rule, rule)
	fmt.Fprintf(&sb, "\nPanic: %s\n", attrs["panic"])
	if flow, ok := attrs["flow"]; ok {
		fmt.Fprintf(&sb, "Flow: %s\n", flow)
	}
	fmt.Fprintf(&sb, "\nStack Trace:\n%s\n%s\n\n", attrs["stack_trace"], rule)

	_, err := io.WriteString(h.writer, sb.String())
	return err
}

func collectAttrs(record slog.Record) map[string]string {
	out := make(map[string]string, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	return h
}
