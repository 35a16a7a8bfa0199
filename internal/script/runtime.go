package script

import (
	"context"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/glasspane/glasspane/internal/dom"
)

// Config defines runtime limits.
type Config struct {
	Timeout       time.Duration // execution timeout
	EnableConsole bool          // allow console.log/warn/error/info
	MaxCallStack  int           // goja call stack depth limit
}

// DefaultConfig returns the limits used for page scripts.
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		EnableConsole: true,
		MaxCallStack:  1024,
	}
}

// LogEntry is one captured console call.
type LogEntry struct {
	Level   string
	Message string
	Time    time.Time
}

// Result holds an execution result.
type Result struct {
	Value    any
	Console  []LogEntry
	Duration time.Duration
}

// Runtime is a sandboxed JavaScript engine bound to one document. Like the
// document itself it lives for a single page; navigation discards it.
type Runtime struct {
	vm      *goja.Runtime
	doc     *dom.Document
	config  Config
	console []LogEntry

	// proxies maps JS element objects back to their tree nodes.
	proxies map[*goja.Object]*html.Node
}

// New creates a runtime over doc. A nil doc yields a detached runtime with
// no document global.
func New(cfg Config, doc *dom.Document) (*Runtime, error) {
	vm := goja.New()
	if cfg.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(cfg.MaxCallStack)
	}

	r := &Runtime{
		vm:      vm,
		doc:     doc,
		config:  cfg,
		proxies: make(map[*goja.Object]*html.Node),
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	if doc != nil {
		if err := r.bindDocument(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Execute runs script with the configured timeout. Listener registrations
// outlive the call; they fire on later dispatches against the document.
func (r *Runtime) Execute(ctx context.Context, script string) (*Result, error) {
	start := time.Now()
	r.console = r.console[:0]

	done := make(chan struct{})
	finished := make(chan struct{})

	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()

	go func() {
		defer close(finished)
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := r.vm.RunString(script)

	// Join the watchdog before clearing, so a late-firing timer cannot
	// interrupt the vm after the clear and poison the next Execute.
	close(done)
	<-finished
	r.vm.ClearInterrupt()

	result := &Result{
		Duration: time.Since(start),
		Console:  append([]LogEntry{}, r.console...),
	}
	if err != nil {
		return result, err
	}
	result.Value = exportValue(val)
	return result, nil
}

// Eval evaluates a single expression and returns its value.
func (r *Runtime) Eval(ctx context.Context, expression string) (*Result, error) {
	return r.Execute(ctx, "(function() { return "+expression+"; })()")
}

func (r *Runtime) setupGlobals() error {
	// No host escape hatches.
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			console.Set(level, r.makeConsoleFunc(level))
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	// Timers are no-ops: execution is synchronous and bounded.
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	r.vm.Set("setTimeout", noop)
	r.vm.Set("setInterval", noop)

	return nil
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		msg := ""
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		return goja.Undefined()
	}
}

func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
