// Package sandbox executes generated test scripts inside an isolated goja
// runtime. The script sees a fixed whitelist of bindings: the test
// registration DSL, the assertion library, timers, a logging sink, and a
// lazily-connected session accessor. Nothing else from the host leaks in.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/crxforge/crxforge/internal/types"
)

// PageDriver is the page-action surface the sandbox exposes to scripts.
// Implemented by session.Connection; faked in tests.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	WaitVisible(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, expr string) (any, error)
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Accessor opens the run's single connection to the live session. The
// sandbox calls it at most once; repeated getSession() calls in the script
// return the same cached object.
type Accessor func(ctx context.Context) (PageDriver, error)

// Options configure one sandbox run.
type Options struct {
	Accessor Accessor

	// CompileTimeout bounds compilation plus top-level execution, so an
	// infinite loop at load time cannot pin the worker. Defaults to 5s.
	CompileTimeout time.Duration

	Logger *slog.Logger
}

// Outcome is the result of one sandbox invocation.
type Outcome struct {
	Passed  bool
	Results []types.TestRunResult
}

// compileResultName is the synthetic result name used when the script fails
// to parse or its top level throws.
const compileResultName = "compile"

// sourcePreviewLines caps the line-numbered source preview attached to
// compile failures.
const sourcePreviewLines = 80

type registeredTest struct {
	name string
	fn   goja.Callable
}

type runner struct {
	vm   *goja.Runtime
	ctx  context.Context
	opts Options

	tests      []registeredTest
	beforeEach []goja.Callable
	afterEach  []goja.Callable

	// sessionVal caches the {connection, page} object after the first
	// getSession() call so repeated calls are identity-stable.
	sessionVal goja.Value
}

// Run executes a test script and returns per-test results in registration
// order. It never propagates a script exception: compile failures become a
// single synthetic failed result and per-test throws are captured into that
// test's result.
func Run(ctx context.Context, script string, opts Options) *Outcome {
	if opts.CompileTimeout <= 0 {
		opts.CompileTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "sandbox")
	}

	r := &runner{vm: goja.New(), ctx: ctx, opts: opts}
	r.install()

	if _, err := r.vm.RunString(assertionPrelude); err != nil {
		// The prelude is our own code; failing to load it is a host bug.
		return &Outcome{Results: []types.TestRunResult{{
			Name:   compileResultName,
			Status: types.StatusFailed,
			Error:  fmt.Sprintf("internal: assertion prelude failed to load: %v", err),
		}}}
	}

	if err := r.runTopLevel(script); err != nil {
		msg, stack := exceptionDetails(err)
		return &Outcome{Results: []types.TestRunResult{{
			Name:   compileResultName,
			Status: types.StatusFailed,
			Error:  fmt.Sprintf("%s\n\nScript preview:\n%s", msg, sourcePreview(script)),
			Stack:  stack,
		}}}
	}

	results := make([]types.TestRunResult, 0, len(r.tests))
	passed := true
	for _, tc := range r.tests {
		res := r.runTest(tc)
		if res.Status != types.StatusPassed {
			passed = false
		}
		results = append(results, res)
	}

	return &Outcome{Passed: passed, Results: results}
}

// runTopLevel compiles and executes the script body under the compile
// timeout. Registered tests do not run here.
func (r *runner) runTopLevel(script string) error {
	prog, err := goja.Compile("test.js", script, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.opts.CompileTimeout)
	defer cancel()

	return r.interruptible(ctx, func() error {
		_, err := r.vm.RunProgram(prog)
		return err
	})
}

// runTest executes a single registered test with its hooks. A beforeEach
// failure fails this one test without running its body; afterEach errors
// are swallowed. One test's exception never aborts its siblings.
func (r *runner) runTest(tc registeredTest) types.TestRunResult {
	start := time.Now()
	res := types.TestRunResult{Name: tc.name, Status: types.StatusPassed}

	hookErr := r.runHooks(r.beforeEach)
	if hookErr != nil {
		msg, stack := exceptionDetails(hookErr)
		res.Status = types.StatusFailed
		res.Error = "beforeEach failed: " + msg
		res.Stack = stack
	} else {
		if err := r.callAndSettle(tc.fn); err != nil {
			msg, stack := exceptionDetails(err)
			res.Status = types.StatusFailed
			res.Error = msg
			res.Stack = stack
		}
	}

	if err := r.runHooks(r.afterEach); err != nil {
		// Cleanup errors are logged, never reported against the test.
		msg, _ := exceptionDetails(err)
		r.opts.Logger.Warn("afterEach hook failed", "test", tc.name, "error", msg)
	}

	res.DurationMs = time.Since(start).Milliseconds()
	return res
}

func (r *runner) runHooks(hooks []goja.Callable) error {
	for _, hook := range hooks {
		if err := r.callAndSettle(hook); err != nil {
			return err
		}
	}
	return nil
}

// callAndSettle invokes a script callable under the run context and, when it
// returns a promise, requires the promise to have settled. With every host
// binding synchronous, promise jobs drain before the call returns, so a
// still-pending promise means the script awaited something it never created.
func (r *runner) callAndSettle(fn goja.Callable) error {
	var ret goja.Value
	err := r.interruptible(r.ctx, func() error {
		var callErr error
		ret, callErr = fn(goja.Undefined())
		return callErr
	})
	if err != nil {
		return err
	}

	if p, ok := ret.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateRejected:
			return errors.New(p.Result().String())
		case goja.PromiseStatePending:
			return errors.New("test returned a promise that never settled")
		}
	}
	return nil
}

// interruptible runs fn while a watchdog interrupts the VM if ctx ends. A
// context-triggered interrupt surfaces as the context error so callers can
// tell a hard timeout from a script exception.
func (r *runner) interruptible(ctx context.Context, fn func() error) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	err := fn()
	close(done)
	r.vm.ClearInterrupt()

	var intr *goja.InterruptedError
	if errors.As(err, &intr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("script execution interrupted: %w", ctxErr)
		}
	}
	return err
}

// install binds the whitelisted DSL surface into the VM.
func (r *runner) install() {
	vm := r.vm

	console := vm.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		r.opts.Logger.Info("script log", "message", strings.Join(parts, " "))
		return goja.Undefined()
	}
	_ = console.Set("log", logFn)
	_ = console.Set("info", logFn)
	_ = console.Set("warn", logFn)
	_ = console.Set("error", logFn)
	_ = vm.Set("console", console)

	_ = vm.Set("test", func(name string, fn goja.Callable) {
		r.tests = append(r.tests, registeredTest{name: name, fn: fn})
	})
	_ = vm.Set("beforeEach", func(fn goja.Callable) {
		r.beforeEach = append(r.beforeEach, fn)
	})
	_ = vm.Set("afterEach", func(fn goja.Callable) {
		r.afterEach = append(r.afterEach, fn)
	})

	_ = vm.Set("sleep", func(ms int64) {
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-r.ctx.Done():
		}
	})
	_ = vm.Set("setTimeout", func(fn goja.Callable, ms int64) {
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			_, _ = fn(goja.Undefined())
		case <-r.ctx.Done():
		}
	})

	_ = vm.Set("getSession", func() goja.Value {
		return r.getSession()
	})
}

// getSession lazily opens the run's single connection and wraps it in the
// {connection, page} object scripts interact with. The object is cached so
// repeated calls return the same value; the sandbox never closes the
// underlying connection — its lifetime belongs to the session manager.
func (r *runner) getSession() goja.Value {
	if r.sessionVal != nil {
		return r.sessionVal
	}

	driver, err := r.opts.Accessor(r.ctx)
	if err != nil {
		panic(r.vm.NewGoError(fmt.Errorf("session unavailable: %w", err)))
	}

	vm := r.vm
	throw := func(err error) {
		if err != nil {
			panic(vm.NewGoError(err))
		}
	}

	page := vm.NewObject()
	_ = page.Set("navigate", func(url string) { throw(driver.Navigate(r.ctx, url)) })
	_ = page.Set("click", func(sel string) { throw(driver.Click(r.ctx, sel)) })
	_ = page.Set("type", func(sel, text string) { throw(driver.Type(r.ctx, sel, text)) })
	_ = page.Set("waitFor", func(sel string) { throw(driver.WaitVisible(r.ctx, sel)) })
	_ = page.Set("title", func() goja.Value {
		title, err := driver.Title(r.ctx)
		throw(err)
		return vm.ToValue(title)
	})
	_ = page.Set("url", func() goja.Value {
		url, err := driver.URL(r.ctx)
		throw(err)
		return vm.ToValue(url)
	})

	conn := vm.NewObject()
	_ = conn.Set("evaluate", func(expr string) goja.Value {
		out, err := driver.Evaluate(r.ctx, expr)
		throw(err)
		return vm.ToValue(out)
	})
	_ = conn.Set("screenshot", func() goja.Value {
		png, err := driver.Screenshot(r.ctx)
		throw(err)
		return vm.ToValue(png)
	})

	session := vm.NewObject()
	_ = session.Set("connection", conn)
	_ = session.Set("page", page)

	r.sessionVal = session
	return session
}

// exceptionDetails splits a script error into a display message and, when
// the VM provides one, a stack trace.
func exceptionDetails(err error) (msg, stack string) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value().String(), ex.String()
	}
	return err.Error(), ""
}

// sourcePreview renders the first sourcePreviewLines lines of the script
// with line numbers, for debugging compile failures.
func sourcePreview(script string) string {
	lines := strings.Split(script, "\n")
	n := len(lines)
	truncated := false
	if n > sourcePreviewLines {
		n = sourcePreviewLines
		truncated = true
	}

	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%3d | %s\n", i+1, lines[i])
	}
	if truncated {
		sb.WriteString("... (truncated)\n")
	}
	return sb.String()
}
