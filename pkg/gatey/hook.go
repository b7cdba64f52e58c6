// hook.go provides the process-wide hook for errors and panics nobody handled.

package gatey

import (
	"errors"
	"sync"
)

// globalHook is the installed process-wide hook.
type globalHook struct {
	report       func(err error) error
	skipInternal bool
}

var (
	globalMu     sync.RWMutex
	globalActive *globalHook
)

// InstallGlobalHook installs report as the process-wide hook for uncaught
// errors and returns a function that restores the previously installed hook.
//
// The hook runs from RecoverGlobal and NotifyUncaught for errors not already
// reported by Catch and not marked to skip it. When report fails with an SDK
// error and skipInternal is set, the failure is swallowed so the original
// crash is still reported the default way.
func InstallGlobalHook(report func(err error) error, skipInternal bool) (uninstall func()) {
	h := &globalHook{report: report, skipInternal: skipInternal}

	globalMu.Lock()
	prev := globalActive
	globalActive = h
	globalMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			globalMu.Lock()
			defer globalMu.Unlock()
			if globalActive == h {
				globalActive = prev
			}
		})
	}
}

// RecoverGlobal reports a panic through the global hook and then re-panics
// with the same value, so the runtime still prints the crash and exits.
// Defer it at the top of main and of every goroutine:
//
//	func main() {
//	    defer gatey.RecoverGlobal()
//	    ...
//	}
//
// If the hook fails and internal errors are not skipped, the re-panic value
// joins the original error with the hook failure.
func RecoverGlobal() {
	r := recover()
	if r == nil {
		return
	}

	var err error
	switch v := r.(type) {
	case *PanicError:
		err = v
	case error:
		err = v
	default:
		err = NewPanicError(r)
	}

	if hookErr := reportUncaught(panicReport(r, err)); hookErr != nil {
		panic(errors.Join(err, hookErr))
	}
	panic(r)
}

// NotifyUncaught reports err through the global hook, typically for the
// error that makes main exit. It returns the hook failure only when internal
// errors are not skipped.
//
//	if err := run(ctx); err != nil {
//	    _ = gatey.NotifyUncaught(err)
//	    os.Exit(1)
//	}
func NotifyUncaught(err error) error {
	if err == nil {
		return nil
	}
	return reportUncaught(err)
}

// reportUncaught runs the installed hook for err unless err is marked.
func reportUncaught(err error) error {
	globalMu.RLock()
	h := globalActive
	globalMu.RUnlock()

	if h == nil || WasHandled(err) || ShouldSkipGlobalHook(err) {
		return nil
	}
	hookErr := h.report(err)
	if hookErr == nil || (h.skipInternal && IsInternal(hookErr)) {
		return nil
	}
	return hookErr
}

// panicReport returns the error reported for a panic. Error values without a
// stack of their own are reported through a *PanicError carrying the
// panicking stack.
func panicReport(r any, err error) error {
	if _, ok := err.(*PanicError); ok {
		return err
	}
	if StackOf(err) != nil {
		return err
	}
	return NewPanicError(r)
}
