// Package gatey captures errors, panics, and messages and delivers them to
// the Gatey API or another destination without blocking or crashing the host
// application.
//
// # Core Components
//
//   - Event: a message and/or an Exception with level and tags
//   - Client: merges tags, normalizes errors into exceptions, hands events to the Buffer
//   - Buffer: sends immediately or queues events and flushes them in rounds
//   - Transport: delivers one event (network, callback, print, noop, or custom)
//   - Catch and RecoverGlobal: capture errors and panics that escape application code
//
// # Quick Start
//
//	client, err := gatey.NewClient(ctx,
//	    gatey.WithProjectID("42"),
//	    gatey.WithServerSecret(os.Getenv("GATEY_SERVER_SECRET")),
//	    gatey.WithEventBuffering(true),
//	    gatey.WithGlobalHook(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//	defer gatey.RecoverGlobal()
//
//	client.CaptureMessage(ctx, "service started")
//	if err := work(); err != nil {
//	    client.CaptureException(ctx, err, gatey.WithTags(map[string]string{"job": "sync"}))
//	}
//
// # Exceptions
//
// Go has no exception objects, so an exception is an error or a recovered
// panic. The class is the error's dynamic type name (or its ExceptionClass
// method), the traceback comes from a github.com/pkg/errors stack, the
// panicking goroutine, or the capture site, and local variables are the ones
// attached with WithLocals.
//
// # Delivery Semantics
//
//   - Without buffering, capture calls return delivery errors to the caller
//   - With buffering, failed events are re-queued and retried on the next
//     flush with no retry limit; Close performs a final flush
//   - Nothing is persisted: events still queued when the process dies are lost
//
// # Subpackages
//
// The api package talks to the Gatey API, config loads client options from
// GATEY_* environment variables, and transports/multi and transports/cxdb
// provide fan-out and CXDB delivery.
package gatey
