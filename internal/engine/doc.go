// Package engine drives one rendezvous session: code establishment,
// mailbox claiming, the code-authenticated key exchange, the version
// phase, and the encrypted application-message stream. All mutation runs
// on a single run-loop goroutine; results surface through the
// domain.EventSink installed at construction.
package engine
