// Package relay speaks the rendezvous relay wire: nameplate allocation
// and claiming, mailbox message exchange, and the server greeting. It
// contains both the HTTP client used by the engine and the in-memory
// server implementation behind cmd/relay.
package relay
