// Package commands wires the conduit CLI: sending and receiving short
// text messages through a rendezvous relay using the blocking facade.
package commands
