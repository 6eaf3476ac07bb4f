// Package conduit is the client of a secure rendezvous protocol. Two
// parties share a short human-readable code out-of-band, perform an
// authenticated key exchange through a relay, compare a verifier, and
// exchange encrypted application messages until either side closes.
//
// Three consumption styles are offered over the same engine:
//
//   - Session: futures. WhenCode/WhenKey/WhenVerified/WhenVersion and
//     WhenReceived return one-shot promises resolved as the protocol
//     progresses.
//   - Delegated: callbacks. Each protocol event becomes a synchronous
//     method call on a caller-supplied handler.
//   - Blocking: synchronous. GetCode/GetVerifier/GetData block the
//     calling goroutine, and an in-progress handshake can be serialized
//     and resumed across process restarts.
package conduit
