// Package journal implements the outbound side-effect journal. The
// immediate journal runs effects on the spot; the file journal appends a
// record first so a supervisor can audit what the session sent.
package journal
