// Package memzero scrubs key material once it is no longer needed.
package memzero

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
