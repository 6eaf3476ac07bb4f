// Package future provides a one-shot promise: a value or error set
// exactly once and awaited by any number of goroutines.
package future
