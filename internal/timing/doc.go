// Package timing collects named protocol spans for diagnostics.
package timing
