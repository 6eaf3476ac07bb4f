// Package wordlist builds and parses human-readable rendezvous codes of
// the form "<nameplate>-<word>-<word>...". Words alternate between two
// tables so a transcription error is detectable by position.
package wordlist
