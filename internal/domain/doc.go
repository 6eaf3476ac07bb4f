// Package domain defines core data models and contracts shared across the
// module. It contains plain types (wire/state), interfaces, and the error
// taxonomy only.
package domain
