// Package broken does not type-check.
package broken

// Use refers to a type that does not exist.
func Use(v Undefined) error { return nil }

// Fine is well formed.
func Fine(n int) int { return n }
