// Package identity derives stable canonical keys for worker profiles so
// that submissions arriving with inconsistent casing or whitespace land on
// the same record.
package identity

import "strings"

// NormalizeName trims, collapses internal whitespace runs to single spaces
// and lowercases. Empty input normalizes to "".
func NormalizeName(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// NormalizeEmployeeID strips all whitespace and lowercases. An empty result
// means "no employee id"; callers treat "" as absence.
func NormalizeEmployeeID(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), ""))
}

// CanonicalKey builds the unique worker key. With an employee id the key is
// "name::id"; without one it is the bare normalized name, so two id-less
// workers sharing a name collide on purpose.
func CanonicalKey(name, employeeID string) string {
	n := NormalizeName(name)
	if id := NormalizeEmployeeID(employeeID); id != "" {
		return n + "::" + id
	}
	return n
}
