// Package enums holds the string-backed enumerations persisted in the database
// and exchanged over the API.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// values is the closed set of members of one enumeration.
type values[T ~string] []T

func (v values[T]) contains(x T) bool {
	return slices.Contains(v, x)
}

// parse matches raw against the members after trimming; fold compares case-insensitively.
func (v values[T]) parse(kind, raw string, fold bool) (T, error) {
	needle := strings.TrimSpace(raw)
	for _, candidate := range v {
		if string(candidate) == needle || (fold && strings.EqualFold(string(candidate), needle)) {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
