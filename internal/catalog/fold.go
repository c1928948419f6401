package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// foldName returns the case-folded form used to compare category names.
// Casers keep state, so one is built per call.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func sameName(a, b string) bool {
	return foldName(a) == foldName(b)
}
