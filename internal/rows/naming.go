package rows

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const defaultTableName = "untitled"

var (
	spreadsheetExt = regexp.MustCompile(`(?i)\.(xlsx|xlsm|xls|csv|pdf)$`)
	suffixedName   = regexp.MustCompile(`^(.*) \(([2-9]|[1-9][0-9]+)\)$`)
)

// DeriveTableName strips a known spreadsheet extension from filename.
func DeriveTableName(filename string) string {
	name := strings.TrimSpace(spreadsheetExt.ReplaceAllString(strings.TrimSpace(filename), ""))
	if name == "" {
		return defaultTableName
	}
	return name
}

// NextTableName returns base when it is not taken, otherwise "base (N)" for
// the smallest N >= 2 that is free.
func NextTableName(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, name := range taken {
		used[name] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + " (" + strconv.Itoa(n) + ")"
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}

// namePrefix is the prefix shared by every suffixed variant of base.
func namePrefix(base string) string {
	return base + " ("
}

// lockNames lists, in lock order, the names an insert of name must hold.
// A suffixed name like "Sales (2)" can also be produced from "Sales", so
// both are locked.
func lockNames(name string) []string {
	m := suffixedName.FindStringSubmatch(name)
	if m == nil {
		return []string{name}
	}
	names := []string{name, m[1]}
	sort.Strings(names)
	return names
}
