package snapshot

import (
	"strings"
	"unicode"
)

// DiffCombinedTrees returns the lines of next whose trimmed content does not
// occur anywhere in prev, with their common leading indentation removed.
func DiffCombinedTrees(prev, next string) string {
	seen := make(map[string]struct{})
	for _, l := range strings.Split(prev, "\n") {
		if core := strings.TrimSpace(l); core != "" {
			seen[core] = struct{}{}
		}
	}

	var added []string
	for _, l := range strings.Split(next, "\n") {
		core := strings.TrimSpace(l)
		if core == "" {
			continue
		}
		if _, ok := seen[core]; !ok {
			added = append(added, l)
		}
	}
	if len(added) == 0 {
		return ""
	}

	minIndent := -1
	for _, l := range added {
		n := len(l) - len(strings.TrimLeftFunc(l, unicode.IsSpace))
		if minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	for i, l := range added {
		added[i] = l[minIndent:]
	}
	return strings.Join(added, "\n")
}
