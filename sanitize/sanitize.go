// Package sanitize provides the single shared routine used for every
// on-disk name derived from user input (display names, caller-supplied
// snapshot file basenames). There is no suitable third-party sanitizer in
// scope for this — so this is deliberately a small stdlib-only routine;
// see DESIGN.md for the justification.
package sanitize

import "strings"

// Name reduces raw to a filesystem-safe basename: path separators are
// replaced, "@", ".", and spaces are preserved, and a traversal-only input
// never survives.
func Name(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case r == 0:
			// drop
		default:
			b.WriteRune(r)
		}
	}

	name := strings.TrimSpace(b.String())
	name = strings.Trim(name, ".")
	if name == "" {
		name = "unknown"
	}
	return name
}
