package module

import "strings"

// MissingLabel is substituted for any placeholder whose label is absent.
const MissingLabel = "<missing>"

// LabelLookup resolves a placeholder name to its substitution value.
// It is total: every name yields a string.
type LabelLookup func(name string) string

// LookupLabels returns a LabelLookup over labels that falls back to
// MissingLabel for names not present in the map. An empty value is still
// a present label and is returned as-is.
func LookupLabels(labels map[string]string) LabelLookup {
	return func(name string) string {
		if v, ok := labels[name]; ok {
			return v
		}
		return MissingLabel
	}
}

// RenderCommand substitutes $name and ${name} placeholders in tmpl with
// alert label values. $$ yields a literal $. Placeholder syntax that does
// not form a valid name is copied through unchanged. Substituted values are
// never re-scanned.
func RenderCommand(tmpl string, labels map[string]string) string {
	return Expand(tmpl, LookupLabels(labels))
}

// Expand performs a single substitution pass over tmpl using lookup.
func Expand(tmpl string, lookup LabelLookup) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))

	i := 0
	for i < len(tmpl) {
		j := strings.IndexByte(tmpl[i:], '$')
		if j < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		b.WriteString(tmpl[i : i+j])
		i += j

		name, width, ok := scanPlaceholder(tmpl[i:])
		switch {
		case !ok:
			// Malformed: emit the delimiter and carry on after it.
			b.WriteByte('$')
			i++
		case name == "":
			b.WriteByte('$')
			i += width
		default:
			b.WriteString(lookup(name))
			i += width
		}
	}
	return b.String()
}

// Placeholders returns the distinct placeholder names referenced by tmpl in
// order of first appearance.
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for i := 0; i < len(tmpl); {
		j := strings.IndexByte(tmpl[i:], '$')
		if j < 0 {
			break
		}
		i += j
		name, width, ok := scanPlaceholder(tmpl[i:])
		if !ok {
			i++
			continue
		}
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		i += width
	}
	return names
}

// scanPlaceholder inspects s, which starts with '$'. It reports the
// placeholder name and the number of bytes it spans. An escaped "$$" is
// reported as an empty name with width 2. ok is false for anything that is
// not a valid placeholder.
func scanPlaceholder(s string) (name string, width int, ok bool) {
	if len(s) < 2 {
		return "", 0, false
	}
	switch c := s[1]; {
	case c == '$':
		return "", 2, true
	case c == '{':
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return "", 0, false
		}
		id := s[2:end]
		if identLen(id) != len(id) || id == "" {
			return "", 0, false
		}
		return id, end + 1, true
	default:
		n := identLen(s[1:])
		if n == 0 {
			return "", 0, false
		}
		return s[1 : 1+n], 1 + n, true
	}
}

// identLen returns the length of the leading [_a-zA-Z][_a-zA-Z0-9]* run.
func identLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return i
		}
	}
	return len(s)
}
