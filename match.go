package pake

import (
	"fmt"
	"strings"
)

// Match carries the outcome of a pattern rule matching a target. Group 0 is
// the whole match; groups 1..n are the pattern's capture groups, numbered as
// written by the user.
type Match struct {
	target string
	groups []string
}

// Target returns the canonical target that matched.
func (m *Match) Target() string { return m.target }

// Group returns capture group i, or "" if out of range.
func (m *Match) Group(i int) string {
	if i < 0 || i >= len(m.groups) {
		return ""
	}
	return m.groups[i]
}

// Groups returns the capture groups (excluding the whole match) in order.
func (m *Match) Groups() []string {
	if len(m.groups) <= 1 {
		return nil
	}
	out := make([]string, len(m.groups)-1)
	copy(out, m.groups[1:])
	return out
}

// expandTemplate substitutes numbered backreferences (`\1`, `\2`, …) in a
// dependency template with the match's capture groups. `\\` is a literal
// backslash. Templates are validated at registration, so out-of-range
// references cannot occur here.
func expandTemplate(tmpl string, m *Match) string {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '\\' || i+1 >= len(tmpl) {
			b.WriteByte(c)
			continue
		}
		next := tmpl[i+1]
		switch {
		case next == '\\':
			b.WriteByte('\\')
			i++
		case next >= '0' && next <= '9':
			b.WriteString(m.Group(int(next - '0')))
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// maxBackref returns the highest group number referenced by a template.
func maxBackref(tmpl string) int {
	max := 0
	for i := 0; i < len(tmpl)-1; i++ {
		if tmpl[i] != '\\' {
			continue
		}
		next := tmpl[i+1]
		if next == '\\' {
			i++
			continue
		}
		if next >= '0' && next <= '9' {
			if n := int(next - '0'); n > max {
				max = n
			}
			i++
		}
	}
	return max
}

// validateTemplates checks every backreference against the pattern's group
// count.
func validateTemplates(templates []string, groups int) error {
	for _, t := range templates {
		if n := maxBackref(t); n > groups {
			return fmt.Errorf("dependency template %q references group %d, but the pattern has only %d", t, n, groups)
		}
	}
	return nil
}
