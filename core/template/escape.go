package template

import (
	"io"
	"strings"
)

func entity(c byte) string {
	switch c {
	case '&':
		return "&amp;"
	case '<':
		return "&lt;"
	case '>':
		return "&gt;"
	case '"':
		return "&quot;"
	case '\'':
		return "&apos;"
	}
	return ""
}

// Escape writes s to w with the five HTML-significant characters replaced
// by named entities.
func Escape(w io.Writer, s string) error {
	last := 0
	for i := 0; i < len(s); i++ {
		ent := entity(s[i])
		if ent == "" {
			continue
		}
		if last < i {
			if _, err := io.WriteString(w, s[last:i]); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, ent); err != nil {
			return err
		}
		last = i + 1
	}
	if last < len(s) {
		_, err := io.WriteString(w, s[last:])
		return err
	}
	return nil
}

// EscapeString returns the escaped form of s.
func EscapeString(s string) string {
	var sb strings.Builder
	Escape(&sb, s)
	return sb.String()
}
