package config

import (
	"fmt"
	"strings"
)

// phpLayout maps PHP date() format letters to Go layout elements.
// Day, month and hour accept one or two digits, as PHP does.
var phpLayout = map[rune]string{
	'd': "2",
	'j': "2",
	'D': "Mon",
	'l': "Monday",
	'm': "1",
	'n': "1",
	'M': "Jan",
	'F': "January",
	'Y': "2006",
	'y': "06",
	'H': "15",
	'G': "15",
	'h': "3",
	'g': "3",
	'i': "04",
	's': "05",
	'A': "PM",
	'a': "pm",
}

// DateLayout translates a PHP-style date format ("d.m.Y") into a Go time
// layout ("2.1.2006"). Backslash escapes the next character; the PHP reset
// markers '!' and '|' are accepted and ignored.
func DateLayout(format string) (string, error) {
	if format == "" {
		return "", fmt.Errorf("empty date format")
	}
	var b strings.Builder
	escaped := false
	for _, r := range format {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '!' || r == '|':
		default:
			if elem, ok := phpLayout[r]; ok {
				b.WriteString(elem)
				continue
			}
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
				return "", fmt.Errorf("unsupported date format letter %q in %q", r, format)
			}
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}
