// Package sanitize repairs JSON payloads carrying raw control characters so
// they survive a standard parser. Clients routinely paste multi-line text into
// string fields without escaping it; instead of rejecting those bodies the
// gateway rewrites the offending bytes as their canonical JSON escapes.
package sanitize

import "fmt"

// escapes maps the control characters with a short-form JSON escape.
var escapes = map[byte]string{
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
	'\b': `\b`,
	'\f': `\f`,
}

// EscapeControlChars returns raw with every unescaped control byte found
// inside a quoted string replaced by its JSON escape sequence. Bytes outside
// strings pass through untouched, as does anything already behind a backslash.
// Input that contains no raw control characters comes back byte-identical.
func EscapeControlChars(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	inString := false
	escaped := false

	for _, b := range raw {
		if escaped {
			// The previous backslash consumes exactly this byte.
			out = append(out, b)
			escaped = false
			continue
		}

		switch {
		case b == '\\':
			escaped = true
			out = append(out, b)
		case b == '"':
			inString = !inString
			out = append(out, b)
		case inString && b < 0x20:
			if short, ok := escapes[b]; ok {
				out = append(out, short...)
			} else {
				out = append(out, fmt.Sprintf(`\u%04x`, b)...)
			}
		default:
			out = append(out, b)
		}
	}

	return out
}
