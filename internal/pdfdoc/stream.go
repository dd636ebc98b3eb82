package pdfdoc

import (
	"strings"
	"unicode/utf16"
)

// decodeContentText walks the operators of a decoded PDF content stream and
// assembles the text shown by Tj, TJ, ' and " into lines. Positioning
// operators (Td, TD, T*) and ET terminate the current line, which is how the
// per-line structure the field rules rely on (`...\n`) is produced. Numbers,
// names and array brackets are skipped; inline dictionaries are skipped as a
// whole. CID-keyed fonts without a ToUnicode map cannot be decoded and come
// through as raw bytes.
func decodeContentText(data []byte) string {
	var out, run, pending strings.Builder

	flushLine := func() {
		if run.Len() > 0 {
			out.WriteString(run.String())
			out.WriteByte('\n')
			run.Reset()
		}
	}

	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0:
			i++
		case c == '%':
			// comment to end of line
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case c == '(':
			s, next := parseLiteralString(data, i)
			pending.WriteString(s)
			i = next
		case c == '<':
			if i+1 < len(data) && data[i+1] == '<' {
				i = skipDict(data, i)
			} else {
				s, next := parseHexString(data, i)
				pending.WriteString(s)
				i = next
			}
		case c == '[' || c == ']' || c == '{' || c == '}':
			i++
		case c == '/':
			i++
			for i < len(data) && !isDelim(data[i]) {
				i++
			}
		case (c >= '0' && c <= '9') || c == '+' || c == '-' || c == '.':
			for i < len(data) && !isDelim(data[i]) {
				i++
			}
		default:
			start := i
			for i < len(data) && !isDelim(data[i]) {
				i++
			}
			switch string(data[start:i]) {
			case "Tj", "TJ":
				run.WriteString(pending.String())
			case "'", "\"":
				flushLine()
				run.WriteString(pending.String())
			case "Td", "TD", "T*", "BT", "ET":
				flushLine()
			}
			pending.Reset()
		}
	}
	flushLine()
	return out.String()
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// parseLiteralString reads a (...) string starting at the opening paren and
// returns the decoded text and the index just past the closing paren.
// Balanced unescaped parens are allowed inside per the PDF spec.
func parseLiteralString(data []byte, start int) (string, int) {
	var raw []byte
	depth := 1
	i := start + 1
	for i < len(data) && depth > 0 {
		c := data[i]
		switch c {
		case '\\':
			if i+1 >= len(data) {
				i++
				break
			}
			i++
			switch e := data[i]; e {
			case 'n':
				raw = append(raw, '\n')
			case 'r':
				raw = append(raw, '\r')
			case 't':
				raw = append(raw, '\t')
			case 'b':
				raw = append(raw, '\b')
			case 'f':
				raw = append(raw, '\f')
			case '(', ')', '\\':
				raw = append(raw, e)
			case '\n':
				// line continuation, emit nothing
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for n := 0; n < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; n++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					raw = append(raw, byte(val))
				} else {
					raw = append(raw, e)
				}
			}
			i++
		case '(':
			depth++
			raw = append(raw, c)
			i++
		case ')':
			depth--
			if depth > 0 {
				raw = append(raw, c)
			}
			i++
		default:
			raw = append(raw, c)
			i++
		}
	}
	return decodeStringBytes(raw), i
}

// parseHexString reads a <...> string starting at the opening bracket.
func parseHexString(data []byte, start int) (string, int) {
	var nibbles []byte
	i := start + 1
	for i < len(data) && data[i] != '>' {
		c := data[i]
		if v, ok := hexVal(c); ok {
			nibbles = append(nibbles, v)
		}
		i++
	}
	if i < len(data) {
		i++ // closing '>'
	}
	// odd nibble count: final digit is padded with zero per spec
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0)
	}
	raw := make([]byte, 0, len(nibbles)/2)
	for j := 0; j+1 < len(nibbles); j += 2 {
		raw = append(raw, nibbles[j]<<4|nibbles[j+1])
	}
	return decodeStringBytes(raw), i
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodeStringBytes interprets PDF string bytes: UTF-16BE when the BOM is
// present, raw bytes otherwise.
func decodeStringBytes(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		u := make([]uint16, 0, (len(raw)-2)/2)
		for i := 2; i+1 < len(raw); i += 2 {
			u = append(u, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(u))
	}
	return string(raw)
}

// skipDict skips a << ... >> dictionary, including nested dictionaries and
// any strings inside, returning the index just past the closing >>.
func skipDict(data []byte, start int) int {
	depth := 0
	i := start
	for i < len(data) {
		switch {
		case i+1 < len(data) && data[i] == '<' && data[i+1] == '<':
			depth++
			i += 2
		case i+1 < len(data) && data[i] == '>' && data[i+1] == '>':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		case data[i] == '(':
			_, i = parseLiteralString(data, i)
		default:
			i++
		}
	}
	return i
}
