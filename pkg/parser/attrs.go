package parser

import (
	"strings"

	"golang.org/x/net/html"
)

// tagAttributes reads the attributes of a single open tag.
// Keys come back lowercased, values unescaped.
func tagAttributes(tag string) (map[string]any, bool) {
	z := html.NewTokenizer(strings.NewReader(tag))
	switch z.Next() {
	case html.StartTagToken, html.SelfClosingTagToken:
	default:
		return nil, false
	}

	attrs := make(map[string]any)
	_, more := z.TagName()
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		attrs[string(key)] = string(val)
	}
	return attrs, true
}

// asciiLower folds A-Z only, so byte offsets stay aligned with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isNameEnd(c byte) bool {
	return isSpace(c) || c == '>' || c == '/'
}

// findOpen returns the offset of the next "<name" at or after from whose name is
// not a prefix of a longer tag. lower must be ASCII-lowered, like name.
func findOpen(lower, name string, from int) int {
	needle := "<" + name
	for from < len(lower) {
		i := strings.Index(lower[from:], needle)
		if i < 0 {
			return -1
		}
		i += from
		next := i + len(needle)
		if next >= len(lower) || isNameEnd(lower[next]) {
			return i
		}
		from = next
	}
	return -1
}

// tagEnd returns the offset just past the '>' that closes the tag starting at
// start. Quoted attribute values may contain '>'.
func tagEnd(text string, start int) int {
	var quote byte
	for i := start + 1; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i + 1
		}
	}
	return -1
}

// findClose locates "</name>" (whitespace allowed before '>') at or after from.
func findClose(lower, name string, from int) (start, end int) {
	needle := "</" + name
	for from < len(lower) {
		i := strings.Index(lower[from:], needle)
		if i < 0 {
			return -1, -1
		}
		i += from
		k := i + len(needle)
		for k < len(lower) && isSpace(lower[k]) {
			k++
		}
		if k < len(lower) && lower[k] == '>' {
			return i, k + 1
		}
		from = i + len(needle)
	}
	return -1, -1
}

func isSelfClosing(openTag string) bool {
	inner := strings.TrimRight(strings.TrimSuffix(openTag, ">"), " \t\r\n")
	return strings.HasSuffix(inner, "/")
}
