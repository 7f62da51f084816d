// Package sanitize reduces user-supplied form text to plain text before it is
// stored or shown to staff.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// Text drops markup, decodes entities and collapses runs of whitespace.
// Content of script and style elements is discarded entirely.
func Text(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; keep what was read so far.
			return collapse(b.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); hidden(name) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); hidden(name) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func hidden(tag []byte) bool {
	switch string(tag) {
	case "script", "style":
		return true
	}
	return false
}

// collapse keeps line breaks so multi-line notes survive.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
