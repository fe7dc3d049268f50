// Package output prepares assistant replies for delivery: paragraph
// fragmentation, citation cleanup, and CLI table rendering.
package output

import (
	"regexp"
	"strings"

	"github.com/dialoq/dialoq/internal/core"
)

var (
	// paragraphSep matches one or more consecutive blank lines, allowing
	// trailing whitespace on the blank lines themselves.
	paragraphSep = regexp.MustCompile(`\n[ \t\r]*\n[\s]*`)

	// citationMarker matches the bracketed citation annotations some
	// completion providers embed in replies, e.g. 【4:0†source】 or
	// [3†notes.pdf]. Plain bracketed text without the dagger is left alone.
	citationMarker = regexp.MustCompile(`【[^【】]*】|\[[^\[\]]*†[^\[\]]*\]`)
)

// Fragments splits an assistant reply into paragraph fragments, normalizing
// each one. Paragraph boundaries are runs of one or more blank lines. Empty
// fragments are dropped, so a reply of only whitespace yields none.
func Fragments(text string) []core.Fragment {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var fragments []core.Fragment
	for _, part := range paragraphSep.Split(text, -1) {
		body := Normalize(part)
		if body == "" {
			continue
		}
		fragments = append(fragments, core.Fragment{Body: body})
	}
	return fragments
}

// Normalize strips citation markers, collapses doubled emphasis markers to
// single, and trims surrounding whitespace.
func Normalize(text string) string {
	text = citationMarker.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "**", "*")
	return strings.TrimSpace(text)
}
