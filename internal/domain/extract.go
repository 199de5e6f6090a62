package domain

import (
	"regexp"
	"strings"
)

var (
	fenceRe   = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n?(.*?)\n?```")
	bracketRe = regexp.MustCompile(`(?s)(\[.*\])`)
)

// Extract recovers the payload from an unstructured model reply: the
// interior of a fenced code block if present, else (when expectList) the
// widest [...] span, else the whole reply trimmed. Best effort, never
// fails; callers detect absence by checking for an empty result.
func Extract(reply string, expectList bool) string {
	if m := fenceRe.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	if expectList {
		if m := bracketRe.FindStringSubmatch(reply); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return strings.TrimSpace(reply)
}
