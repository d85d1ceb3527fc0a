package interpreter

import (
	"regexp"
	"strings"
)

var (
	boldRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*\s][^*]*)\*`)
)

// StripEmphasis removes **bold** and *italic* markers, keeping the text.
func StripEmphasis(s string) string {
	s = boldRe.ReplaceAllString(s, "$1")
	s = italicRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

const suggestionsHeader = "suggestions:"

const maxSuggestions = 3

// splitSuggestions separates a trailing "Suggestions:" block from the display
// text. Each "- " line of the block is one suggestion.
func splitSuggestions(text string) (string, []string) {
	lines := strings.Split(text, "\n")
	header := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.ToLower(StripEmphasis(strings.TrimSpace(lines[i]))) == suggestionsHeader {
			header = i
			break
		}
	}
	if header < 0 {
		return strings.TrimSpace(text), nil
	}

	var suggestions []string
	for _, l := range lines[header+1:] {
		l = strings.TrimSpace(l)
		if !strings.HasPrefix(l, "- ") && !strings.HasPrefix(l, "* ") {
			continue
		}
		s := StripEmphasis(strings.TrimSpace(l[2:]))
		if s == "" {
			continue
		}
		if len(suggestions) < maxSuggestions {
			suggestions = append(suggestions, s)
		}
	}
	return strings.TrimSpace(strings.Join(lines[:header], "\n")), suggestions
}
