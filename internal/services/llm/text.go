package llm

import "strings"

// StripCodeFence removes a surrounding ``` block, if any.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	body, ok := strings.CutPrefix(trimmed, "```")
	if !ok {
		return trimmed
	}
	if nl := strings.IndexAny(body, "\r\n"); nl >= 0 {
		// drop the info string, e.g. ```text
		body = body[nl:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

// snippet collapses whitespace and truncates s for error messages.
func snippet(s string) string {
	const limit = 160
	clean := strings.Join(strings.Fields(s), " ")
	if clean == "" {
		return "<empty>"
	}
	if r := []rune(clean); len(r) > limit {
		clean = string(r[:limit]) + "..."
	}
	return clean
}
