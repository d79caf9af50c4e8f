package scanning

import "strings"

const (
	fence     = "```"
	jsonFence = "```json"
)

// StripFences removes a markdown code fence wrapped around a reply.
// A json-labelled fence wins over an unlabelled one, only the first fenced
// segment is kept, and unfenced text passes through with surrounding
// whitespace trimmed. The result never contains a fence, so applying
// StripFences twice gives the same text as applying it once.
func StripFences(text string) string {
	text = strings.TrimSpace(text)

	if _, after, ok := strings.Cut(text, jsonFence); ok {
		return firstSegment(after)
	}
	if _, after, ok := strings.Cut(text, fence); ok {
		return firstSegment(dropInfoString(after))
	}
	return text
}

// firstSegment returns the text up to the closing fence, or all of it when unclosed
func firstSegment(text string) string {
	segment, _, _ := strings.Cut(text, fence)
	return strings.TrimSpace(segment)
}

// dropInfoString removes the rest of the opening fence line when it holds
// nothing but a language tag such as "JSON" or "javascript"
func dropInfoString(text string) string {
	line, rest, ok := strings.Cut(text, "\n")
	if !ok {
		return text
	}
	for _, r := range strings.TrimSpace(line) {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return text
		}
	}
	return rest
}
