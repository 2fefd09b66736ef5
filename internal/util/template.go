package util

import "strings"

// RenderPrompt substitutes {{handle}} placeholders in a prompt template with
// the named input values. Unknown handles render as the empty string so a
// template referencing an unwired input degrades instead of failing. This
// lives in internal to avoid committing to public API stability prematurely.
func RenderPrompt(text string, inputs map[string]string) string {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for {
		start := strings.Index(text, "{{")
		if start < 0 {
			b.WriteString(text)
			break
		}
		end := strings.Index(text[start:], "}}")
		if end < 0 {
			b.WriteString(text)
			break
		}
		end += start

		b.WriteString(text[:start])
		handle := strings.TrimSpace(text[start+2 : end])
		b.WriteString(inputs[handle])
		text = text[end+2:]
	}

	return b.String()
}
