package openai

import "strings"

// extractJSON pulls the first balanced JSON object out of a model reply
// that may wrap it in markdown fences or explanatory prose. Returns ""
// when no complete object is present.
func extractJSON(content string) string {
	if fenced := stripCodeFence(content); fenced != "" {
		content = fenced
	}

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return content[start : i+1]
				}
			}
		}
	}
	return ""
}

func stripCodeFence(content string) string {
	idx := strings.Index(content, "```")
	if idx < 0 {
		return ""
	}
	rest := content[idx+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "json" || firstLine == "" {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		return strings.TrimSpace(rest[:end])
	}
	return ""
}
