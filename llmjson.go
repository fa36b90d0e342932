package ragengine

import "strings"

// ExtractJSONObject pulls the first JSON object out of a model response.
// Models are asked for a fenced ```json body, but responses drift, so the
// fenced block is preferred and the first balanced brace pair is the
// fallback. Returns the empty string when no object is present; callers
// treat planner and classifier output as untrusted input and decide what a
// missing object means.
func ExtractJSONObject(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		if obj := firstBalancedObject(text[idx+len("```json"):]); obj != "" {
			return obj
		}
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		if obj := firstBalancedObject(text[idx+len("```"):]); obj != "" {
			return obj
		}
	}
	return firstBalancedObject(text)
}

// firstBalancedObject scans for the first '{' and returns the substring up
// to its matching '}', tracking JSON string literals so braces inside values
// do not unbalance the scan.
func firstBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
