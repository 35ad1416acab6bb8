// internal/llm/extract.go
package llm

// ExtractJSONObject returns the first balanced top-level JSON object found in
// s starting at or after offset, along with the offset just past it. It
// tracks string and escape state so braces inside string values do not
// confuse the scan. Fallback parser only; the primary path asks the provider
// for a machine-validated JSON object directly.
func ExtractJSONObject(s string, offset int) (string, int, bool) {
	if offset < 0 || offset >= len(s) {
		return "", len(s), false
	}

	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := offset; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], i + 1, true
				}
			}
		}
	}
	return "", len(s), false
}
