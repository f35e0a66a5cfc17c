package normalize

import "strings"

// ParseLinePairs extracts label/value pairs from rendered panel text. Two
// layouts are supported: "Label: value" on one line, and a label line
// followed by its value on the next non-empty line. The first value seen for
// a canonical key wins; raw labels not present in the mapping are ignored.
func ParseLinePairs(text string, labels map[string][]string) map[string]string {
	out := make(map[string]string)
	if text == "" {
		return out
	}

	labelKey := make(map[string]string)
	for key, variants := range labels {
		for _, v := range variants {
			labelKey[strings.ToLower(v)] = key
		}
	}

	lines := splitLines(text)
	for i, ln := range lines {
		if ln == "" {
			continue
		}

		if left, right, found := strings.Cut(ln, ":"); found {
			if key, ok := labelKey[strings.ToLower(strings.TrimSpace(left))]; ok {
				if val := strings.TrimSpace(right); val != "" {
					setDefault(out, key, val)
				}
			}
		}

		key, ok := labelKey[strings.ToLower(ln)]
		if !ok {
			continue
		}
		// The value is the next non-empty line, unless that line is itself a
		// label or a placeholder dash.
		for j := i + 1; j < len(lines); j++ {
			val := lines[j]
			if val == "" {
				continue
			}
			if val == "-" || val == "—" {
				break
			}
			if _, isLabel := labelKey[strings.ToLower(val)]; isLabel {
				break
			}
			setDefault(out, key, val)
			break
		}
	}
	return out
}

func setDefault(m map[string]string, key, val string) {
	if _, exists := m[key]; !exists {
		m[key] = val
	}
}

// splitLines normalizes line endings and trims each line.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	raw := strings.Split(text, "\n")
	out := make([]string, len(raw))
	for i, ln := range raw {
		out[i] = strings.TrimSpace(ln)
	}
	return out
}
