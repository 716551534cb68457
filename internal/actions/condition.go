package actions

import "strings"

// ConditionPasses interprets a rendered condition. Empty text passes.
// "a == b" and "a != b" compare both sides after trimming and stripping
// one pair of matching quotes. Otherwise the common boolean spellings are
// recognised and any other non-empty text is true.
func ConditionPasses(rendered string) bool {
	text := strings.TrimSpace(rendered)
	if text == "" {
		return true
	}
	if lhs, rhs, ok := strings.Cut(text, "=="); ok {
		return normalize(lhs) == normalize(rhs)
	}
	if lhs, rhs, ok := strings.Cut(text, "!="); ok {
		return normalize(lhs) != normalize(rhs)
	}
	switch strings.ToLower(text) {
	case "true", "1", "yes", "y":
		return true
	case "false", "0", "no", "n":
		return false
	}
	return true
}

func normalize(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if first == last && (first == '"' || first == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
