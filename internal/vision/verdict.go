package vision

import (
	"strconv"
	"strings"

	"github.com/sells-group/storewatch/internal/model"
)

// Verdict is the parsed form of a model reply.
type Verdict struct {
	Category   model.VerdictCategory
	Confidence float64
	Reason     string
}

// ParseVerdict extracts category, confidence and reason from a model reply.
// The prompt asks for labeled "Category:", "Confidence:" and "Reason:" lines,
// but replies drift; missing or unparseable fields fall back to a keyword
// scan of the full text, and finally to unclear with zero confidence.
func ParseVerdict(text string) Verdict {
	v := Verdict{Category: model.VerdictUnclear}

	for _, line := range strings.Split(text, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "category":
			if c := normalizeCategory(value); c.Valid() {
				v.Category = c
			}
		case "confidence":
			if f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64); err == nil {
				if strings.HasSuffix(value, "%") {
					f /= 100
				}
				v.Confidence = clamp01(f)
			}
		case "reason":
			v.Reason = value
		}
	}

	if v.Category == model.VerdictUnclear {
		v.Category = categoryFromKeywords(text)
	}
	return v
}

func normalizeCategory(s string) model.VerdictCategory {
	return model.VerdictCategory(strings.ToLower(strings.TrimSpace(s)))
}

// categoryFromKeywords scans free-form replies for the signal words the
// model tends to use when it ignores the requested format.
func categoryFromKeywords(text string) model.VerdictCategory {
	lower := strings.ToLower(text)
	for _, w := range []string{"theft", "steal", "stealing", "rob", "shoplif"} {
		if strings.Contains(lower, w) {
			return model.VerdictTheft
		}
	}
	if strings.Contains(lower, "suspicious") {
		return model.VerdictSuspicious
	}
	if strings.Contains(lower, "normal") || strings.Contains(lower, "no activity") {
		return model.VerdictNormal
	}
	return model.VerdictUnclear
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
