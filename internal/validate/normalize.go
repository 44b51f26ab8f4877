package validate

import "strings"

// keywordRule maps a set of name keywords to a canonical task number.
// All keywords must appear (accent-insensitive) for the rule to fire.
type keywordRule struct {
	keywords []string
	number   string
}

// taskNameRules is the deterministic rule table applied when a line item
// arrives without a usable task number. Rules reflect the standard task
// breakdown used across the contracts this service ingests.
var taskNameRules = []keywordRule{
	{keywords: []string{"instalacion", "faena"}, number: "1.1"},
	{keywords: []string{"visita", "terreno"}, number: "1.2"},
	{keywords: []string{"levantamiento", "topografico"}, number: "2.1"},
	{keywords: []string{"informe", "final"}, number: "4.1"},
}

// accentReplacer folds the Spanish accented vowels so keyword matching is
// accent-insensitive.
var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ñ", "n",
)

// NormalizeTaskNumber converts a task number to its canonical form so that
// repeated extractions of the same logical task converge to the same key.
// Redundant trailing zero-decimals are stripped ("3.0" becomes "3"); an
// empty number is recovered from name keywords when a rule matches. The
// second return value is false when the number could not be resolved; the
// input then passes through unchanged for the caller to flag.
func NormalizeTaskNumber(number, name string) (string, bool) {
	n := strings.TrimSpace(number)

	if n != "" {
		segments := strings.Split(n, ".")
		// Drop trailing all-zero segments: "3.0" -> "3", "2.0.0" -> "2".
		for len(segments) > 1 && isAllZeros(segments[len(segments)-1]) {
			segments = segments[:len(segments)-1]
		}
		return strings.Join(segments, "."), true
	}

	folded := accentReplacer.Replace(strings.ToLower(name))
	for _, rule := range taskNameRules {
		if matchesAll(folded, rule.keywords) {
			return rule.number, true
		}
	}

	return number, false
}

func isAllZeros(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c != '0' {
			return false
		}
	}
	return true
}

func matchesAll(s string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(s, kw) {
			return false
		}
	}
	return true
}
