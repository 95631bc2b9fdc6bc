package resolution

import "strings"

// Type-specific variation rules. Each rule answers whether two surface
// texts of the same type tag denote the same entity even when their
// similarity ratio stays below the threshold.

// typeClass buckets raw extractor type tags into rule families
func typeClass(entityType string) string {
	switch t := strings.ToUpper(entityType); {
	case t == "PERSON" || t == "PER":
		return "person"
	case strings.HasPrefix(t, "ORG"):
		return "org"
	case t == "DATE":
		return "date"
	default:
		return "other"
	}
}

// sameVariation applies the generic containment rule plus the rule
// family of the mention type
func sameVariation(a string, b string, entityType string) bool {
	if containsVariation(a, b) {
		return true
	}

	switch typeClass(entityType) {
	case "person":
		return personVariation(a, b)
	case "org":
		return orgVariation(a, b)
	case "date":
		return dateVariation(a, b)
	}
	return false
}

// containsVariation handles abbreviation containment: one text being a
// case-insensitive substring of the other
func containsVariation(a string, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return false
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// splitPersonName splits a name into surname and given-name tokens.
// The token adjacent to a comma is the surname ("Smith, John"); with
// no comma the last token is ("John Smith").
func splitPersonName(name string) (string, []string) {
	name = strings.TrimSpace(name)

	if i := strings.Index(name, ","); i >= 0 {
		surname := strings.TrimSpace(name[:i])
		rest := strings.ReplaceAll(name[i+1:], ",", " ")
		return surname, strings.Fields(rest)
	}

	tokens := strings.Fields(name)
	if len(tokens) == 0 {
		return "", nil
	}
	return tokens[len(tokens)-1], tokens[:len(tokens)-1]
}

// personVariation matches two person names when the surnames agree and
// the given names either match exactly or share the same initial
func personVariation(a string, b string) bool {
	surnameA, givensA := splitPersonName(a)
	surnameB, givensB := splitPersonName(b)

	if surnameA == "" || !strings.EqualFold(surnameA, surnameB) {
		return false
	}

	if len(givensA) == 0 && len(givensB) == 0 {
		return true
	}
	if len(givensA) == 0 || len(givensB) == 0 {
		return false
	}

	ga := strings.ToLower(strings.Join(stripDots(givensA), " "))
	gb := strings.ToLower(strings.Join(stripDots(givensB), " "))
	if ga == gb {
		return true
	}
	// "J." vs "John": same first initial
	return ga[0] == gb[0]
}

func stripDots(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.TrimSuffix(t, ".")
	}
	return out
}

// orgSuffixes maps long legal suffixes to their abbreviations
var orgSuffixes = map[string]string{
	"corporation":   "corp",
	"incorporated":  "inc",
	"limited":       "ltd",
	"company":       "co",
	"international": "intl",
	"association":   "assoc",
}

// orgSuffixSet holds all abbreviated suffix forms for base-name comparison
var orgSuffixSet = map[string]bool{
	"corp": true, "inc": true, "ltd": true, "co": true, "intl": true, "assoc": true,
}

var orgPunctReplacer = strings.NewReplacer(".", "", ",", "", ";", "", ":", "", "'", "", "\"", "", "(", "", ")", "")

// normalizeOrgName lowercases, strips punctuation, and abbreviates
// known legal suffixes
func normalizeOrgName(name string) []string {
	name = orgPunctReplacer.Replace(strings.ToLower(name))
	tokens := strings.Fields(name)
	for i, t := range tokens {
		if abbr, ok := orgSuffixes[t]; ok {
			tokens[i] = abbr
		}
	}
	return tokens
}

// orgVariation matches organization names after suffix normalization.
// Names that differ only in their legal suffix compare equal on the
// base name, and a single token is compared against the initials of a
// multi-token name ("IBM" vs "International Business Machines").
func orgVariation(a string, b string) bool {
	tokensA := normalizeOrgName(a)
	tokensB := normalizeOrgName(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return false
	}

	if strings.Join(tokensA, " ") == strings.Join(tokensB, " ") {
		return true
	}

	baseA := stripOrgSuffix(tokensA)
	baseB := stripOrgSuffix(tokensB)
	if len(baseA) > 0 && strings.Join(baseA, " ") == strings.Join(baseB, " ") {
		return true
	}

	if len(tokensA) == 1 && len(tokensB) > 1 && tokensA[0] == initials(tokensB) {
		return true
	}
	if len(tokensB) == 1 && len(tokensA) > 1 && tokensB[0] == initials(tokensA) {
		return true
	}
	return false
}

func stripOrgSuffix(tokens []string) []string {
	if len(tokens) > 1 && orgSuffixSet[tokens[len(tokens)-1]] {
		return tokens[:len(tokens)-1]
	}
	return tokens
}

func initials(tokens []string) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteByte(t[0])
	}
	return sb.String()
}

// dateVariation compares the digit sequences of two date texts.
// Field order is ignored, so reordered formats can compare wrongly;
// known limitation kept for compatibility with existing dedup output.
func dateVariation(a string, b string) bool {
	da := digitsOnly(a)
	db := digitsOnly(b)
	return da != "" && da == db
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
