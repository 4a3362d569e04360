package criteria

import "strings"

// Polarity is the semantic role a correctness marker assigns to nearby
// example code.
type Polarity int

const (
	// PolarityCorrect marks examples demonstrating correct usage
	PolarityCorrect Polarity = iota
	// PolarityIncorrect marks anti-pattern examples
	PolarityIncorrect
)

// Markers is the vocabulary of correctness tokens the loader recognizes.
// The vocabulary is a lookup table rather than scattered string literals so
// that skills can introduce their own marker styles without parser changes.
type Markers struct {
	Correct   []string
	Incorrect []string
}

// DefaultMarkers returns the marker vocabulary observed across the curated
// skill documents.
func DefaultMarkers() *Markers {
	return &Markers{
		Correct:   []string{"✅", "Correct", "DO:", "Good"},
		Incorrect: []string{"❌", "Incorrect", "DON'T", "WRONG", "Bad", "Anti-pattern"},
	}
}

// Classify inspects a heading or caption adjacent to a code block.
// Incorrect markers take precedence, matching how authors caption
// anti-patterns inside otherwise positive sections.
func (m *Markers) Classify(text string) (Polarity, bool) {
	for _, token := range m.Incorrect {
		if strings.Contains(text, token) {
			return PolarityIncorrect, true
		}
	}
	for _, token := range m.Correct {
		if strings.Contains(text, token) {
			return PolarityCorrect, true
		}
	}
	return PolarityCorrect, false
}

// Bias estimates the dominant polarity of a whole section by counting
// marker occurrences. The second return is false when the section is mixed
// or carries no markers at all.
func (m *Markers) Bias(text string) (Polarity, bool) {
	correct, incorrect := 0, 0
	for _, token := range m.Correct {
		correct += strings.Count(text, token)
	}
	for _, token := range m.Incorrect {
		incorrect += strings.Count(text, token)
	}

	switch {
	case correct > incorrect:
		return PolarityCorrect, true
	case incorrect > correct:
		return PolarityIncorrect, true
	default:
		return PolarityCorrect, false
	}
}

// RequirementKind is the semantic role of a recognized imperative statement.
type RequirementKind int

const (
	// RequiredImport marks an import identifier that generated code should contain
	RequiredImport RequirementKind = iota
	// ForbiddenImport marks an import identifier that must not appear
	ForbiddenImport
	// RequiredPattern marks a textual or regex pattern that should appear
	RequiredPattern
	// ForbiddenPattern marks a textual or regex pattern that must not appear
	ForbiddenPattern
)

// requirementPhrase maps a leading imperative phrase to a requirement kind.
// Order matters: negated phrases must be tried before their positive prefixes.
type requirementPhrase struct {
	phrase string
	kind   RequirementKind
}

func defaultRequirementPhrases() []requirementPhrase {
	return []requirementPhrase{
		{"must not import", ForbiddenImport},
		{"never import", ForbiddenImport},
		{"must import", RequiredImport},
		{"always import", RequiredImport},
		{"required import:", RequiredImport},
		{"must not use", ForbiddenPattern},
		{"never use", ForbiddenPattern},
		{"do not use", ForbiddenPattern},
		{"forbidden:", ForbiddenPattern},
		{"must use", RequiredPattern},
		{"always use", RequiredPattern},
		{"required:", RequiredPattern},
	}
}

// parseRequirement recognizes one "must/must not" statement line.
// The requirement token is the first backtick-quoted span on the line;
// statements without one cannot be checked mechanically and are dropped.
func parseRequirement(line string, phrases []requirementPhrase) (RequirementKind, string, bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimLeft(trimmed, "-*+ \t")
	lower := strings.ToLower(trimmed)

	for _, p := range phrases {
		if !strings.HasPrefix(lower, p.phrase) {
			continue
		}
		token := backtickSpan(trimmed)
		if token == "" {
			return 0, "", false
		}
		return p.kind, token, true
	}
	return 0, "", false
}

func backtickSpan(s string) string {
	start := strings.IndexByte(s, '`')
	if start == -1 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '`')
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(s[start+1 : start+1+end])
}
