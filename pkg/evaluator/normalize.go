package evaluator

import "strings"

// minSignificantLine is the shortest normalized line worth matching on.
// Shorter lines (closing braces, bare returns) are too generic and would
// match almost any sample.
const minSignificantLine = 15

// codeLine is one normalized line of the sample under evaluation, keeping
// enough provenance to report where a match occurred.
type codeLine struct {
	normalized string
	original   string
	number     int
}

// commentPrefix returns the line-comment marker for a language. Block
// comments are not stripped; example patterns in criteria documents use
// line comments almost exclusively.
func commentPrefix(language string) string {
	switch strings.ToLower(language) {
	case "python", "py", "ruby", "shell", "bash", "yaml":
		return "#"
	default:
		return "//"
	}
}

// normalizeLine collapses internal whitespace runs to single spaces
func normalizeLine(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// normalizeCode splits a code sample into normalized lines, dropping
// blanks and comment-only lines, preserving original text and 1-based
// line numbers.
func normalizeCode(code, language string) []codeLine {
	prefix := commentPrefix(language)
	var lines []codeLine
	for i, raw := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, prefix) {
			continue
		}
		lines = append(lines, codeLine{
			normalized: normalizeLine(trimmed),
			original:   raw,
			number:     i + 1,
		})
	}
	return lines
}

// normalizePattern reduces a pattern snippet to its normalized
// non-comment lines.
func normalizePattern(code, language string) []string {
	var lines []string
	for _, line := range normalizeCode(code, language) {
		lines = append(lines, line.normalized)
	}
	return lines
}

// isImportLine reports whether a normalized line is an import statement
// in any of the supported languages.
func isImportLine(line string) bool {
	return strings.HasPrefix(line, "import ") ||
		strings.HasPrefix(line, "from ") ||
		strings.HasPrefix(line, "using ")
}

// match is the outcome of testing one pattern against the sample
type match struct {
	matched bool
	excerpt string
	line    int
}

// matchPattern tests a pattern's normalized lines against the sample.
// Import-only patterns require an exact import statement match. Other
// patterns match line-by-line: exact equality for incorrect patterns
// (so `url=` does not accidentally match `endpoint=`), containment
// either way for correct patterns (to allow formatting variations and
// extra arguments).
func matchPattern(sample []codeLine, patternLines []string, exact bool) match {
	if len(patternLines) == 0 {
		return match{}
	}

	if isImportLine(patternLines[0]) {
		return matchImports(sample, patternLines)
	}

	var significant []string
	for _, line := range patternLines {
		if len(line) >= minSignificantLine {
			significant = append(significant, line)
		}
	}
	if len(significant) == 0 {
		return match{}
	}

	matched := 0
	var first *codeLine
	for _, patternLine := range significant {
		for i := range sample {
			if linesMatch(patternLine, sample[i].normalized, exact) {
				matched++
				if first == nil {
					first = &sample[i]
				}
				break
			}
		}
	}

	// Short patterns must match fully; longer ones tolerate drift as
	// long as at least two lines line up.
	ok := false
	if len(significant) <= 2 {
		ok = matched >= 1 && matched == len(significant)
	} else {
		ok = matched >= 2
	}
	if !ok || first == nil {
		return match{}
	}

	return match{
		matched: true,
		excerpt: strings.TrimSpace(first.original),
		line:    first.number,
	}
}

func linesMatch(pattern, code string, exact bool) bool {
	if exact {
		return pattern == code
	}
	return strings.Contains(code, pattern) || strings.Contains(pattern, code)
}

// matchImports requires an exact normalized match between one of the
// pattern's import statements and an import statement in the sample.
func matchImports(sample []codeLine, patternLines []string) match {
	for _, patternLine := range patternLines {
		if !isImportLine(patternLine) {
			continue
		}
		for i := range sample {
			if !isImportLine(sample[i].normalized) {
				continue
			}
			if sample[i].normalized == patternLine {
				return match{
					matched: true,
					excerpt: strings.TrimSpace(sample[i].original),
					line:    sample[i].number,
				}
			}
		}
	}
	return match{}
}

// lineOfIndex returns the 1-based line number containing byte offset idx
func lineOfIndex(code string, idx int) int {
	if idx < 0 || idx > len(code) {
		return 0
	}
	return strings.Count(code[:idx], "\n") + 1
}
