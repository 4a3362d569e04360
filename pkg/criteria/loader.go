package criteria

import (
	"bytes"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/skillcheck/skillcheck/pkg/skills"
)

// Loader parses acceptance criteria markdown documents.
//
// A document is a sequence of H2-delimited sections. Fenced code blocks
// carrying a recognized correctness marker (on an adjacent subheading or
// caption, or inherited from the section's dominant polarity) become
// CodePatterns; "must / must not" statement lines with a backtick-quoted
// token become required/forbidden imports and patterns. Everything else is
// prose and is deliberately ignored.
type Loader struct {
	markers *Markers
	phrases []requirementPhrase
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithMarkers overrides the default correctness marker vocabulary
func WithMarkers(m *Markers) LoaderOption {
	return func(l *Loader) {
		l.markers = m
	}
}

// NewLoader creates a Loader with the default vocabularies
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		markers: DefaultMarkers(),
		phrases: defaultRequirementPhrases(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and parses the criteria document for a skill.
// Returns *NotFoundError when the path does not resolve and *ParseError
// when the content cannot be parsed.
func (l *Loader) Load(skillName, path string) (*AcceptanceCriteria, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, &ParseError{Path: path, Reason: "unreadable document", Err: err}
	}
	return l.Parse(skillName, path, content)
}

// Parse parses criteria document content.
// A document with zero extractable patterns yields an AcceptanceCriteria
// with an empty rule list; that is valid for documentation-only skills.
func (l *Loader) Parse(skillName, path string, content []byte) (*AcceptanceCriteria, error) {
	if bytes.ContainsRune(content, 0) {
		return nil, &ParseError{Path: path, Reason: "document is not text"}
	}

	criteria := &AcceptanceCriteria{
		SkillName:  skillName,
		SourcePath: path,
		Language:   skills.LanguageForSkill(skillName),
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(content))

	var sections []*sectionState
	current := newSectionState("") // preamble

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := nodeText(node, content)
			if node.Level <= 2 {
				sections = append(sections, current)
				current = newSectionState(title)
				continue
			}
			// Subheadings carry correctness markers for the blocks below them
			if polarity, ok := l.markers.Classify(title); ok {
				current.setPending(polarity)
			} else {
				current.clearPending()
			}
			current.text.WriteString(title + "\n")

		case *ast.FencedCodeBlock:
			lang := string(node.Language(content))
			if lang == "" {
				lang = criteria.Language
			}
			current.patterns = append(current.patterns, pendingPattern{
				pattern: CodePattern{
					Code:     codeBlockText(node, content),
					Language: lang,
					Section:  current.title,
				},
				polarity:      current.pending,
				polarityKnown: current.pendingKnown,
			})

		default:
			raw := rawText(n, content)
			if raw == "" {
				continue
			}
			current.text.WriteString(raw)
			if current.description == "" && n.Kind() == ast.KindParagraph {
				current.description = strings.TrimSpace(raw)
			}
			for _, line := range strings.Split(raw, "\n") {
				if kind, token, ok := parseRequirement(line, l.phrases); ok {
					current.requirements = append(current.requirements, requirement{kind: kind, token: token})
				}
			}
			// Captions such as "❌ Don't do this:" mark the next block
			if polarity, ok := l.markers.Classify(raw); ok {
				current.setPending(polarity)
			} else {
				current.clearPending()
			}
		}
	}
	sections = append(sections, current)

	for _, section := range sections {
		l.finalizeSection(criteria, section)
	}

	return criteria, nil
}

type requirement struct {
	kind  RequirementKind
	token string
}

type pendingPattern struct {
	pattern       CodePattern
	polarity      Polarity
	polarityKnown bool
}

type sectionState struct {
	title        string
	description  string
	text         strings.Builder
	patterns     []pendingPattern
	requirements []requirement
	pending      Polarity
	pendingKnown bool
}

func newSectionState(title string) *sectionState {
	return &sectionState{title: title}
}

func (s *sectionState) setPending(p Polarity) {
	s.pending = p
	s.pendingKnown = true
}

func (s *sectionState) clearPending() {
	s.pendingKnown = false
}

// non-rule sections are reference prose, never checks
var skipSectionTitles = []string{"overview", "introduction", "quick reference"}

func (l *Loader) finalizeSection(criteria *AcceptanceCriteria, section *sectionState) {
	lowerTitle := strings.ToLower(section.title)
	for _, skip := range skipSectionTitles {
		if strings.Contains(lowerTitle, skip) {
			return
		}
	}

	bias, biasKnown := l.markers.Bias(section.text.String())

	ruleName := section.title
	if ruleName == "" {
		ruleName = "General"
	}
	rule := ValidationRule{
		Name:        ruleName,
		Description: section.description,
	}

	for _, pp := range section.patterns {
		polarity, known := pp.polarity, pp.polarityKnown
		if !known {
			polarity, known = bias, biasKnown
		}
		if !known {
			// No recognizable marker anywhere near the block: INFO-only
			// context, excluded from matching.
			continue
		}
		pattern := pp.pattern
		pattern.IsCorrect = polarity == PolarityCorrect
		if pattern.IsCorrect {
			rule.CorrectPatterns = append(rule.CorrectPatterns, pattern)
		} else {
			rule.IncorrectPatterns = append(rule.IncorrectPatterns, pattern)
		}
	}

	for _, req := range section.requirements {
		switch req.kind {
		case RequiredImport:
			rule.RequiredImports = append(rule.RequiredImports, req.token)
		case ForbiddenImport:
			rule.ForbiddenImports = append(rule.ForbiddenImports, req.token)
		case RequiredPattern:
			rule.RequiredPatterns = append(rule.RequiredPatterns, req.token)
		case ForbiddenPattern:
			rule.ForbiddenPatterns = append(rule.ForbiddenPatterns, req.token)
		}
	}

	normalizeRule(&rule)

	if len(rule.CorrectPatterns) == 0 && len(rule.IncorrectPatterns) == 0 &&
		len(rule.RequiredImports) == 0 && len(rule.ForbiddenImports) == 0 &&
		len(rule.RequiredPatterns) == 0 && len(rule.ForbiddenPatterns) == 0 {
		return
	}

	criteria.Rules = append(criteria.Rules, rule)
	criteria.CorrectPatterns = append(criteria.CorrectPatterns, rule.CorrectPatterns...)
	criteria.IncorrectPatterns = append(criteria.IncorrectPatterns, rule.IncorrectPatterns...)
}

// normalizeRule enforces the rule invariants: correct and incorrect pattern
// sets are disjoint by content, and required/forbidden sets do not overlap.
// On conflict the incorrect/forbidden classification wins, since it is the
// stronger claim.
func normalizeRule(rule *ValidationRule) {
	incorrect := make(map[string]bool, len(rule.IncorrectPatterns))
	for _, p := range rule.IncorrectPatterns {
		incorrect[strings.TrimSpace(p.Code)] = true
	}
	kept := rule.CorrectPatterns[:0]
	for _, p := range rule.CorrectPatterns {
		if !incorrect[strings.TrimSpace(p.Code)] {
			kept = append(kept, p)
		}
	}
	rule.CorrectPatterns = kept

	rule.RequiredImports = subtract(dedupe(rule.RequiredImports), rule.ForbiddenImports)
	rule.ForbiddenImports = dedupe(rule.ForbiddenImports)
	rule.RequiredPatterns = subtract(dedupe(rule.RequiredPatterns), rule.ForbiddenPatterns)
	rule.ForbiddenPatterns = dedupe(rule.ForbiddenPatterns)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func subtract(values, remove []string) []string {
	removed := make(map[string]bool, len(remove))
	for _, v := range remove {
		removed[v] = true
	}
	out := values[:0]
	for _, v := range values {
		if !removed[v] {
			out = append(out, v)
		}
	}
	return out
}

// nodeText collects the plain text content of a node's inline children
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// rawText collects the raw source lines of paragraph-like blocks under a
// node, preserving backticks so requirement tokens survive extraction
func rawText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c.Kind() {
		case ast.KindParagraph, ast.KindTextBlock:
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func codeBlockText(fc *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := fc.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return strings.TrimRight(buf.String(), "\n")
}
