// Package skills discovers SDK-usage skills on disk. A skill is a directory
// containing a SKILL.md file with YAML frontmatter describing it, an
// acceptance-criteria reference document, and optionally a scenario suite
// used to probe generated code against those criteria.
package skills

import "path/filepath"

const (
	skillFileName     = "SKILL.md"
	criteriaRelPath   = "references/acceptance-criteria.md"
	scenariosRelPath  = "tests/scenarios.yaml"
	defaultSkillsDir  = ".github/skills"
	defaultPluginsDir = ".github/plugins"
)

// Skill represents a discovered skill with its metadata
type Skill struct {
	Name        string // Unique name from frontmatter
	Description string // Brief description from frontmatter
	Directory   string // Full path to the skill directory
	Content     string // Full content of SKILL.md (body, not frontmatter)
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// CriteriaPath returns the path to the skill's acceptance criteria document.
// The file is not guaranteed to exist; documentation-only skills have none.
func (s *Skill) CriteriaPath() string {
	return filepath.Join(s.Directory, filepath.FromSlash(criteriaRelPath))
}

// ScenariosPath returns the path to the skill's scenario suite file.
func (s *Skill) ScenariosPath() string {
	return filepath.Join(s.Directory, filepath.FromSlash(scenariosRelPath))
}

// Language infers the skill's target language from its name suffix.
func (s *Skill) Language() string {
	return LanguageForSkill(s.Name)
}
