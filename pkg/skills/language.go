package skills

import "strings"

// suffix conventions carried over from the skill authoring guide
var languageSuffixes = []struct {
	suffix   string
	language string
}{
	{"-py", "python"},
	{"-python", "python"},
	{"-ts", "typescript"},
	{"-dotnet", "csharp"},
	{"-java", "java"},
}

// LanguageForSkill derives the target language from a skill name suffix.
// Unsuffixed skills default to python.
func LanguageForSkill(name string) string {
	lower := strings.ToLower(name)
	for _, s := range languageSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.language
		}
	}
	return "python"
}
