package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, dir, name, description string) string {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	content := "---\nname: " + name + "\ndescription: " + description + "\n---\n\n# " + name + "\n\nSome guidance.\n"
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
	return skillDir
}

func TestNewDiscovery(t *testing.T) {
	t.Run("with custom dirs", func(t *testing.T) {
		customDirs := []string{"/tmp/skills1", "/tmp/skills2"}
		discovery, err := NewDiscovery(WithSkillDirs(customDirs...))
		require.NoError(t, err)
		assert.Equal(t, customDirs, discovery.skillDirs)
	})

	t.Run("with base dir", func(t *testing.T) {
		discovery, err := NewDiscovery(WithBaseDir("/repo"))
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join("/repo", ".github", "skills")}, discovery.skillDirs)
	})
}

func TestDiscoverSkills(t *testing.T) {
	tmpDir := t.TempDir()

	dir1 := writeSkill(t, tmpDir, "azure-cosmos-py", "Cosmos DB Python SDK usage")
	writeSkill(t, tmpDir, "azure-search-ts", "Search TypeScript SDK usage")

	discovery, err := NewDiscovery(WithSkillDirs(tmpDir))
	require.NoError(t, err)

	found, err := discovery.DiscoverSkills()
	require.NoError(t, err)
	assert.Len(t, found, 2)

	cosmos, exists := found["azure-cosmos-py"]
	require.True(t, exists)
	assert.Equal(t, "azure-cosmos-py", cosmos.Name)
	assert.Equal(t, "Cosmos DB Python SDK usage", cosmos.Description)
	assert.Equal(t, dir1, cosmos.Directory)
	assert.Contains(t, cosmos.Content, "# azure-cosmos-py")
	assert.Equal(t, "python", cosmos.Language())
}

func TestDiscoverSkillsSkipsInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	// Missing frontmatter
	badDir := filepath.Join(tmpDir, "no-frontmatter")
	require.NoError(t, os.MkdirAll(badDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "SKILL.md"), []byte("# just a doc\n"), 0o644))

	// Missing description
	incompleteDir := filepath.Join(tmpDir, "incomplete")
	require.NoError(t, os.MkdirAll(incompleteDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(incompleteDir, "SKILL.md"), []byte("---\nname: incomplete\n---\nbody\n"), 0o644))

	writeSkill(t, tmpDir, "valid-skill", "works")

	discovery, err := NewDiscovery(WithSkillDirs(tmpDir))
	require.NoError(t, err)

	found, err := discovery.DiscoverSkills()
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, "valid-skill")
}

func TestDiscoverSkillsFromPlugins(t *testing.T) {
	tmpDir := t.TempDir()

	pluginSkills := filepath.Join(tmpDir, ".github", "plugins", "azure-sdk-python", "skills")
	require.NoError(t, os.MkdirAll(pluginSkills, 0o755))
	writeSkill(t, pluginSkills, "azure-eventhub-py", "Event Hubs Python SDK usage")

	discovery, err := NewDiscovery(WithBaseDir(tmpDir))
	require.NoError(t, err)

	found, err := discovery.DiscoverSkills()
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Contains(t, found, "azure-sdk-python/azure-eventhub-py")
}

func TestGetSkill(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "azure-servicebus-py", "Service Bus")

	discovery, err := NewDiscovery(WithSkillDirs(tmpDir))
	require.NoError(t, err)

	skill, err := discovery.GetSkill("azure-servicebus-py")
	require.NoError(t, err)
	assert.Equal(t, "azure-servicebus-py", skill.Name)

	_, err = discovery.GetSkill("nope")
	assert.Error(t, err)
}

func TestListSkillNamesSorted(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "zeta", "z")
	writeSkill(t, tmpDir, "alpha", "a")

	discovery, err := NewDiscovery(WithSkillDirs(tmpDir))
	require.NoError(t, err)

	names, err := discovery.ListSkillNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestFilterByPattern(t *testing.T) {
	all := map[string]*Skill{
		"azure-cosmos-py":  {Name: "azure-cosmos-py"},
		"azure-search-ts":  {Name: "azure-search-ts"},
		"fastapi-router":   {Name: "fastapi-router"},
		"azure-storage-py": {Name: "azure-storage-py"},
	}

	t.Run("empty pattern returns all", func(t *testing.T) {
		filtered, err := FilterByPattern(all, "")
		require.NoError(t, err)
		assert.Len(t, filtered, 4)
	})

	t.Run("glob selects matching skills", func(t *testing.T) {
		filtered, err := FilterByPattern(all, "azure-*-py")
		require.NoError(t, err)
		assert.Len(t, filtered, 2)
		assert.Contains(t, filtered, "azure-cosmos-py")
		assert.Contains(t, filtered, "azure-storage-py")
	})

	t.Run("exact name", func(t *testing.T) {
		filtered, err := FilterByPattern(all, "fastapi-router")
		require.NoError(t, err)
		assert.Len(t, filtered, 1)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := FilterByPattern(all, "[")
		assert.Error(t, err)
	})
}

func TestWithCriteria(t *testing.T) {
	tmpDir := t.TempDir()

	withDir := writeSkill(t, tmpDir, "with-criteria", "has criteria")
	require.NoError(t, os.MkdirAll(filepath.Join(withDir, "references"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(withDir, "references", "acceptance-criteria.md"), []byte("## Rule\n"), 0o644))

	writeSkill(t, tmpDir, "docs-only", "no criteria")

	discovery, err := NewDiscovery(WithSkillDirs(tmpDir))
	require.NoError(t, err)
	all, err := discovery.DiscoverSkills()
	require.NoError(t, err)

	filtered := WithCriteria(all)
	assert.Len(t, filtered, 1)
	assert.Contains(t, filtered, "with-criteria")
}

func TestLanguageForSkill(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"azure-cosmos-py", "python"},
		{"azure-search-ts", "typescript"},
		{"azure-storage-dotnet", "csharp"},
		{"azure-eventhub-java", "java"},
		{"podcast-generation", "python"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, LanguageForSkill(tt.name), tt.name)
	}
}
