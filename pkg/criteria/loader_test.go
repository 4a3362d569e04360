package criteria

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cosmosCriteria = `# Acceptance Criteria

## Overview

Reference prose that must never produce rules.

` + "```python\nprint('context only')\n```" + `

## Client Construction

Build one client per process and reuse it.

Must import ` + "`from azure.cosmos import CosmosClient`" + ` in every sample.
Never use ` + "`CosmosClient(url=`" + ` positional construction.

### ✅ Correct

` + "```python\nclient = CosmosClient(endpoint, credential=credential)\ndatabase = client.get_database_client(database_name)\n```" + `

### ❌ Incorrect

` + "```python\nclient = CosmosClient(url=endpoint, key=master_key)\ndatabase = client.get_database_client(database_name)\n```" + `

## Query Handling

❌ Don't enumerate cross-partition queries eagerly:

` + "```python\nitems = list(container.query_items(query, enable_cross_partition_query=True))\nresults = [item for item in items]\n```" + `

✅ Stream the iterator instead:

` + "```python\nfor item in container.query_items(query, partition_key=pk):\n    process(item)\n```" + `

## Notes

A block with no marker anywhere nearby:

` + "```python\nunmarked_helper()\n```" + `

Unrelated discussion text.
`

func TestLoadParsesRulesAndPatterns(t *testing.T) {
	loader := NewLoader()
	dir := t.TempDir()
	path := filepath.Join(dir, "acceptance-criteria.md")
	require.NoError(t, os.WriteFile(path, []byte(cosmosCriteria), 0o644))

	criteria, err := loader.Load("azure-cosmos-py", path)
	require.NoError(t, err)

	assert.Equal(t, "azure-cosmos-py", criteria.SkillName)
	assert.Equal(t, path, criteria.SourcePath)
	assert.Equal(t, "python", criteria.Language)

	require.Len(t, criteria.Rules, 2)

	construction := criteria.Rule("Client Construction")
	require.NotNil(t, construction)
	assert.Equal(t, "Build one client per process and reuse it.", construction.Description)
	require.Len(t, construction.CorrectPatterns, 1)
	require.Len(t, construction.IncorrectPatterns, 1)
	assert.True(t, construction.CorrectPatterns[0].IsCorrect)
	assert.False(t, construction.IncorrectPatterns[0].IsCorrect)
	assert.Contains(t, construction.CorrectPatterns[0].Code, "credential=credential")
	assert.Contains(t, construction.IncorrectPatterns[0].Code, "url=endpoint")
	assert.Equal(t, "Client Construction", construction.IncorrectPatterns[0].Section)
	assert.Equal(t, "python", construction.CorrectPatterns[0].Language)

	assert.Equal(t, []string{"from azure.cosmos import CosmosClient"}, construction.RequiredImports)
	assert.Equal(t, []string{"CosmosClient(url="}, construction.ForbiddenPatterns)

	query := criteria.Rule("Query Handling")
	require.NotNil(t, query)
	require.Len(t, query.IncorrectPatterns, 1)
	require.Len(t, query.CorrectPatterns, 1)
	assert.Contains(t, query.IncorrectPatterns[0].Code, "enable_cross_partition_query")

	// Flattened unions across rules
	assert.Len(t, criteria.CorrectPatterns, 2)
	assert.Len(t, criteria.IncorrectPatterns, 2)
}

func TestLoadExcludesOverviewAndUnmarkedBlocks(t *testing.T) {
	loader := NewLoader()
	criteria, err := loader.Parse("azure-cosmos-py", "criteria.md", []byte(cosmosCriteria))
	require.NoError(t, err)

	assert.Nil(t, criteria.Rule("Overview"))
	assert.Nil(t, criteria.Rule("Notes"))
	for _, p := range append(criteria.CorrectPatterns, criteria.IncorrectPatterns...) {
		assert.NotContains(t, p.Code, "context only")
		assert.NotContains(t, p.Code, "unmarked_helper")
	}
}

func TestLoadNotFound(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load("azure-cosmos-py", filepath.Join(t.TempDir(), "missing.md"))

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, notFound.Path, "missing.md")
}

func TestParseRejectsBinaryContent(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Parse("skill", "bin.md", []byte{0x00, 0x01, 0x02})

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseEmptyDocumentYieldsEmptyCriteria(t *testing.T) {
	loader := NewLoader()
	criteria, err := loader.Parse("docs-only-skill", "doc.md", []byte("# Title\n\nJust prose, no examples.\n"))
	require.NoError(t, err)

	assert.True(t, criteria.Empty())
	assert.Empty(t, criteria.CorrectPatterns)
	assert.Empty(t, criteria.IncorrectPatterns)
	assert.Zero(t, criteria.RequiredCheckCount())
}

func TestSectionBiasClassifiesUnlabelledBlocks(t *testing.T) {
	doc := `## Anti-pattern Gallery

❌ All of these are wrong. ❌

` + "```python\nfirst_bad_example = connect(insecure=True)\n```" + `

` + "```python\nsecond_bad_example = connect(verify=False)\n```" + `
`

	loader := NewLoader()
	criteria, err := loader.Parse("sec-skill", "doc.md", []byte(doc))
	require.NoError(t, err)

	require.Len(t, criteria.Rules, 1)
	// First block follows the ❌ caption, second inherits the section bias.
	assert.Len(t, criteria.Rules[0].IncorrectPatterns, 2)
	assert.Empty(t, criteria.Rules[0].CorrectPatterns)
}

func TestCustomMarkerVocabulary(t *testing.T) {
	doc := `## Rule

### AVOID

` + "```go\nfmt.Println(\"avoid this\")\n```" + `

### PREFER

` + "```go\nlog.Info(\"prefer this\")\n```" + `
`

	markers := &Markers{
		Correct:   []string{"PREFER"},
		Incorrect: []string{"AVOID"},
	}
	loader := NewLoader(WithMarkers(markers))

	criteria, err := loader.Parse("custom-skill", "doc.md", []byte(doc))
	require.NoError(t, err)

	require.Len(t, criteria.Rules, 1)
	assert.Len(t, criteria.Rules[0].IncorrectPatterns, 1)
	assert.Len(t, criteria.Rules[0].CorrectPatterns, 1)
	assert.Equal(t, "go", criteria.Rules[0].CorrectPatterns[0].Language)
}

func TestRequirementStatements(t *testing.T) {
	tests := []struct {
		line  string
		kind  RequirementKind
		token string
		ok    bool
	}{
		{"Must import `from azure.identity import DefaultAzureCredential`", RequiredImport, "from azure.identity import DefaultAzureCredential", true},
		{"- Must not import `pickle`", ForbiddenImport, "pickle", true},
		{"Never use `eval(` in generated code", ForbiddenPattern, "eval(", true},
		{"Always use `async with` for client lifetimes", RequiredPattern, "async with", true},
		{"Required: `DefaultAzureCredential`", RequiredPattern, "DefaultAzureCredential", true},
		{"Must use retries", 0, "", false}, // no backtick token: unencodable
		{"Consider using `helpers`", 0, "", false},
	}

	phrases := defaultRequirementPhrases()
	for _, tt := range tests {
		kind, token, ok := parseRequirement(tt.line, phrases)
		assert.Equal(t, tt.ok, ok, tt.line)
		if tt.ok {
			assert.Equal(t, tt.kind, kind, tt.line)
			assert.Equal(t, tt.token, token, tt.line)
		}
	}
}

func TestNormalizeRuleEnforcesDisjointSets(t *testing.T) {
	rule := ValidationRule{
		Name: "r",
		CorrectPatterns: []CodePattern{
			{Code: "shared()"},
			{Code: "only_correct()"},
		},
		IncorrectPatterns: []CodePattern{{Code: "shared()"}},
		RequiredImports:   []string{"os", "json", "json"},
		ForbiddenImports:  []string{"os"},
	}

	normalizeRule(&rule)

	require.Len(t, rule.CorrectPatterns, 1)
	assert.Equal(t, "only_correct()", rule.CorrectPatterns[0].Code)
	assert.Equal(t, []string{"json"}, rule.RequiredImports)
	assert.Equal(t, []string{"os"}, rule.ForbiddenImports)
}

func TestMarkersClassifyPrecedence(t *testing.T) {
	m := DefaultMarkers()

	polarity, ok := m.Classify("### ❌ Incorrect")
	assert.True(t, ok)
	assert.Equal(t, PolarityIncorrect, polarity)

	// Incorrect tokens win mixed captions
	polarity, ok = m.Classify("Correct vs Incorrect")
	assert.True(t, ok)
	assert.Equal(t, PolarityIncorrect, polarity)

	_, ok = m.Classify("plain heading")
	assert.False(t, ok)
}
