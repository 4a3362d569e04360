package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillcheck/skillcheck/pkg/criteria"
	"github.com/skillcheck/skillcheck/pkg/suite"
)

func cosmosCriteria() *criteria.AcceptanceCriteria {
	return &criteria.AcceptanceCriteria{
		SkillName: "azure-cosmos-db-py",
		Language:  "python",
		Rules: []criteria.ValidationRule{
			{
				Name: "Client Construction",
				CorrectPatterns: []criteria.CodePattern{
					{
						Code:      "client = CosmosClient(url=endpoint, credential=credential)",
						Language:  "python",
						IsCorrect: true,
						Section:   "Client Construction",
					},
				},
				IncorrectPatterns: []criteria.CodePattern{
					{
						Code:      "client = CosmosClient(endpoint, master_key)",
						Language:  "python",
						IsCorrect: false,
						Section:   "Client Construction",
					},
				},
				RequiredImports:  []string{"azure.cosmos"},
				ForbiddenImports: []string{"pickle"},
			},
			{
				Name:             "Query Handling",
				RequiredPatterns: []string{"enable_cross_partition_query"},
			},
		},
	}
}

func TestEvaluateCleanSample(t *testing.T) {
	code := `from azure.cosmos import CosmosClient
client = CosmosClient(url=endpoint, credential=credential)
items = container.query_items(query, enable_cross_partition_query=True)
`
	result := New().Evaluate(cosmosCriteria(), code, nil)

	assert.True(t, result.Passed)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Equal(t, 0, result.WarningCount)
	assert.InDelta(t, 100, result.Score, 1e-9)
	assert.Contains(t, result.MatchedCorrect, "Client Construction")
	assert.Empty(t, result.MatchedIncorrect)
}

func TestEvaluateIncorrectPattern(t *testing.T) {
	code := `from azure.cosmos import CosmosClient
client = CosmosClient(endpoint, master_key)
items = container.query_items(query, enable_cross_partition_query=True)
`
	result := New().Evaluate(cosmosCriteria(), code, nil)

	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Contains(t, result.MatchedIncorrect, "Client Construction")

	var finding *Finding
	for i := range result.Findings {
		if result.Findings[i].Severity == SeverityError {
			finding = &result.Findings[i]
		}
	}
	require.NotNil(t, finding)
	assert.Equal(t, "Client Construction", finding.Rule)
	assert.Equal(t, 2, finding.Line)
	assert.Contains(t, finding.CodeSnippet, "master_key")
	// suggestion carries the paired correct example
	assert.Contains(t, finding.Suggestion, "url=endpoint")
}

func TestEvaluateExactMatchingForIncorrect(t *testing.T) {
	// similar but not identical line must not trigger the anti-pattern
	code := `from azure.cosmos import CosmosClient
client = CosmosClient(endpoint, credential=credential)
items = container.query_items(query, enable_cross_partition_query=True)
`
	result := New().Evaluate(cosmosCriteria(), code, nil)
	assert.Empty(t, result.MatchedIncorrect)
	assert.True(t, result.Passed)
}

func TestEvaluateForbiddenImport(t *testing.T) {
	code := `import pickle
from azure.cosmos import CosmosClient
client = CosmosClient(url=endpoint, credential=credential)
items = container.query_items(query, enable_cross_partition_query=True)
`
	result := New().Evaluate(cosmosCriteria(), code, nil)

	assert.False(t, result.Passed)
	require.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 1, result.Findings[0].Line)
	assert.Contains(t, result.Findings[0].Message, "pickle")
}

func TestEvaluateRequiredChecksWarnOnly(t *testing.T) {
	// misses the required import and the recommended query flag
	code := `client = CosmosClient(url=endpoint, credential=credential)`
	result := New().Evaluate(cosmosCriteria(), code, nil)

	assert.True(t, result.Passed, "warnings alone must not fail the run")
	assert.Equal(t, 0, result.ErrorCount)
	assert.Equal(t, 2, result.WarningCount)
	assert.InDelta(t, 90, result.Score, 1e-9)

	// exactly one warning per missing required item
	misses := map[string]int{}
	for _, f := range result.Findings {
		misses[f.Message]++
	}
	for msg, n := range misses {
		assert.Equal(t, 1, n, "duplicate warning: %s", msg)
	}
}

func TestEvaluateScoreSeventy(t *testing.T) {
	// one error (incorrect import matched exactly) plus one warning
	// (missing required pattern): 100 - 25 - 5 = 70
	crit := &criteria.AcceptanceCriteria{
		SkillName: "demo",
		Language:  "python",
		Rules: []criteria.ValidationRule{
			{
				Name:             "Serialization",
				ForbiddenImports: []string{"import pickle"},
				RequiredPatterns: []string{"json.dumps"},
			},
		},
	}
	code := "import pickle\ndata = pickle.dumps(payload)\n"
	result := New().Evaluate(crit, code, nil)

	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 1, result.WarningCount)
	assert.False(t, result.Passed)
	assert.InDelta(t, 70, result.Score, 1e-9)
}

func TestEvaluateScenarioChecks(t *testing.T) {
	crit := &criteria.AcceptanceCriteria{SkillName: "demo", Language: "python"}
	scenario := &suite.Scenario{
		Name:              "strict",
		Prompt:            "p",
		ExpectedPatterns:  []string{"CosmosClient", "query_items"},
		ForbiddenPatterns: []string{"eval("},
	}
	code := "result = eval(user_input)\nclient = CosmosClient(url)\n"
	result := New().Evaluate(crit, code, scenario)

	assert.Equal(t, "strict", result.Scenario)
	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.ErrorCount, "eval( present")
	assert.Equal(t, 1, result.WarningCount, "query_items missing")
}

func TestEvaluateEmptyCode(t *testing.T) {
	t.Run("zero rules passes", func(t *testing.T) {
		crit := &criteria.AcceptanceCriteria{SkillName: "docs-only", Language: "python"}
		result := New().Evaluate(crit, "", nil)

		assert.True(t, result.Passed)
		assert.InDelta(t, 100, result.Score, 1e-9)
		assert.Empty(t, result.Findings)
	})

	t.Run("required checks flag empty output", func(t *testing.T) {
		result := New().Evaluate(cosmosCriteria(), "", nil)

		assert.False(t, result.Passed)
		require.NotEmpty(t, result.Findings)
		assert.Equal(t, "empty-output", result.Findings[0].Rule)
		assert.Equal(t, SeverityError, result.Findings[0].Severity)
	})

	t.Run("whitespace only is empty", func(t *testing.T) {
		result := New().Evaluate(cosmosCriteria(), "  \n\t\n", nil)
		assert.False(t, result.Passed)
	})
}

func TestEvaluateIdempotent(t *testing.T) {
	crit := cosmosCriteria()
	code := "client = CosmosClient(endpoint, master_key)\n"
	first := New().Evaluate(crit, code, nil)
	second := New().Evaluate(crit, code, nil)
	assert.Equal(t, first, second)
}

func TestEvaluateScoreClampedAtZero(t *testing.T) {
	crit := &criteria.AcceptanceCriteria{
		SkillName: "demo",
		Language:  "python",
		Rules: []criteria.ValidationRule{
			{
				Name:             "Bans",
				ForbiddenImports: []string{"pickle", "marshal", "shelve", "dill", "eval"},
			},
		},
	}
	code := "import pickle\nimport marshal\nimport shelve\nimport dill\nx = eval(y)\n"
	result := New().Evaluate(crit, code, nil)

	assert.Equal(t, 5, result.ErrorCount)
	assert.InDelta(t, 0, result.Score, 1e-9)
	assert.False(t, result.Passed)
}

func TestEvaluateCustomScoring(t *testing.T) {
	crit := &criteria.AcceptanceCriteria{
		SkillName: "demo",
		Language:  "python",
		Rules: []criteria.ValidationRule{
			{Name: "Bans", ForbiddenImports: []string{"pickle"}},
		},
	}
	e := New(WithScoring(ScoreConfig{MaxScore: 10, ErrorPenalty: 3, WarningPenalty: 1}))
	result := e.Evaluate(crit, "import pickle\n", nil)

	assert.InDelta(t, 7, result.Score, 1e-9)
	assert.False(t, result.Passed)
}

func TestEvaluateRegexPattern(t *testing.T) {
	crit := &criteria.AcceptanceCriteria{
		SkillName: "demo",
		Language:  "python",
		Rules: []criteria.ValidationRule{
			{
				Name:              "Secrets",
				ForbiddenPatterns: []string{`re:(?i)api_key\s*=\s*"`},
			},
		},
	}

	flagged := New().Evaluate(crit, `API_KEY = "sk-123"`, nil)
	assert.False(t, flagged.Passed)

	clean := New().Evaluate(crit, `api_key = os.environ["API_KEY"]`, nil)
	assert.True(t, clean.Passed)
}

func TestFindPatternLiteralByDefault(t *testing.T) {
	// unmarked patterns are substrings even when they would compile as a regex
	_, ok := findPattern("time0sleep(1)", "time.sleep")
	assert.False(t, ok, "dot must not act as a wildcard")

	idx, ok := findPattern("time.sleep(1)", "time.sleep")
	assert.True(t, ok)
	assert.Zero(t, idx)

	idx, ok = findPattern(`API_KEY = "x"`, `re:(?i)api_key\s*=`)
	assert.True(t, ok)
	assert.Zero(t, idx)

	// a marked pattern that fails to compile degrades to a literal
	idx, ok = findPattern("x = eval(input)", "re:eval(")
	assert.True(t, ok)
	assert.Equal(t, 4, idx)
}

func TestEvaluateFindingsGroupedByPhase(t *testing.T) {
	// anti-pattern errors across every rule precede required-check warnings,
	// regardless of rule order in the document
	crit := &criteria.AcceptanceCriteria{
		SkillName: "demo",
		Language:  "python",
		Rules: []criteria.ValidationRule{
			{Name: "Style", RequiredPatterns: []string{"logging.getLogger"}},
			{
				Name: "Serialization",
				IncorrectPatterns: []criteria.CodePattern{
					{Code: "data = pickle.dumps(payload_record)", Language: "python", Section: "Serialization"},
				},
			},
		},
	}
	result := New().Evaluate(crit, "data = pickle.dumps(payload_record)\n", nil)

	require.Len(t, result.Findings, 2)
	assert.Equal(t, SeverityError, result.Findings[0].Severity)
	assert.Equal(t, "Serialization", result.Findings[0].Rule)
	assert.Equal(t, SeverityWarning, result.Findings[1].Severity)
	assert.Equal(t, "Style", result.Findings[1].Rule)
}

func TestScoreMonotonicInFindings(t *testing.T) {
	crit := &criteria.AcceptanceCriteria{
		SkillName: "demo",
		Language:  "python",
		Rules: []criteria.ValidationRule{
			{Name: "Bans", ForbiddenImports: []string{"pickle", "marshal", "shelve"}},
		},
	}

	prev := 101.0
	samples := []string{
		"x = 1\n",
		"import pickle\n",
		"import pickle\nimport marshal\n",
		"import pickle\nimport marshal\nimport shelve\n",
	}
	for _, code := range samples {
		result := New().Evaluate(crit, code, nil)
		assert.LessOrEqual(t, result.Score, prev)
		assert.GreaterOrEqual(t, result.Score, 0.0)
		assert.LessOrEqual(t, result.Score, 100.0)
		prev = result.Score
	}
}

func TestNormalizeCode(t *testing.T) {
	code := "  client = CosmosClient(url)  \n# a comment\n\n  x  =  1\n"
	lines := normalizeCode(code, "python")
	require.Len(t, lines, 2)
	assert.Equal(t, "client = CosmosClient(url)", lines[0].normalized)
	assert.Equal(t, 1, lines[0].number)
	assert.Equal(t, "x = 1", lines[1].normalized)
	assert.Equal(t, 4, lines[1].number)
}

func TestNormalizeCodeCommentPrefixByLanguage(t *testing.T) {
	code := "// comment\nconst x = 1;\n# not a comment in ts\n"
	lines := normalizeCode(code, "typescript")
	require.Len(t, lines, 2)
	assert.Equal(t, "const x = 1;", lines[0].normalized)
}

func TestMatchPatternThresholds(t *testing.T) {
	sample := normalizeCode("client = CosmosClient(endpoint, master_key)\nitems = list(container.read_all_items())\n", "python")

	t.Run("short lines are ignored", func(t *testing.T) {
		m := matchPattern(sample, []string{"x = 1"}, true)
		assert.False(t, m.matched)
	})

	t.Run("single significant line must match", func(t *testing.T) {
		m := matchPattern(sample, []string{"client = CosmosClient(endpoint, master_key)"}, true)
		assert.True(t, m.matched)
		assert.Equal(t, 1, m.line)
	})

	t.Run("two significant lines must both match", func(t *testing.T) {
		m := matchPattern(sample, []string{
			"client = CosmosClient(endpoint, master_key)",
			"container.delete_item(item, partition_key)",
		}, true)
		assert.False(t, m.matched)
	})

	t.Run("three or more lines need two matches", func(t *testing.T) {
		m := matchPattern(sample, []string{
			"client = CosmosClient(endpoint, master_key)",
			"items = list(container.read_all_items())",
			"container.delete_item(item, partition_key)",
		}, true)
		assert.True(t, m.matched)
	})

	t.Run("flexible matching allows containment", func(t *testing.T) {
		m := matchPattern(sample, []string{"client = CosmosClient(endpoint"}, false)
		assert.True(t, m.matched)
	})
}

func TestMatchImports(t *testing.T) {
	sample := normalizeCode("from azure.cosmos import CosmosClient\nclient = CosmosClient(url)\n", "python")

	m := matchPattern(sample, []string{"from azure.cosmos import CosmosClient"}, true)
	assert.True(t, m.matched)
	assert.Equal(t, 1, m.line)

	m = matchPattern(sample, []string{"from azure.cosmos import PartitionKey"}, true)
	assert.False(t, m.matched)
}
