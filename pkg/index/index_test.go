package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skilldex/pkg/corpus"
)

func buildTestCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	root := t.TempDir()

	skills := map[string]string{
		"strategy": "name: strategy\ndescription: Interchangeable algorithms behind one interface\ncategory: behavioral\n",
		"state":    "name: state\ndescription: State transitions drive behavior\ncategory: behavioral\n",
		"builder":  "name: builder\ndescription: Stepwise object construction\ncategory: creational\n",
	}
	for dir, frontmatter := range skills {
		skillDir := filepath.Join(root, dir)
		require.NoError(t, os.MkdirAll(skillDir, 0o755))
		content := "---\n" + frontmatter + "---\n\nBody.\n"
		require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
	}

	c, err := corpus.Load(context.Background(), root)
	require.NoError(t, err)
	return c
}

func TestBuild(t *testing.T) {
	idx := Build(buildTestCorpus(t))

	s, ok := idx.Skill("strategy")
	require.True(t, ok)
	assert.Equal(t, "strategy", s.ID)

	_, ok = idx.Skill("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"state", "strategy"}, idx.Category("behavioral"))
	assert.Equal(t, []string{"builder"}, idx.Category("creational"))
	assert.Empty(t, idx.Category("structural"))
	assert.Equal(t, []string{"behavioral", "creational"}, idx.Categories())
}

func TestCandidates(t *testing.T) {
	idx := Build(buildTestCorpus(t))

	tests := []struct {
		name     string
		tokens   []string
		expected []string
	}{
		{name: "single match", tokens: []string{"algorithms"}, expected: []string{"strategy"}},
		{name: "union across tokens", tokens: []string{"algorithms", "transitions"}, expected: []string{"state", "strategy"}},
		{name: "shared keyword", tokens: []string{"behavior"}, expected: []string{"state"}},
		{name: "no match", tokens: []string{"singleton"}, expected: []string{}},
		{name: "empty tokens", tokens: nil, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, idx.Candidates(tt.tokens))
		})
	}
}

func TestCandidatesDeterministic(t *testing.T) {
	c := buildTestCorpus(t)

	first := Build(c).Candidates([]string{"state", "strategy", "builder", "construction"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Build(c).Candidates([]string{"state", "strategy", "builder", "construction"}))
	}
}
