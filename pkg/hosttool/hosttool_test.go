package hosttool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skilldex/pkg/engine"
	"github.com/jingkaihe/skilldex/pkg/resolver"
)

func writeSkill(t *testing.T, root, dir, frontmatter, body string) {
	t.Helper()
	skillDir := filepath.Join(root, filepath.FromSlash(dir))
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	content := "---\n" + frontmatter + "---\n\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
}

func testTool(t *testing.T) *Tool {
	t.Helper()
	root := t.TempDir()
	writeSkill(t, root, "strategy", "name: strategy\ndescription: Interchangeable algorithms behind one interface\ncategory: behavioral\n", "Use the strategy pattern.\nSee [examples](refs/examples.md).\n")
	refDir := filepath.Join(root, "strategy", "refs")
	require.NoError(t, os.MkdirAll(refDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(refDir, "examples.md"), []byte("Example one.\nExample two.\n"), 0o644))
	writeSkill(t, root, "state", "name: state\ndescription: State transitions drive behavior\n", "Use the state pattern.\n")

	eng, err := engine.New(engine.WithRoot(root))
	require.NoError(t, err)
	require.NoError(t, eng.Load(context.Background()))
	return New(eng)
}

func TestName(t *testing.T) {
	assert.Equal(t, "skill", testTool(t).Name())
}

func TestDescriptionListsCatalog(t *testing.T) {
	desc := testTool(t).Description()
	assert.Contains(t, desc, "### strategy")
	assert.Contains(t, desc, "Interchangeable algorithms behind one interface")
	assert.Contains(t, desc, "**Category**: behavioral")
	assert.Contains(t, desc, "### state")
}

func TestGenerateSchema(t *testing.T) {
	schema := testTool(t).GenerateSchema()
	require.NotNil(t, schema)
	_, ok := schema.Properties.Get("skill_id")
	assert.True(t, ok)
	_, ok = schema.Properties.Get("refs")
	assert.True(t, ok)
}

func TestValidateInput(t *testing.T) {
	tool := testTool(t)

	tests := []struct {
		name       string
		parameters string
		wantErr    string
	}{
		{name: "valid", parameters: `{"skill_id": "strategy"}`},
		{name: "missing skill_id", parameters: `{}`, wantErr: "skill_id is required"},
		{name: "unknown skill", parameters: `{"skill_id": "nope"}`, wantErr: "Available skills: state, strategy"},
		{name: "malformed json", parameters: `{`, wantErr: "invalid input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tool.ValidateInput(tt.parameters)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestExecuteOverview(t *testing.T) {
	tool := testTool(t)

	out, err := tool.Execute(context.Background(), `{"skill_id": "strategy", "budget": 10}`)
	require.NoError(t, err)
	assert.Contains(t, out, "# Skill: strategy")
	assert.Contains(t, out, "Use the strategy pattern.")
	assert.Contains(t, out, "References available on request: refs/examples.md")
	assert.Contains(t, out, "Budget: 2/10 lines consumed")
}

func TestExecuteWithRefs(t *testing.T) {
	tool := testTool(t)

	out, err := tool.Execute(context.Background(), `{"skill_id": "strategy", "refs": ["refs/**"], "budget": 10}`)
	require.NoError(t, err)
	assert.Contains(t, out, "## Reference: refs/examples.md (strategy)")
	assert.Contains(t, out, "Example one.")
	assert.Contains(t, out, "Budget: 4/10 lines consumed")
}

func TestExecuteCacheHit(t *testing.T) {
	tool := testTool(t)
	sess := tool.engine.NewSession()
	params := `{"skill_id": "strategy", "session_id": "` + sess.ID() + `", "budget": 10}`

	first, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.Contains(t, first, "# Skill: strategy")

	second, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.Contains(t, second, "[already loaded: strategy]")
	assert.NotContains(t, second, "Use the strategy pattern.")
}

func TestExecuteBudgetExhausted(t *testing.T) {
	tool := testTool(t)

	out, err := tool.Execute(context.Background(), `{"skill_id": "strategy", "budget": 1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "budget exhausted")
}

func TestRenderCacheHitReference(t *testing.T) {
	out := Render(&resolver.ResolvedContent{
		Blocks: []resolver.Block{
			{Kind: resolver.KindCacheHit, SkillID: "strategy", RefPath: "refs/examples.md"},
		},
		Consumed: 0,
		Budget:   10,
		Unit:     "lines",
	})
	assert.Contains(t, out, "[already loaded: strategy refs/examples.md]")
	assert.Contains(t, out, "Budget: 0/10 lines consumed")
}
