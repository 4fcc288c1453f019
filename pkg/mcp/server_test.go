package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skilldex/pkg/engine"
)

func writeSkill(t *testing.T, root, dir, frontmatter, body string) {
	t.Helper()
	skillDir := filepath.Join(root, filepath.FromSlash(dir))
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	content := "---\n" + frontmatter + "---\n\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
}

func testMCPServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	writeSkill(t, root, "strategy", "name: strategy\ndescription: Interchangeable algorithms behind one interface\n", "Use the strategy pattern.\n")
	refDir := filepath.Join(root, "strategy", "refs")
	require.NoError(t, os.MkdirAll(refDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(refDir, "examples.md"), []byte("Example one.\n"), 0o644))
	writeSkill(t, root, "state", "name: state\ndescription: State transitions drive behavior\n", "Use the state pattern.\n")

	eng, err := engine.New(engine.WithRoot(root))
	require.NoError(t, err)
	require.NoError(t, eng.Load(context.Background()))
	return NewServer(eng)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleListSkills(t *testing.T) {
	s := testMCPServer(t)

	result, err := s.handleListSkills(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "- state: State transitions drive behavior")
	assert.Contains(t, text, "- strategy: Interchangeable algorithms behind one interface (1 references)")
}

func TestHandleFindSkills(t *testing.T) {
	s := testMCPServer(t)

	result, err := s.handleFindSkills(context.Background(), callRequest(map[string]any{
		"query": "strategy interchangeable algorithms behind one interface",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "- strategy (score 1.00")
}

func TestHandleFindSkillsRequiresQuery(t *testing.T) {
	s := testMCPServer(t)

	result, err := s.handleFindSkills(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleFindSkillsNoMatch(t *testing.T) {
	s := testMCPServer(t)

	result, err := s.handleFindSkills(context.Background(), callRequest(map[string]any{
		"query": "unrelated topic entirely",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No matching skills")
}

func TestHandleLoadSkill(t *testing.T) {
	s := testMCPServer(t)

	result, err := s.handleLoadSkill(context.Background(), callRequest(map[string]any{
		"skill_id": "strategy",
		"budget":   float64(10),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "# Skill: strategy")
	assert.Contains(t, text, "Use the strategy pattern.")
}

func TestHandleLoadSkillSharedSessionCachesAcrossCalls(t *testing.T) {
	s := testMCPServer(t)
	args := map[string]any{"skill_id": "strategy", "budget": float64(10)}

	first, err := s.handleLoadSkill(context.Background(), callRequest(args))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, first), "# Skill: strategy")

	second, err := s.handleLoadSkill(context.Background(), callRequest(args))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, second), "[already loaded: strategy]")
}

func TestHandleLoadSkillUnknown(t *testing.T) {
	s := testMCPServer(t)

	result, err := s.handleLoadSkill(context.Background(), callRequest(map[string]any{
		"skill_id": "nope",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleReadReference(t *testing.T) {
	s := testMCPServer(t)

	result, err := s.handleReadReference(context.Background(), callRequest(map[string]any{
		"skill_id": "strategy",
		"pattern":  "refs/**",
		"budget":   float64(10),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "## Reference: refs/examples.md (strategy)")
	assert.Contains(t, text, "Example one.")
}

func TestHandleReadReferenceRequiresPattern(t *testing.T) {
	s := testMCPServer(t)

	result, err := s.handleReadReference(context.Background(), callRequest(map[string]any{
		"skill_id": "strategy",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSharedSessionRecreatedAfterReload(t *testing.T) {
	s := testMCPServer(t)
	ctx := context.Background()
	args := map[string]any{"skill_id": "strategy", "budget": float64(10)}

	first, err := s.handleLoadSkill(ctx, callRequest(args))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, first), "# Skill: strategy")

	require.NoError(t, s.engine.Reload(ctx))

	// The old shared session is gone; a fresh one discloses content again.
	second, err := s.handleLoadSkill(ctx, callRequest(args))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, second), "# Skill: strategy")
	assert.NotContains(t, resultText(t, second), "already loaded")
}
