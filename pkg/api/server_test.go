package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skilldex/pkg/engine"
)

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  ServerConfig
		wantErr bool
	}{
		{name: "valid", config: ServerConfig{Host: "localhost", Port: 8334}},
		{name: "empty host", config: ServerConfig{Port: 8334}, wantErr: true},
		{name: "port too low", config: ServerConfig{Host: "localhost", Port: 0}, wantErr: true},
		{name: "port too high", config: ServerConfig{Host: "localhost", Port: 70000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func writeSkill(t *testing.T, root, dir, frontmatter, body string) {
	t.Helper()
	skillDir := filepath.Join(root, filepath.FromSlash(dir))
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	content := "---\n" + frontmatter + "---\n\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
}

func testServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	writeSkill(t, root, "strategy", "name: strategy\ndescription: Interchangeable algorithms behind one interface\ncategory: behavioral\n", "Use the strategy pattern.\nPrefer composition.\n")
	writeSkill(t, root, "state", "name: state\ndescription: State transitions drive behavior\n", "Use the state pattern.\n")

	eng, err := engine.New(engine.WithRoot(root))
	require.NoError(t, err)
	require.NoError(t, eng.Load(context.Background()))

	srv, err := NewServer(&ServerConfig{Host: "localhost", Port: 8334}, eng, nil)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestListSkills(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, "GET", "/api/skills", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	skills := decodeBody(t, rec)["skills"].([]any)
	require.Len(t, skills, 2)
	first := skills[0].(map[string]any)
	assert.Equal(t, "state", first["id"])
}

func TestGetSkill(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, "GET", "/api/skills/strategy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "strategy", body["id"])
	assert.Equal(t, "behavioral", body["category"])
	assert.Contains(t, body["overview"], "strategy pattern")

	rec = doJSON(t, srv, "GET", "/api/skills/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatch(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, "POST", "/api/match", map[string]any{
		"query": "interchangeable algorithms behind one interface",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decodeBody(t, rec)["matches"].([]any)
	require.NotEmpty(t, matches)
	assert.Equal(t, "strategy", matches[0].(map[string]any)["skillId"])
}

func TestMatchHintAndLimit(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, "POST", "/api/match", map[string]any{
		"query": "state transitions",
		"hints": []string{"strategy"},
		"limit": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decodeBody(t, rec)["matches"].([]any)
	require.Len(t, matches, 1)
	first := matches[0].(map[string]any)
	assert.Equal(t, "strategy", first["skillId"])
	assert.Equal(t, true, first["hinted"])
}

func TestMatchInvalidBody(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest("POST", "/api/match", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycleAndResolve(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, "POST", "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decodeBody(t, rec)["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	resolveReq := map[string]any{
		"sessionId": sessionID,
		"hints":     []string{"strategy"},
		"budget":    10,
		"limit":     1,
	}

	rec = doJSON(t, srv, "POST", "/api/resolve", resolveReq)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	blocks := body["blocks"].([]any)
	require.Len(t, blocks, 1)
	assert.Equal(t, "overview", blocks[0].(map[string]any)["kind"])
	assert.Equal(t, false, body["budgetExceeded"])

	// Second resolve against the same session reports a cache hit.
	rec = doJSON(t, srv, "POST", "/api/resolve", resolveReq)
	require.Equal(t, http.StatusOK, rec.Code)
	blocks = decodeBody(t, rec)["blocks"].([]any)
	require.Len(t, blocks, 1)
	assert.Equal(t, "cache-hit", blocks[0].(map[string]any)["kind"])

	rec = doJSON(t, srv, "DELETE", "/api/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, "POST", "/api/resolve", resolveReq)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveBudgetExceeded(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, "POST", "/api/resolve", map[string]any{
		"hints":  []string{"strategy"},
		"budget": 1,
		"limit":  1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["budgetExceeded"])
	assert.Empty(t, body["blocks"])
}

func TestReload(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, "POST", "/api/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reloaded", decodeBody(t, rec)["status"])
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest("OPTIONS", "/api/skills", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
