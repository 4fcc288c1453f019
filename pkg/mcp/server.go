// Package mcp exposes the retrieval engine over the Model Context Protocol
// so agent hosts can discover and progressively load skills as tools:
// find_skills ranks candidates, load_skill discloses an overview, and
// read_reference discloses reference documents on demand.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldex/pkg/engine"
	"github.com/jingkaihe/skilldex/pkg/hosttool"
	"github.com/jingkaihe/skilldex/pkg/resolver"
	"github.com/jingkaihe/skilldex/pkg/scorer"
	"github.com/jingkaihe/skilldex/pkg/version"
)

// Server wraps an MCP stdio server around the engine. When a tool call
// carries no session_id the server uses one shared conversation session,
// recreated transparently after a corpus reload invalidates it.
type Server struct {
	engine    *engine.Engine
	mcpServer *server.MCPServer

	mu             sync.Mutex
	defaultSession string
}

// NewServer creates the MCP server and registers its tools.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{engine: eng}

	s.mcpServer = server.NewMCPServer(
		"skilldex",
		version.Get().Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Discover and load skills progressively: find_skills to rank candidates, load_skill for an overview, read_reference for detail documents the overview points at."),
	)

	s.mcpServer.AddTool(mcp.NewTool("list_skills",
		mcp.WithDescription("List all available skills with their descriptions."),
	), s.handleListSkills)

	s.mcpServer.AddTool(mcp.NewTool("find_skills",
		mcp.WithDescription("Rank skills against a free-text query. Returns skill ids with scores and matched keywords."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text task context to match against")),
		mcp.WithString("hints", mcp.Description("Comma-separated skill ids to force to the top")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	), s.handleFindSkills)

	s.mcpServer.AddTool(mcp.NewTool("load_skill",
		mcp.WithDescription("Load a skill's overview. Repeated loads in one session return a cache marker instead of content."),
		mcp.WithString("skill_id", mcp.Required(), mcp.Description("The skill to load")),
		mcp.WithString("session_id", mcp.Description("Session identifier; omit to use the connection's shared session")),
		mcp.WithNumber("budget", mcp.Description("Maximum content size to disclose")),
	), s.handleLoadSkill)

	s.mcpServer.AddTool(mcp.NewTool("read_reference",
		mcp.WithDescription("Load reference documents of a skill by path or doublestar pattern, e.g. refs/**/*.md."),
		mcp.WithString("skill_id", mcp.Required(), mcp.Description("The skill owning the references")),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Reference path or pattern to disclose")),
		mcp.WithString("session_id", mcp.Description("Session identifier; omit to use the connection's shared session")),
		mcp.WithNumber("budget", mcp.Description("Maximum content size to disclose")),
	), s.handleReadReference)

	return s
}

// ServeStdio runs the server over stdin/stdout until the client hangs up.
func (s *Server) ServeStdio() error {
	return errors.Wrap(server.ServeStdio(s.mcpServer), "mcp server failed")
}

// sessionID returns the supplied session id, or the shared connection
// session, recreating it when a reload invalidated it.
func (s *Server) sessionID(supplied string) (string, error) {
	if supplied != "" {
		return supplied, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.defaultSession != "" {
		if sess, err := s.engine.Session(s.defaultSession); err == nil && !sess.Invalidated() {
			return s.defaultSession, nil
		}
	}
	sess := s.engine.NewSession()
	s.defaultSession = sess.ID()
	return s.defaultSession, nil
}

func (s *Server) handleListSkills(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	skills, err := s.engine.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	for _, skill := range skills {
		sb.WriteString(fmt.Sprintf("- %s: %s (%d references)\n", skill.ID, skill.Description, len(skill.References)))
	}
	if sb.Len() == 0 {
		sb.WriteString("No skills are available.\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleFindSkills(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	matches, err := s.engine.Match(ctx, scorer.Query{
		Text:  query,
		Hints: splitHints(args["hints"]),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if limit := intArg(args, "limit"); limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	if len(matches) == 0 {
		return mcp.NewToolResultText("No matching skills.\n"), nil
	}

	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(fmt.Sprintf("- %s (score %.2f", m.SkillID, m.Score))
		if len(m.MatchedKeywords) > 0 {
			sb.WriteString(", matched: " + strings.Join(m.MatchedKeywords, ", "))
		}
		sb.WriteString(")\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleLoadSkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	skillID, _ := args["skill_id"].(string)
	if skillID == "" {
		return mcp.NewToolResultError("skill_id is required"), nil
	}

	return s.resolve(ctx, args, skillID, nil)
}

func (s *Server) handleReadReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	skillID, _ := args["skill_id"].(string)
	if skillID == "" {
		return mcp.NewToolResultError("skill_id is required"), nil
	}
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return mcp.NewToolResultError("pattern is required"), nil
	}

	return s.resolve(ctx, args, skillID, []string{pattern})
}

func (s *Server) resolve(ctx context.Context, args map[string]any, skillID string, refPatterns []string) (*mcp.CallToolResult, error) {
	matches, err := s.engine.Match(ctx, scorer.Query{Hints: []string{skillID}})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("unknown skill '%s'", skillID)), nil
	}

	suppliedSession, _ := args["session_id"].(string)
	sessionID, err := s.sessionID(suppliedSession)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved, err := s.engine.Resolve(ctx, sessionID, resolver.Request{
		Matches:     matches[:1],
		RefPatterns: refPatterns,
		Budget:      intArg(args, "budget"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(hosttool.Render(resolved)), nil
}

func splitHints(v any) []string {
	raw, _ := v.(string)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	hints := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			hints = append(hints, trimmed)
		}
	}
	return hints
}

func intArg(args map[string]any, key string) int {
	if f, ok := args[key].(float64); ok {
		return int(f)
	}
	return 0
}
