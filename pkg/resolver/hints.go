package resolver

import (
	"path"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/jingkaihe/skilldex/pkg/corpus"
)

// ReferenceHints extracts the reference paths a skill's overview links to.
// Only relative markdown links resolving to one of the skill's own
// reference documents count; external URLs and dangling links are ignored.
// The result is sorted and deduplicated. Hints tell the caller what it may
// request next; they never trigger a load by themselves.
func ReferenceHints(skill *corpus.Skill) []string {
	src := []byte(skill.Overview)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	seen := make(map[string]struct{})
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}

		dest := normalizeLink(string(link.Destination))
		if dest == "" {
			return ast.WalkContinue, nil
		}
		if _, ok := skill.Reference(dest); ok {
			seen[dest] = struct{}{}
		}
		return ast.WalkContinue, nil
	})

	hints := make([]string, 0, len(seen))
	for p := range seen {
		hints = append(hints, p)
	}
	sort.Strings(hints)
	return hints
}

// normalizeLink turns a markdown link destination into a candidate
// reference path, or "" when the destination cannot name a reference.
func normalizeLink(dest string) string {
	if dest == "" || strings.Contains(dest, "://") || strings.HasPrefix(dest, "#") {
		return ""
	}
	if idx := strings.IndexAny(dest, "#?"); idx != -1 {
		dest = dest[:idx]
	}
	dest = path.Clean(dest)
	if dest == "." || strings.HasPrefix(dest, "../") || path.IsAbs(dest) {
		return ""
	}
	if !strings.HasSuffix(dest, ".md") {
		return ""
	}
	return dest
}
