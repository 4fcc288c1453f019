// Package resolver implements progressive disclosure over a loaded corpus:
// given ranked matches and a session, it materializes the minimum content
// the host needs now — overviews first, reference documents only on
// explicit request — under a strict size budget. Already-disclosed content
// comes back as cache-hit markers instead of being duplicated.
package resolver

import (
	"context"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldex/pkg/corpus"
	"github.com/jingkaihe/skilldex/pkg/logger"
	"github.com/jingkaihe/skilldex/pkg/scorer"
	"github.com/jingkaihe/skilldex/pkg/session"
)

// Block kinds in a resolved result.
const (
	KindOverview  = "overview"
	KindReference = "reference"
	// KindCacheHit marks content that was already disclosed earlier in the
	// session. The block carries no body.
	KindCacheHit = "cache-hit"
)

// Block is one resolved content unit, tagged with its source.
type Block struct {
	Kind    string `json:"kind" yaml:"kind"`
	SkillID string `json:"skillId" yaml:"skillId"`
	// RefPath is set for reference and reference cache-hit blocks.
	RefPath string `json:"refPath,omitempty" yaml:"refPath,omitempty"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	Cost    int    `json:"cost" yaml:"cost"`
	// ReferenceHints lists reference paths the overview links to, so the
	// caller knows what it may request next. Hints are never pre-loaded.
	ReferenceHints []string `json:"referenceHints,omitempty" yaml:"referenceHints,omitempty"`
}

// ResolvedContent is the outcome of one resolve call.
type ResolvedContent struct {
	Blocks []Block `json:"blocks" yaml:"blocks"`
	// Consumed is the session's total consumed budget after this call.
	Consumed int    `json:"consumed" yaml:"consumed"`
	Budget   int    `json:"budget" yaml:"budget"`
	Unit     string `json:"unit" yaml:"unit"`
	// BudgetExceeded is set when resolution stopped because the next item
	// would have overflowed the budget. The overflowing item is excluded;
	// content is never truncated to fit.
	BudgetExceeded bool `json:"budgetExceeded" yaml:"budgetExceeded"`
}

// Request describes one resolve call.
type Request struct {
	// Matches are resolved independently in order, highest score first.
	Matches []scorer.MatchResult
	// RefPatterns are doublestar patterns (e.g. "refs/**/*.md") selecting
	// reference documents of the matched skills to disclose. References
	// load only through an explicit pattern, never speculatively.
	RefPatterns []string
	// Budget caps the session's total consumed size, in the corpus unit.
	Budget int
}

// Resolver materializes skill content from one corpus snapshot.
type Resolver struct {
	c *corpus.Corpus
}

// New creates a resolver over a corpus snapshot.
func New(c *corpus.Corpus) *Resolver {
	return &Resolver{c: c}
}

// Resolve runs one disclosure pass as a single session transaction: every
// disclosed item commits together, and any error (canceled context,
// unknown skill, invalidated session) leaves the session exactly as it was
// before the call. The item that would overflow the budget is never
// recorded or emitted.
func (r *Resolver) Resolve(ctx context.Context, req Request, sess *session.Session) (*ResolvedContent, error) {
	if req.Budget <= 0 {
		return nil, errors.Errorf("budget must be positive, got %d", req.Budget)
	}

	tx, err := sess.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "resolution abandoned")
	}
	defer tx.Rollback()

	result := &ResolvedContent{
		Budget: req.Budget,
		Unit:   r.c.Unit(),
	}

	for _, match := range req.Matches {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "resolution abandoned")
		}

		skill, ok := r.c.Skill(match.SkillID)
		if !ok {
			return nil, errors.Errorf("unknown skill id %q", match.SkillID)
		}

		if done := r.resolveOverview(skill, req.Budget, tx, result); done {
			break
		}

		done, err := r.resolveReferences(ctx, skill, req, tx, result)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	result.Consumed = tx.Consumed()
	tx.Commit()

	logger.G(ctx).WithFields(map[string]interface{}{
		"session":         sess.ID(),
		"blocks":          len(result.Blocks),
		"consumed":        result.Consumed,
		"budget":          req.Budget,
		"budget_exceeded": result.BudgetExceeded,
	}).Debug("resolution complete")

	return result, nil
}

// resolveOverview discloses one skill's overview. Returns true when the
// budget is exhausted and resolution must stop.
func (r *Resolver) resolveOverview(skill *corpus.Skill, budget int, tx *session.Tx, result *ResolvedContent) bool {
	switch tx.ConsumeSkill(skill.ID, skill.SizeEstimate, budget) {
	case session.CacheHit:
		result.Blocks = append(result.Blocks, Block{
			Kind:    KindCacheHit,
			SkillID: skill.ID,
		})
	case session.BudgetExceeded:
		result.BudgetExceeded = true
		return true
	case session.Recorded:
		result.Blocks = append(result.Blocks, Block{
			Kind:           KindOverview,
			SkillID:        skill.ID,
			Content:        skill.Overview,
			Cost:           skill.SizeEstimate,
			ReferenceHints: ReferenceHints(skill),
		})
	}
	return false
}

// resolveReferences discloses the skill's reference documents selected by
// the request's patterns, in the skill's reference order. Returns true when
// the budget is exhausted.
func (r *Resolver) resolveReferences(ctx context.Context, skill *corpus.Skill, req Request, tx *session.Tx, result *ResolvedContent) (bool, error) {
	if len(req.RefPatterns) == 0 {
		return false, nil
	}

	for i := range skill.References {
		ref := &skill.References[i]
		matched, err := matchesAny(req.RefPatterns, ref.Path)
		if err != nil {
			return false, err
		}
		if !matched {
			continue
		}
		if err := ctx.Err(); err != nil {
			return false, errors.Wrap(err, "resolution abandoned")
		}

		switch tx.ConsumeReference(skill.ID, ref.Path, ref.SizeEstimate, req.Budget) {
		case session.CacheHit:
			result.Blocks = append(result.Blocks, Block{
				Kind:    KindCacheHit,
				SkillID: skill.ID,
				RefPath: ref.Path,
			})
		case session.BudgetExceeded:
			result.BudgetExceeded = true
			return true, nil
		case session.Recorded:
			result.Blocks = append(result.Blocks, Block{
				Kind:    KindReference,
				SkillID: skill.ID,
				RefPath: ref.Path,
				Content: ref.Body,
				Cost:    ref.SizeEstimate,
			})
		}
	}
	return false, nil
}

func matchesAny(patterns []string, path string) (bool, error) {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			return false, errors.Wrapf(err, "invalid reference pattern %q", pattern)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
