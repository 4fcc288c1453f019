// Package scorer ranks corpus skills against a query. The default scorer
// measures keyword coverage: how much of a skill's keyword set the query
// tokens cover. The exact formula is replaceable behind the Scorer
// interface; callers depend only on the normalized score range and the
// deterministic ordering.
package scorer

import (
	"sort"

	"github.com/jingkaihe/skilldex/pkg/corpus"
	"github.com/jingkaihe/skilldex/pkg/index"
)

// Query is an ephemeral matching request: free text plus optional explicit
// skill-id hints.
type Query struct {
	Text string
	// Hints are skill ids named explicitly by the caller. A hinted skill
	// scores 1.0 and ranks before every non-hinted result.
	Hints []string
}

// MatchResult is one ranked candidate. Score is in [0, 1].
type MatchResult struct {
	SkillID         string   `json:"skillId" yaml:"skillId"`
	Score           float64  `json:"score" yaml:"score"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty" yaml:"matchedKeywords,omitempty"`
	// Hinted is true when the skill was named explicitly in the query.
	Hinted bool `json:"hinted,omitempty" yaml:"hinted,omitempty"`
}

// Scorer produces a ranked list of match results for a query. Results are
// ordered descending by score with ties broken by ascending skill id, and
// the same corpus and query always yield the same list.
type Scorer interface {
	Score(query Query, c *corpus.Corpus, idx *index.Index) []MatchResult
}

// DefaultMinScore drops nothing but zero-overlap candidates.
const DefaultMinScore = 0.0

// KeywordScorer scores candidates by keyword coverage:
// |query tokens ∩ skill keywords| / |skill keywords|. Full coverage of a
// small, precise keyword set beats one stray token hit among many.
type KeywordScorer struct {
	// MinScore is the exclusive lower bound on returned scores. Hinted
	// skills bypass it.
	MinScore float64
}

// NewKeywordScorer creates a keyword coverage scorer with the default
// threshold.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{MinScore: DefaultMinScore}
}

// Score implements Scorer. An empty result list means no match, which is a
// normal outcome rather than an error.
func (s *KeywordScorer) Score(query Query, c *corpus.Corpus, idx *index.Index) []MatchResult {
	tokens := corpus.Tokenize(query.Text)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = struct{}{}
	}

	hinted := make(map[string]struct{}, len(query.Hints))
	for _, h := range query.Hints {
		if _, ok := c.Skill(h); ok {
			hinted[h] = struct{}{}
		}
	}

	// Candidates come from the index union; hinted skills are candidates
	// even with zero token overlap.
	candidates := idx.Candidates(tokens)
	candidateSet := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		candidateSet[id] = struct{}{}
	}
	for id := range hinted {
		if _, ok := candidateSet[id]; !ok {
			candidates = append(candidates, id)
		}
	}

	results := make([]MatchResult, 0, len(candidates))
	for _, id := range candidates {
		skill, ok := c.Skill(id)
		if !ok {
			continue
		}

		matched := make([]string, 0, len(skill.Keywords))
		for _, kw := range skill.Keywords {
			if _, ok := tokenSet[kw]; ok {
				matched = append(matched, kw)
			}
		}

		var score float64
		if len(skill.Keywords) > 0 {
			score = float64(len(matched)) / float64(len(skill.Keywords))
		}

		_, isHinted := hinted[id]
		if isHinted {
			score = 1.0
		} else if score <= s.MinScore {
			continue
		}

		results = append(results, MatchResult{
			SkillID:         id,
			Score:           score,
			MatchedKeywords: matched,
			Hinted:          isHinted,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Hinted != results[j].Hinted {
			return results[i].Hinted
		}
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SkillID < results[j].SkillID
	})

	return results
}
