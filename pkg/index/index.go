// Package index builds lookup structures over a loaded corpus: an inverted
// keyword map for candidate retrieval plus exact id and category lookups.
// An Index is immutable once built; a corpus change requires a full rebuild
// rather than incremental patching.
package index

import (
	"sort"

	"github.com/jingkaihe/skilldex/pkg/corpus"
)

// Index holds the lookup structures for one corpus snapshot.
type Index struct {
	byKeyword  map[string][]string
	byID       map[string]*corpus.Skill
	byCategory map[string][]string
}

// Build constructs an index over the corpus. Cost is linear in total corpus
// size.
func Build(c *corpus.Corpus) *Index {
	idx := &Index{
		byKeyword:  make(map[string][]string),
		byID:       make(map[string]*corpus.Skill, c.Len()),
		byCategory: make(map[string][]string),
	}

	// Skills() is already in lexicographic path order, so the per-keyword
	// id slices are built deterministically.
	for _, s := range c.Skills() {
		idx.byID[s.ID] = s
		if s.Category != "" {
			idx.byCategory[s.Category] = append(idx.byCategory[s.Category], s.ID)
		}
		for _, kw := range s.Keywords {
			idx.byKeyword[kw] = append(idx.byKeyword[kw], s.ID)
		}
	}

	for _, ids := range idx.byCategory {
		sort.Strings(ids)
	}
	for _, ids := range idx.byKeyword {
		sort.Strings(ids)
	}

	return idx
}

// Candidates returns the union of skill ids matching any of the tokens,
// sorted ascending. Recall favoring: ranking is the scorer's job.
func (idx *Index) Candidates(tokens []string) []string {
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		for _, id := range idx.byKeyword[tok] {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Skill returns the indexed skill with the given id.
func (idx *Index) Skill(id string) (*corpus.Skill, bool) {
	s, ok := idx.byID[id]
	return s, ok
}

// Category returns the skill ids in a category, sorted ascending.
func (idx *Index) Category(category string) []string {
	ids := idx.byCategory[category]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Categories returns all known categories, sorted ascending.
func (idx *Index) Categories() []string {
	categories := make([]string, 0, len(idx.byCategory))
	for c := range idx.byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}
