// Package corpus loads a directory tree of skill units into immutable
// in-memory records. Each skill unit is a directory holding one overview
// document (SKILL.md with YAML frontmatter) and zero or more reference
// documents that are disclosed lazily at query time.
package corpus

// Structural bounds enforced at load time.
const (
	// MaxDescriptionLength is the upper bound on a skill description.
	MaxDescriptionLength = 1024
	// MaxOverviewLines is the upper bound on an overview body.
	MaxOverviewLines = 500
)

// Metadata is the YAML frontmatter of an overview document. Either name or
// id identifies the skill; name wins when both are present.
type Metadata struct {
	Name        string `mapstructure:"name" yaml:"name"`
	ID          string `mapstructure:"id" yaml:"id"`
	Description string `mapstructure:"description" yaml:"description"`
	Category    string `mapstructure:"category" yaml:"category"`
}

// Skill is one named capability unit.
type Skill struct {
	// ID is the unique lowercase slug identifying the skill.
	ID string
	// Description is the short natural-language summary used for matching.
	Description string
	// Category is an optional grouping label, normalized to lowercase.
	Category string
	// Dir is the slash-separated skill directory relative to the corpus root.
	Dir string
	// Overview is the overview body with frontmatter removed.
	Overview string
	// SizeEstimate is the cost of Overview in the corpus budget unit.
	SizeEstimate int
	// Keywords is the sorted, deduplicated token set derived from ID and
	// Description; it is the skill's key set in the metadata index.
	Keywords []string
	// References are the skill's reference documents, ordered
	// lexicographically by path.
	References []ReferenceDoc
}

// Reference returns the reference document with the given path.
func (s *Skill) Reference(path string) (*ReferenceDoc, bool) {
	for i := range s.References {
		if s.References[i].Path == path {
			return &s.References[i], true
		}
	}
	return nil, false
}

// ReferenceDoc is an addressable sub-document owned by exactly one skill.
type ReferenceDoc struct {
	// Path is the slash-separated path relative to the skill directory.
	Path string
	// Body is the document content. Reference documents carry no
	// frontmatter.
	Body string
	// SizeEstimate is the cost of Body in the corpus budget unit.
	SizeEstimate int
}

// Corpus is an immutable snapshot of all skills loaded from one root
// directory. Callers must not mutate the returned skills.
type Corpus struct {
	root      string
	unit      string
	skills    []*Skill
	byID      map[string]*Skill
	malformed []*MalformedSkillError
}

// Root returns the corpus root directory as given to the loader.
func (c *Corpus) Root() string { return c.root }

// Unit returns the budget unit of all size estimates in the corpus.
func (c *Corpus) Unit() string { return c.unit }

// Skills returns all skills ordered lexicographically by directory path.
func (c *Corpus) Skills() []*Skill {
	out := make([]*Skill, len(c.skills))
	copy(out, c.skills)
	return out
}

// Skill returns the skill with the given id.
func (c *Corpus) Skill(id string) (*Skill, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Len returns the number of loaded skills.
func (c *Corpus) Len() int { return len(c.skills) }

// Malformed returns the per-skill violations encountered during the load.
// Malformed skills are excluded from the corpus but do not fail the load.
func (c *Corpus) Malformed() []*MalformedSkillError {
	out := make([]*MalformedSkillError, len(c.malformed))
	copy(out, c.malformed)
	return out
}
