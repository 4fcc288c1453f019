package corpus

import "fmt"

// MalformedSkillError reports a structural violation local to one skill:
// missing or invalid frontmatter fields, an oversized description or
// overview, or a reference document carrying frontmatter. The offending
// skill is excluded from the corpus; the load continues.
type MalformedSkillError struct {
	// Dir is the skill directory relative to the corpus root.
	Dir string
	// Reason describes the violation.
	Reason string
}

func (e *MalformedSkillError) Error() string {
	return fmt.Sprintf("malformed skill at %s: %s", e.Dir, e.Reason)
}

// DuplicateSkillError reports an id collision between two skill directories.
// Ambiguous identity is not recoverable, so this error aborts the load.
type DuplicateSkillError struct {
	ID string
	// Dir and OtherDir are the colliding skill directories relative to the
	// corpus root, in enumeration order.
	Dir      string
	OtherDir string
}

func (e *DuplicateSkillError) Error() string {
	return fmt.Sprintf("duplicate skill id %q: %s and %s", e.ID, e.Dir, e.OtherDir)
}
