package corpus

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/jingkaihe/skilldex/pkg/cost"
	"github.com/jingkaihe/skilldex/pkg/logger"
)

// OverviewFileName is the overview document every skill directory must hold.
const OverviewFileName = "SKILL.md"

// Loader walks a corpus root and produces an immutable Corpus snapshot. It
// keeps no state between loads; caching loaded content is the session's job.
type Loader struct {
	estimator cost.Estimator
	include   []glob.Glob
	exclude   []glob.Glob
}

// Option configures a Loader.
type Option func(*Loader) error

// WithEstimator sets the size estimator used for overview and reference
// cost estimates. The default counts lines.
func WithEstimator(e cost.Estimator) Option {
	return func(l *Loader) error {
		if e == nil {
			return errors.New("estimator cannot be nil")
		}
		l.estimator = e
		return nil
	}
}

// WithInclude restricts the load to skill directories matching at least one
// of the given glob patterns, relative to the corpus root.
func WithInclude(patterns ...string) Option {
	return func(l *Loader) error {
		compiled, err := compilePatterns(patterns)
		if err != nil {
			return err
		}
		l.include = append(l.include, compiled...)
		return nil
	}
}

// WithExclude skips skill directories matching any of the given glob
// patterns, relative to the corpus root.
func WithExclude(patterns ...string) Option {
	return func(l *Loader) error {
		compiled, err := compilePatterns(patterns)
		if err != nil {
			return err
		}
		l.exclude = append(l.exclude, compiled...)
		return nil
	}
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid skill filter pattern %q", p)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// NewLoader creates a corpus loader.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{estimator: cost.LineEstimator{}}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Load walks rootPath and returns an immutable corpus snapshot. Skill
// enumeration is lexicographic by directory path regardless of filesystem
// iteration order. Per-skill structural violations exclude the offending
// skill and are reported via Corpus.Malformed; an id collision aborts the
// load with a DuplicateSkillError.
func Load(ctx context.Context, rootPath string, opts ...Option) (*Corpus, error) {
	l, err := NewLoader(opts...)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, rootPath)
}

// Load implements the package-level Load for a configured Loader.
func (l *Loader) Load(ctx context.Context, rootPath string) (*Corpus, error) {
	result, err := l.loadAll(ctx, rootPath)
	if err != nil {
		return nil, err
	}
	if len(result.duplicates) > 0 {
		return nil, result.duplicates[0]
	}

	c := &Corpus{
		root:      rootPath,
		unit:      l.estimator.Unit(),
		skills:    result.skills,
		byID:      make(map[string]*Skill, len(result.skills)),
		malformed: result.malformed,
	}
	for _, s := range result.skills {
		c.byID[s.ID] = s
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"root":      rootPath,
		"skills":    len(result.skills),
		"malformed": len(result.malformed),
		"unit":      c.unit,
	}).Debug("corpus loaded")

	return c, nil
}

// loadResult is the raw outcome of one corpus walk, before Load and Lint
// apply their respective error policies.
type loadResult struct {
	skills     []*Skill
	malformed  []*MalformedSkillError
	duplicates []*DuplicateSkillError
}

func (l *Loader) loadAll(ctx context.Context, rootPath string) (*loadResult, error) {
	dirs, err := l.skillDirs(rootPath)
	if err != nil {
		return nil, err
	}

	result := &loadResult{}
	seen := make(map[string]string, len(dirs)) // id -> dir

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "corpus load canceled")
		}

		skill, malformed, err := l.loadSkill(rootPath, dir)
		if err != nil {
			return nil, err
		}
		if malformed != nil {
			result.malformed = append(result.malformed, malformed)
			continue
		}

		if other, exists := seen[skill.ID]; exists {
			result.duplicates = append(result.duplicates, &DuplicateSkillError{
				ID:       skill.ID,
				Dir:      other,
				OtherDir: dir,
			})
			continue
		}
		seen[skill.ID] = dir
		result.skills = append(result.skills, skill)
	}

	return result, nil
}

// skillDirs returns the slash-separated skill directories under rootPath,
// sorted lexicographically. A skill directory is the topmost directory
// containing an overview document; the walk does not descend into it
// looking for nested skills.
func (l *Loader) skillDirs(rootPath string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "failed to walk %s", path)
		}
		if !d.IsDir() {
			return nil
		}

		if _, statErr := os.Stat(filepath.Join(path, OverviewFileName)); statErr != nil {
			return nil
		}

		rel, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			return errors.Wrapf(relErr, "failed to relativize %s", path)
		}
		rel = filepath.ToSlash(rel)

		if l.matches(rel) {
			dirs = append(dirs, rel)
		}
		return fs.SkipDir
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk corpus root %s", rootPath)
	}

	sort.Strings(dirs)
	return dirs, nil
}

func (l *Loader) matches(dir string) bool {
	if len(l.include) > 0 {
		included := false
		for _, g := range l.include {
			if g.Match(dir) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, g := range l.exclude {
		if g.Match(dir) {
			return false
		}
	}
	return true
}

// loadSkill parses one skill directory. Structural violations come back as
// a non-nil *MalformedSkillError; the error return is reserved for I/O
// failures that abort the whole load.
func (l *Loader) loadSkill(rootPath, dir string) (*Skill, *MalformedSkillError, error) {
	overviewPath := filepath.Join(rootPath, filepath.FromSlash(dir), OverviewFileName)
	content, err := os.ReadFile(overviewPath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %s", overviewPath)
	}

	metadata, malformedReason := parseMetadata(content)
	if malformedReason != "" {
		return nil, &MalformedSkillError{Dir: dir, Reason: malformedReason}, nil
	}

	id := metadata.Name
	if id == "" {
		id = metadata.ID
	}
	if id == "" {
		return nil, &MalformedSkillError{Dir: dir, Reason: "missing required frontmatter field name or id"}, nil
	}
	if id != strings.ToLower(id) {
		return nil, &MalformedSkillError{Dir: dir, Reason: "skill id must be lowercase: " + id}, nil
	}
	if metadata.Description == "" {
		return nil, &MalformedSkillError{Dir: dir, Reason: "missing required frontmatter field description"}, nil
	}
	if len(metadata.Description) > MaxDescriptionLength {
		return nil, &MalformedSkillError{
			Dir:    dir,
			Reason: errors.Errorf("description exceeds %d characters (%d)", MaxDescriptionLength, len(metadata.Description)).Error(),
		}, nil
	}

	body := extractBody(string(content))
	if lines := (cost.LineEstimator{}).Estimate(body); lines > MaxOverviewLines {
		return nil, &MalformedSkillError{
			Dir:    dir,
			Reason: errors.Errorf("overview exceeds %d lines (%d)", MaxOverviewLines, lines).Error(),
		}, nil
	}

	references, malformed, err := l.loadReferences(rootPath, dir)
	if err != nil {
		return nil, nil, err
	}
	if malformed != nil {
		return nil, malformed, nil
	}

	return &Skill{
		ID:           id,
		Description:  metadata.Description,
		Category:     strings.ToLower(metadata.Category),
		Dir:          dir,
		Overview:     body,
		SizeEstimate: l.estimator.Estimate(body),
		Keywords:     Keywords(id, metadata.Description),
		References:   references,
	}, nil, nil
}

// loadReferences collects the non-overview markdown documents of a skill,
// ordered lexicographically by relative path. References carry raw content
// only: frontmatter in a reference makes the whole skill malformed.
func (l *Loader) loadReferences(rootPath, dir string) ([]ReferenceDoc, *MalformedSkillError, error) {
	skillPath := filepath.Join(rootPath, filepath.FromSlash(dir))

	var paths []string
	err := filepath.WalkDir(skillPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "failed to walk %s", path)
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(skillPath, path)
		if relErr != nil {
			return errors.Wrapf(relErr, "failed to relativize %s", path)
		}
		rel = filepath.ToSlash(rel)
		if rel == OverviewFileName {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to walk skill directory %s", skillPath)
	}
	sort.Strings(paths)

	references := make([]ReferenceDoc, 0, len(paths))
	for _, rel := range paths {
		content, err := os.ReadFile(filepath.Join(skillPath, filepath.FromSlash(rel)))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to read reference %s", rel)
		}
		if hasFrontmatter(content) {
			return nil, &MalformedSkillError{
				Dir:    dir,
				Reason: "reference document " + rel + " must not carry frontmatter",
			}, nil
		}
		body := string(content)
		references = append(references, ReferenceDoc{
			Path:         rel,
			Body:         body,
			SizeEstimate: l.estimator.Estimate(body),
		})
	}

	return references, nil, nil
}

// parseMetadata extracts and decodes the YAML frontmatter of an overview
// document. The second return value is a non-empty malformation reason when
// the frontmatter is missing or undecodable.
func parseMetadata(content []byte) (*Metadata, string) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, "failed to parse markdown: " + err.Error()
	}

	raw := meta.Get(pctx)
	if raw == nil {
		return nil, "missing frontmatter"
	}

	var metadata Metadata
	if err := mapstructure.Decode(raw, &metadata); err != nil {
		return nil, "invalid frontmatter: " + err.Error()
	}
	return &metadata, ""
}

// extractBody strips the YAML frontmatter block and returns the body.
func extractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}
	rest := content[3:]
	idx := strings.Index(rest, "\n---")
	if idx == -1 {
		return content
	}
	body := rest[idx+4:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	return strings.TrimLeft(body, "\n")
}

func hasFrontmatter(content []byte) bool {
	return bytes.HasPrefix(content, []byte("---\n")) || bytes.HasPrefix(content, []byte("---\r\n"))
}
