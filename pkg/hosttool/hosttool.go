// Package hosttool adapts the retrieval engine into a single tool an agent
// runtime can expose to its model: the tool description embeds the live
// skill catalog, and an invocation runs match plus resolve against the
// caller's session.
package hosttool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skilldex/pkg/engine"
	"github.com/jingkaihe/skilldex/pkg/resolver"
	"github.com/jingkaihe/skilldex/pkg/scorer"
)

// Tool exposes skill retrieval to a host agent runtime.
type Tool struct {
	engine *engine.Engine
}

// Input defines the tool's input parameters.
type Input struct {
	SkillID string `json:"skill_id" jsonschema:"description=The id of the skill to load"`
	Query   string `json:"query,omitempty" jsonschema:"description=Free-text context used to rank additional candidates"`
	// SessionID identifies the conversation; repeated loads within one
	// session return cache-hit markers instead of content.
	SessionID string `json:"session_id,omitempty" jsonschema:"description=Session identifier for progressive disclosure caching"`
	Budget    int    `json:"budget,omitempty" jsonschema:"description=Maximum content size to disclose in this call"`
	// Refs selects reference documents of the skill via doublestar
	// patterns, e.g. refs/**/*.md.
	Refs []string `json:"refs,omitempty" jsonschema:"description=Reference document patterns to disclose"`
}

// New creates a host tool backed by the engine.
func New(e *engine.Engine) *Tool {
	return &Tool{engine: e}
}

// Name returns the tool name.
func (t *Tool) Name() string {
	return "skill"
}

// Description returns the tool description with the live skill catalog.
func (t *Tool) Description() string {
	var sb strings.Builder

	sb.WriteString(`Load a skill when it is relevant to the task at hand. Skills provide specialized capabilities and domain knowledge.

# Usage
- Pass the skill id to load its overview
- Pass refs patterns (e.g. "refs/**/*.md") to load a skill's reference documents after the overview pointed at them
- Reference documents are disclosed lazily: load them only when the overview or the task signals the need
- Repeating a load within one session returns a cache marker instead of duplicate content

## Available Skills

`)

	skills, err := t.engine.List()
	if err != nil || len(skills) == 0 {
		sb.WriteString("No skills are currently available.\n")
		return sb.String()
	}

	for _, skill := range skills {
		sb.WriteString(fmt.Sprintf("### %s\n", skill.ID))
		sb.WriteString(fmt.Sprintf("- **Description**: %s\n", skill.Description))
		if skill.Category != "" {
			sb.WriteString(fmt.Sprintf("- **Category**: %s\n", skill.Category))
		}
		sb.WriteString(fmt.Sprintf("- **References**: %d\n\n", len(skill.References)))
	}

	return sb.String()
}

// GenerateSchema generates the JSON schema for the tool's input.
func (t *Tool) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&Input{})
}

// ValidateInput validates the input parameters against the loaded corpus.
func (t *Tool) ValidateInput(parameters string) error {
	var input Input
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}

	if input.SkillID == "" {
		return errors.New("skill_id is required")
	}

	if _, err := t.engine.Describe(input.SkillID); err != nil {
		skills, listErr := t.engine.List()
		if listErr != nil {
			return err
		}
		available := make([]string, 0, len(skills))
		for _, s := range skills {
			available = append(available, s.ID)
		}
		sort.Strings(available)
		return errors.Errorf("unknown skill '%s'. Available skills: %s",
			input.SkillID, strings.Join(available, ", "))
	}

	return nil
}

// TracingKVs returns tracing key-value pairs for observability.
func (t *Tool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	var input Input
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return nil, err
	}

	return []attribute.KeyValue{
		attribute.String("skill_id", input.SkillID),
		attribute.String("session_id", input.SessionID),
		attribute.Int("budget", input.Budget),
	}, nil
}

// Execute loads the requested skill content and renders it for the model.
func (t *Tool) Execute(ctx context.Context, parameters string) (string, error) {
	var input Input
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return "", errors.Wrap(err, "invalid input")
	}

	matches, err := t.engine.Match(ctx, scorer.Query{
		Text:  input.Query,
		Hints: []string{input.SkillID},
	})
	if err != nil {
		return "", err
	}

	resolved, err := t.engine.Resolve(ctx, input.SessionID, resolver.Request{
		Matches:     matches,
		RefPatterns: input.Refs,
		Budget:      input.Budget,
	})
	if err != nil {
		return "", err
	}

	return Render(resolved), nil
}

// Render formats resolved content as markdown for model consumption.
func Render(resolved *resolver.ResolvedContent) string {
	var sb strings.Builder

	for _, block := range resolved.Blocks {
		switch block.Kind {
		case resolver.KindCacheHit:
			if block.RefPath != "" {
				sb.WriteString(fmt.Sprintf("[already loaded: %s %s]\n\n", block.SkillID, block.RefPath))
			} else {
				sb.WriteString(fmt.Sprintf("[already loaded: %s]\n\n", block.SkillID))
			}
		case resolver.KindOverview:
			sb.WriteString(fmt.Sprintf("# Skill: %s\n\n", block.SkillID))
			sb.WriteString(block.Content)
			sb.WriteString("\n")
			if len(block.ReferenceHints) > 0 {
				sb.WriteString(fmt.Sprintf("\nReferences available on request: %s\n", strings.Join(block.ReferenceHints, ", ")))
			}
			sb.WriteString("\n")
		case resolver.KindReference:
			sb.WriteString(fmt.Sprintf("## Reference: %s (%s)\n\n", block.RefPath, block.SkillID))
			sb.WriteString(block.Content)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString(fmt.Sprintf("Budget: %d/%d %s consumed", resolved.Consumed, resolved.Budget, resolved.Unit))
	if resolved.BudgetExceeded {
		sb.WriteString(" (budget exhausted; retry with a narrower request)")
	}
	sb.WriteString("\n")

	return sb.String()
}
