package corpus

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// Lint walks rootPath the same way Load does but applies no abort policy:
// every MalformedSkillError and every DuplicateSkillError is collected so a
// corpus author sees the full violation list in one pass. Returns nil on a
// clean corpus.
func Lint(ctx context.Context, rootPath string, opts ...Option) error {
	l, err := NewLoader(opts...)
	if err != nil {
		return err
	}

	result, err := l.loadAll(ctx, rootPath)
	if err != nil {
		return err
	}

	var violations *multierror.Error
	for _, m := range result.malformed {
		violations = multierror.Append(violations, m)
	}
	for _, d := range result.duplicates {
		violations = multierror.Append(violations, d)
	}
	return violations.ErrorOrNil()
}
