// Package cost estimates the context-size cost of skill content. Budgets
// for progressive disclosure are expressed in the estimator's unit, either
// lines or tokens, so the loader, resolver, and CLI all share one Estimator.
package cost

import (
	"strings"

	"github.com/pkg/errors"
)

// Estimator computes the approximate cost of a piece of content in a fixed
// unit. Estimates for the same text must be stable across calls.
type Estimator interface {
	Estimate(text string) int
	Unit() string
}

// Supported budget units.
const (
	UnitLines  = "lines"
	UnitTokens = "tokens"
)

// ForUnit returns the default estimator for a budget unit: line counting for
// "lines", tiktoken-backed counting for "tokens".
func ForUnit(unit string) (Estimator, error) {
	switch unit {
	case UnitLines:
		return LineEstimator{}, nil
	case UnitTokens:
		return NewTiktokenEstimator(DefaultEncoding), nil
	default:
		return nil, errors.Errorf("unknown budget unit %q (supported: %s, %s)", unit, UnitLines, UnitTokens)
	}
}

// LineEstimator counts lines. A trailing newline does not count as an extra
// line; empty content costs zero.
type LineEstimator struct{}

// Estimate returns the number of lines in text
func (LineEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// Unit returns the unit of the estimate
func (LineEstimator) Unit() string { return UnitLines }

// HeuristicEstimator approximates token counts as bytes divided by four,
// rounded up. It needs no encoding dictionary, which makes it a safe
// fallback when tiktoken initialization fails.
type HeuristicEstimator struct{}

// Estimate returns the approximate token count of text
func (HeuristicEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Unit returns the unit of the estimate
func (HeuristicEstimator) Unit() string { return UnitTokens }
