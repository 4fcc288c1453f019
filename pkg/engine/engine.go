// Package engine is the facade tying the retrieval core together: it owns
// the corpus snapshot, the metadata index, the scorer, and the registry of
// live sessions, and exposes match and resolve operations to the CLI, the
// HTTP API, the MCP server, and the host tool.
package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skilldex/pkg/corpus"
	"github.com/jingkaihe/skilldex/pkg/cost"
	"github.com/jingkaihe/skilldex/pkg/index"
	"github.com/jingkaihe/skilldex/pkg/logger"
	"github.com/jingkaihe/skilldex/pkg/resolver"
	"github.com/jingkaihe/skilldex/pkg/scorer"
	"github.com/jingkaihe/skilldex/pkg/session"
	"github.com/jingkaihe/skilldex/pkg/telemetry"
)

// ErrNotLoaded is returned when a query arrives before the first Load.
var ErrNotLoaded = errors.New("corpus not loaded")

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// DefaultBudget caps one resolution at roughly one overview plus change,
// in lines.
const DefaultBudget = 600

// Engine owns one corpus snapshot and its derived state. Reload swaps the
// snapshot under a write lock and invalidates every registered session:
// coarse and stop-the-world, never incrementally consistent.
type Engine struct {
	root       string
	scorer     scorer.Scorer
	estimator  cost.Estimator
	budget     int
	loaderOpts []corpus.Option

	mu       sync.RWMutex
	corpus   *corpus.Corpus
	index    *index.Index
	resolver *resolver.Resolver
	sessions map[string]*session.Session
}

// EngineOption configures an Engine.
type EngineOption func(*Engine) error

// WithRoot sets the corpus root directory.
func WithRoot(root string) EngineOption {
	return func(e *Engine) error {
		if root == "" {
			return errors.New("corpus root cannot be empty")
		}
		e.root = root
		return nil
	}
}

// WithScorer replaces the default keyword coverage scorer.
func WithScorer(s scorer.Scorer) EngineOption {
	return func(e *Engine) error {
		if s == nil {
			return errors.New("scorer cannot be nil")
		}
		e.scorer = s
		return nil
	}
}

// WithEstimator sets the size estimator shared by the loader and resolver.
func WithEstimator(est cost.Estimator) EngineOption {
	return func(e *Engine) error {
		if est == nil {
			return errors.New("estimator cannot be nil")
		}
		e.estimator = est
		return nil
	}
}

// WithDefaultBudget sets the budget used when a resolve request carries
// none.
func WithDefaultBudget(budget int) EngineOption {
	return func(e *Engine) error {
		if budget <= 0 {
			return errors.Errorf("default budget must be positive, got %d", budget)
		}
		e.budget = budget
		return nil
	}
}

// WithSkillFilters forwards include/exclude glob patterns to the loader.
func WithSkillFilters(include, exclude []string) EngineOption {
	return func(e *Engine) error {
		if len(include) > 0 {
			e.loaderOpts = append(e.loaderOpts, corpus.WithInclude(include...))
		}
		if len(exclude) > 0 {
			e.loaderOpts = append(e.loaderOpts, corpus.WithExclude(exclude...))
		}
		return nil
	}
}

// New creates an engine. Call Load before issuing queries.
func New(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		scorer:    scorer.NewKeywordScorer(),
		estimator: cost.LineEstimator{},
		budget:    DefaultBudget,
		sessions:  make(map[string]*session.Session),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.root == "" {
		return nil, errors.New("corpus root is required")
	}
	return e, nil
}

// Load performs the initial corpus load and index build.
func (e *Engine) Load(ctx context.Context) error {
	return e.Reload(ctx)
}

// Reload re-walks the corpus root, rebuilds the index from scratch, and
// invalidates every live session. Queries block for the duration of the
// swap.
func (e *Engine) Reload(ctx context.Context) error {
	return telemetry.WithSpan(ctx, "engine.reload", func(ctx context.Context) error {
		opts := append([]corpus.Option{corpus.WithEstimator(e.estimator)}, e.loaderOpts...)
		c, err := corpus.Load(ctx, e.root, opts...)
		if err != nil {
			return errors.Wrap(err, "corpus reload failed")
		}
		idx := index.Build(c)

		e.mu.Lock()
		defer e.mu.Unlock()

		invalidated := 0
		for id, sess := range e.sessions {
			sess.Invalidate()
			delete(e.sessions, id)
			invalidated++
		}

		e.corpus = c
		e.index = idx
		e.resolver = resolver.New(c)

		logger.G(ctx).WithFields(map[string]interface{}{
			"root":                 e.root,
			"skills":               c.Len(),
			"sessions_invalidated": invalidated,
		}).Info("corpus reloaded")
		return nil
	}, attribute.String("corpus.root", e.root))
}

// Corpus returns the current corpus snapshot.
func (e *Engine) Corpus() (*corpus.Corpus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.corpus == nil {
		return nil, ErrNotLoaded
	}
	return e.corpus, nil
}

// Match scores the query against the corpus and returns ranked results.
func (e *Engine) Match(ctx context.Context, query scorer.Query) ([]scorer.MatchResult, error) {
	e.mu.RLock()
	c, idx := e.corpus, e.index
	e.mu.RUnlock()
	if c == nil {
		return nil, ErrNotLoaded
	}

	var results []scorer.MatchResult
	err := telemetry.WithSpan(ctx, "engine.match", func(ctx context.Context) error {
		results = e.scorer.Score(query, c, idx)
		telemetry.SetAttributes(ctx, attribute.Int("match.results", len(results)))
		return nil
	}, attribute.Int("query.hints", len(query.Hints)))
	return results, err
}

// Resolve runs a disclosure pass for the given session. An empty sessionID
// resolves against a throwaway session, which still honors the budget but
// caches nothing beyond the call.
func (e *Engine) Resolve(ctx context.Context, sessionID string, req resolver.Request) (*resolver.ResolvedContent, error) {
	e.mu.RLock()
	c, res := e.corpus, e.resolver
	e.mu.RUnlock()
	if c == nil {
		return nil, ErrNotLoaded
	}

	var sess *session.Session
	if sessionID == "" {
		sess = session.New()
	} else {
		var ok bool
		sess, ok = e.lookupSession(sessionID)
		if !ok {
			return nil, errors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
		}
	}

	if req.Budget <= 0 {
		req.Budget = e.budget
	}

	var resolved *resolver.ResolvedContent
	err := telemetry.WithSpan(ctx, "engine.resolve", func(ctx context.Context) error {
		var err error
		resolved, err = res.Resolve(ctx, req, sess)
		return err
	}, attribute.Int("resolve.budget", req.Budget), attribute.Int("resolve.matches", len(req.Matches)))
	return resolved, err
}

// NewSession registers and returns a fresh session.
func (e *Engine) NewSession() *session.Session {
	sess := session.New()
	e.mu.Lock()
	e.sessions[sess.ID()] = sess
	e.mu.Unlock()
	return sess
}

// Session returns a registered session by id.
func (e *Engine) Session(id string) (*session.Session, error) {
	sess, ok := e.lookupSession(id)
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "session %s", id)
	}
	return sess, nil
}

func (e *Engine) lookupSession(id string) (*session.Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sess, ok := e.sessions[id]
	return sess, ok
}

// EndSession discards a session. Ending an unknown session is a no-op.
func (e *Engine) EndSession(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, id)
}

// List returns the loaded skills in corpus order.
func (e *Engine) List() ([]*corpus.Skill, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.corpus == nil {
		return nil, ErrNotLoaded
	}
	return e.corpus.Skills(), nil
}

// Describe returns one skill by id.
func (e *Engine) Describe(id string) (*corpus.Skill, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.corpus == nil {
		return nil, ErrNotLoaded
	}
	s, ok := e.corpus.Skill(id)
	if !ok {
		return nil, errors.Errorf("unknown skill id %q", id)
	}
	return s, nil
}
