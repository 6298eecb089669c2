package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultWorkers is the number of constraints evaluated concurrently when no
// worker count is configured.
const DefaultWorkers = 10

// ConstraintEvaluation reports how one constraint fared in a scoring pass.
type ConstraintEvaluation struct {
	PassID   string
	Problem  string
	Total    ConstraintMatchTotal
	Cached   bool
	Started  time.Time
	Duration time.Duration
	Err      error
}

// PassSummary reports a completed scoring pass.
type PassSummary struct {
	PassID    string
	Problem   string
	Score     Score
	Facts     map[string]int
	Evaluated int
	Cached    int
	Failed    int
	Started   time.Time
	Duration  time.Duration
	Err       error
}

// Observer receives scoring results. Implementations must be safe for
// concurrent use; ConstraintEvaluated is called from worker goroutines.
type Observer interface {
	ConstraintEvaluated(ctx context.Context, ev ConstraintEvaluation)
	PassCompleted(ctx context.Context, pass PassSummary)
}

// Explanation is the full result of a scoring pass.
type Explanation struct {
	PassID  string                 `json:"passId" yaml:"passId"`
	Problem string                 `json:"problem" yaml:"problem"`
	Score   Score                  `json:"score" yaml:"score"`
	Totals  []ConstraintMatchTotal `json:"constraints" yaml:"constraints"`
}

// Total returns the match total of the named constraint.
func (e *Explanation) Total(name string) (ConstraintMatchTotal, bool) {
	for _, t := range e.Totals {
		if t.Constraint == name {
			return t, true
		}
	}
	return ConstraintMatchTotal{}, false
}

type cachedTotal struct {
	versions    []uint64
	total       ConstraintMatchTotal
	withMatches bool
}

// Session scores the facts of its store against a constraint set. Mutations
// and scoring passes are serialised: a pass always sees a stable snapshot.
type Session struct {
	mu          sync.Mutex
	set         *ConstraintSet
	store       *FactStore
	workers     int
	incremental bool
	observers   []Observer
	cache       map[*Constraint]cachedTotal
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithWorkers sets how many constraints are evaluated concurrently.
func WithWorkers(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithIncremental toggles reuse of constraint results whose source facts did
// not change since the previous pass.
func WithIncremental(enabled bool) SessionOption {
	return func(s *Session) {
		s.incremental = enabled
	}
}

// WithObserver registers an observer of scoring passes.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// NewSession creates a session with an empty fact store.
func NewSession(set *ConstraintSet, opts ...SessionOption) *Session {
	s := &Session{
		set:         set,
		store:       NewFactStore(set.schema),
		workers:     DefaultWorkers,
		incremental: true,
		cache:       make(map[*Constraint]cachedTotal),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConstraintSet returns the constraints the session scores.
func (s *Session) ConstraintSet() *ConstraintSet { return s.set }

// Insert adds facts to the session's store.
func (s *Session) Insert(facts ...Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Insert(facts...)
}

// Update replaces a fact in the session's store.
func (s *Session) Update(f Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Update(f)
}

// Retract removes a fact from the session's store.
func (s *Session) Retract(typeName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Retract(typeName, id)
}

// FactCounts returns the number of facts per type.
func (s *Session) FactCounts() map[string]int {
	return s.store.Counts()
}

// CalculateScore scores every enabled constraint. When some constraints fail,
// the score of the others is still returned together with the joined
// evaluation errors.
func (s *Session) CalculateScore(ctx context.Context) (Score, error) {
	exp, err := s.run(ctx, false)
	return exp.Score, err
}

// Explain scores every enabled constraint and returns the per-constraint
// totals and their individual matches.
func (s *Session) Explain(ctx context.Context) (*Explanation, error) {
	return s.run(ctx, true)
}

func (s *Session) run(ctx context.Context, withMatches bool) (*Explanation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	passID := uuid.New().String()
	problem := s.set.schema.name
	constraints := s.set.enabled

	types := make(map[*FactType]struct{})
	for _, c := range constraints {
		for _, ft := range c.referencedTypes() {
			types[ft] = struct{}{}
		}
	}

	s.store.mu.RLock()
	view := s.store.view(types)
	totals, errs, cached := s.evaluateAll(ctx, passID, constraints, view, withMatches)
	s.store.mu.RUnlock()

	exp := &Explanation{PassID: passID, Problem: problem}
	failed := 0
	for i, total := range totals {
		if errs[i] != nil {
			failed++
			continue
		}
		exp.Score = exp.Score.Add(total.Score)
		exp.Totals = append(exp.Totals, total)
	}
	sort.Slice(exp.Totals, func(i, j int) bool {
		return exp.Totals[i].Constraint < exp.Totals[j].Constraint
	})
	err := errors.Join(errs...)

	summary := PassSummary{
		PassID:    passID,
		Problem:   problem,
		Score:     exp.Score,
		Facts:     s.store.Counts(),
		Evaluated: len(constraints) - cached,
		Cached:    cached,
		Failed:    failed,
		Started:   started,
		Duration:  time.Since(started),
		Err:       err,
	}
	for _, o := range s.observers {
		o.PassCompleted(ctx, summary)
	}

	logEvent := log.Debug()
	if err != nil {
		logEvent = log.Warn().Err(err)
	}
	logEvent.
		Str("problem", problem).
		Str("pass_id", passID).
		Int("constraints", len(constraints)).
		Int("cached", cached).
		Int("failed", failed).
		Str("score", exp.Score.String()).
		Dur("duration", summary.Duration).
		Msg("Scoring pass completed")

	return exp, err
}

// evaluateAll runs every constraint on a pool of workers. Each constraint's
// total is written to its own slot, so only the final merge is sequential.
func (s *Session) evaluateAll(
	ctx context.Context,
	passID string,
	constraints []*Constraint,
	view *factView,
	withMatches bool,
) ([]ConstraintMatchTotal, []error, int) {
	totals := make([]ConstraintMatchTotal, len(constraints))
	errs := make([]error, len(constraints))

	var pending []int
	cached := 0
	for i, c := range constraints {
		if hit, ok := s.cached(c, view, withMatches); ok {
			totals[i] = hit
			cached++
			s.notify(ctx, ConstraintEvaluation{
				PassID:  passID,
				Problem: s.set.schema.name,
				Total:   hit,
				Cached:  true,
				Started: time.Now(),
			})
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return totals, errs, cached
	}

	workQueue := make(chan int, len(pending))
	for _, i := range pending {
		workQueue <- i
	}
	close(workQueue)

	workerCount := s.workers
	if len(pending) < workerCount {
		workerCount = len(pending)
	}

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workQueue {
				c := constraints[i]
				if err := ctx.Err(); err != nil {
					errs[i] = NewEvaluationError("scoring pass cancelled", err).WithConstraint(c.name)
					continue
				}

				start := time.Now()
				total, err := c.evaluate(view, withMatches)
				totals[i] = total
				errs[i] = err
				s.notify(ctx, ConstraintEvaluation{
					PassID:   passID,
					Problem:  s.set.schema.name,
					Total:    total,
					Started:  start,
					Duration: time.Since(start),
					Err:      err,
				})
			}
		}()
	}
	wg.Wait()

	if s.incremental {
		for _, i := range pending {
			if errs[i] != nil {
				delete(s.cache, constraints[i])
				continue
			}
			s.cache[constraints[i]] = cachedTotal{
				versions:    versionsOf(constraints[i], view),
				total:       totals[i],
				withMatches: withMatches,
			}
		}
	}
	return totals, errs, cached
}

func (s *Session) cached(c *Constraint, view *factView, withMatches bool) (ConstraintMatchTotal, bool) {
	if !s.incremental {
		return ConstraintMatchTotal{}, false
	}
	entry, ok := s.cache[c]
	if !ok || (withMatches && !entry.withMatches) {
		return ConstraintMatchTotal{}, false
	}
	current := versionsOf(c, view)
	for i := range current {
		if current[i] != entry.versions[i] {
			return ConstraintMatchTotal{}, false
		}
	}
	total := entry.total
	if !withMatches {
		total.Matches = nil
	}
	return total, true
}

func versionsOf(c *Constraint, view *factView) []uint64 {
	types := c.referencedTypes()
	out := make([]uint64, len(types))
	for i, ft := range types {
		out[i] = view.versions[ft]
	}
	return out
}

func (s *Session) notify(ctx context.Context, ev ConstraintEvaluation) {
	for _, o := range s.observers {
		o.ConstraintEvaluated(ctx, ev)
	}
}
