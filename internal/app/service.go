// Package app implements the engagement refresh engine: the single owner
// of the term/course dataset, its mappings and its lifecycle.
//
// All mutation goes through the four entry points (Bootstrap, LoadAll,
// Refresh, FullReset); everything else is read-only and safe to call from
// request handlers while background jobs are writing.
package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/campuspulse/engage/internal/adapters/alert"
	"github.com/campuspulse/engage/internal/adapters/discourse"
	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/domain/model"
	"github.com/campuspulse/engage/internal/domain/scoring"
	"github.com/campuspulse/engage/pkg/cache"
	"github.com/campuspulse/engage/pkg/logger"
	"github.com/campuspulse/engage/pkg/metrics"
)

// dateLayout is the dd-mm-yyyy form the report date filters accept.
const dateLayout = "02-01-2006"

const defaultTermsToKeep = 3

// Service owns the live dataset and coordinates every loader and job.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store    repository.Store
	runner   discourse.Runner
	notifier alert.Notifier
	cache    *cache.Cache

	// Mapping state, replaced wholesale by bootstrap and reset
	categories model.CategoryMap
	identities model.IdentityMap

	// Lifecycle state
	lastRefresh time.Time
	loaded      bool
	resetFailed bool
	resetReason string

	// Configuration
	termsToKeep   int
	orgDomain     string
	baseURL       string
	irrelevantIDs []int64
	courseScorer  *scoring.Scorer
	overallScorer *scoring.Scorer

	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the dataset store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRunner sets the report runner used for every external fetch.
func WithRunner(r discourse.Runner) Option {
	return func(s *Service) {
		if r != nil {
			s.runner = r
		}
	}
}

// WithNotifier sets the failure alert notifier.
func WithNotifier(n alert.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithCache sets the derived-payload cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithTermsToKeep sets how many terms the dataset retains.
func WithTermsToKeep(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.termsToKeep = n
		}
	}
}

// WithOrgDomain sets the email domain filter for the overall feed.
func WithOrgDomain(domain string) Option {
	return func(s *Service) {
		s.orgDomain = domain
	}
}

// WithBaseURL sets the analytics instance URL used to build topic links.
func WithBaseURL(u string) Option {
	return func(s *Service) {
		s.baseURL = u
	}
}

// WithIrrelevantCategoryIDs sets the category ids dropped from the catalogue.
func WithIrrelevantCategoryIDs(ids []int64) Option {
	return func(s *Service) {
		s.irrelevantIDs = append([]int64(nil), ids...)
	}
}

// WithCourseWeights sets the course-scoped score weight table.
func WithCourseWeights(w map[string]float64) Option {
	return func(s *Service) {
		if len(w) > 0 {
			s.courseScorer = scoring.NewScorer(scoring.WithWeights(w))
		}
	}
}

// WithOverallWeights sets the organization-wide score weight table.
func WithOverallWeights(w map[string]float64) Option {
	return func(s *Service) {
		if len(w) > 0 {
			s.overallScorer = scoring.NewScorer(scoring.WithWeights(w))
		}
	}
}

// WithClock injects the time source; tests pin it to fixed dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		store:         repository.NewMemStore(),
		cache:         cache.New(),
		termsToKeep:   defaultTermsToKeep,
		courseScorer:  scoring.NewScorer(scoring.WithWeights(scoring.DefaultCourseWeights())),
		overallScorer: scoring.NewScorer(scoring.WithWeights(scoring.DefaultOverallWeights())),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}
	return s
}

// Bucket returns the bucket for (term, courseKey). A course that failed to
// load still has a published empty bucket, so callers only see
// repository.ErrNotFound for genuinely unknown keys.
func (s *Service) Bucket(ctx context.Context, term, courseKey string) (repository.Bucket, error) {
	return s.store.Bucket(ctx, term, courseKey)
}

// Terms lists the published terms, newest first.
func (s *Service) Terms(ctx context.Context) []string {
	return s.store.Terms(ctx)
}

// CourseKeys lists the course keys published for a term.
func (s *Service) CourseKeys(ctx context.Context, term string) []string {
	return s.store.CourseKeys(ctx, term)
}

// IsLoaded reports whether the background full load has completed. Readers
// serve a "still loading" placeholder until it has.
func (s *Service) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// ResetStatus reports whether the last full reset failed, and why.
func (s *Service) ResetStatus() (failed bool, reason string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resetFailed, s.resetReason
}

// LastRefresh returns the date the dataset was last brought up to.
func (s *Service) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// ResolveUsername maps a numeric user-id key from the overall bucket to a
// username; the key itself is returned when the id is unknown.
func (s *Service) ResolveUsername(key string) string {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return key
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.identities.Username(id); ok {
		return name
	}
	return key
}

// Categories returns the current course catalogue.
func (s *Service) Categories() []model.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categories.All()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	ctx := context.Background()
	s.mu.RLock()
	loaded := s.loaded
	resetFailed := s.resetFailed
	lastRefresh := s.lastRefresh
	courses := s.categories.Len()
	users := len(s.identities)
	s.mu.RUnlock()

	terms := s.store.Terms(ctx)
	buckets := s.store.Count(ctx)
	metrics.UpdateDatasetSize(len(terms), buckets)

	return map[string]interface{}{
		"loaded":       loaded,
		"reset_failed": resetFailed,
		"last_refresh": lastRefresh.Format(dateLayout),
		"terms":        terms,
		"courses":      courses,
		"users":        users,
		"buckets":      buckets,
		"cached_views": s.cache.Len(),
	}
}

// setLoaded flips the loaded flag and mirrors it to metrics.
func (s *Service) setLoaded(v bool) {
	s.mu.Lock()
	s.loaded = v
	s.mu.Unlock()
	metrics.UpdateLoaded(v)
}

// lastRefreshDate returns the last refresh date formatted for report
// filters.
func (s *Service) lastRefreshDate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh.Format(dateLayout)
}

// setLastRefresh advances the last refresh date.
func (s *Service) setLastRefresh(t time.Time) {
	s.mu.Lock()
	s.lastRefresh = t
	s.mu.Unlock()
}
