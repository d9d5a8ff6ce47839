package app

import (
	"context"
	"fmt"
	"time"

	"github.com/campuspulse/engage/internal/adapters/discourse"
	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/domain/model"
	"github.com/campuspulse/engage/internal/domain/scoring"
	"github.com/campuspulse/engage/internal/domain/term"
	"github.com/campuspulse/engage/pkg/logger"
)

// Bootstrap performs the blocking fast-path startup: it loads the category
// and identity mappings and publishes empty-but-complete term shells so
// the service can accept requests immediately. The real data arrives later
// via LoadAll. Either mapping load failing is fatal; serving without
// mappings would make every downstream lookup wrong.
func (s *Service) Bootstrap(ctx context.Context) error {
	start := time.Now()
	s.logger.Info(ctx, "bootstrap: loading mappings")

	categories, err := s.loadCategories(ctx)
	if err != nil {
		return fmt.Errorf("%w: categories: %v", ErrBootstrapFailed, err)
	}
	identities, err := s.loadIdentities(ctx)
	if err != nil {
		return fmt.Errorf("%w: identities: %v", ErrBootstrapFailed, err)
	}

	s.mu.Lock()
	s.categories = categories
	s.identities = identities
	s.lastRefresh = s.now()
	s.mu.Unlock()

	// Publish a complete shell per term: every course key plus overall,
	// each with all four fields present (empty). Readers can hold a term
	// reference from the first request on.
	for _, t := range term.Current(s.now()).Previous(s.termsToKeep - 1) {
		s.store.PublishTerm(ctx, t.String(), s.emptyTermData())
	}

	s.logger.Info(ctx, "bootstrap complete",
		logger.Int("courses", categories.Len()),
		logger.Int("users", len(identities)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// loadCategories fetches and filters the course catalogue.
func (s *Service) loadCategories(ctx context.Context) (model.CategoryMap, error) {
	table, err := s.runner.RunReport(ctx, discourse.QueryCategories, nil)
	if err != nil {
		return model.CategoryMap{}, err
	}
	if table.Empty() {
		return model.CategoryMap{}, fmt.Errorf("category report returned no rows")
	}
	categories := make([]model.Category, 0, len(table.Rows))
	for _, row := range table.Rows {
		c, err := categoryFromRow(row)
		if err != nil {
			return model.CategoryMap{}, fmt.Errorf("category row: %w", err)
		}
		categories = append(categories, c)
	}
	return model.NewCategoryMap(categories, s.irrelevantIDs), nil
}

// loadIdentities fetches the user id to username mapping.
func (s *Service) loadIdentities(ctx context.Context) (model.IdentityMap, error) {
	table, err := s.runner.RunReport(ctx, discourse.QueryIdentityMapping, nil)
	if err != nil {
		return nil, err
	}
	if table.Empty() {
		return nil, fmt.Errorf("identity report returned no rows")
	}
	identities := make(model.IdentityMap, len(table.Rows))
	for _, row := range table.Rows {
		id, username, err := identityFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("identity row: %w", err)
		}
		identities[id] = username
	}
	return identities, nil
}

// emptyTermData builds a complete all-empty term: one bucket per known
// course plus the overall bucket.
func (s *Service) emptyTermData() repository.TermData {
	s.mu.RLock()
	keys := s.categories.Keys()
	s.mu.RUnlock()

	data := make(repository.TermData, len(keys)+1)
	for _, key := range keys {
		data[key] = s.emptyCourseBucket()
	}
	data[model.OverallKey] = s.emptyOverallBucket()
	return data
}

func (s *Service) emptyCourseBucket() repository.Bucket {
	return repository.Bucket{
		Events:        []model.Event{},
		RawMetrics:    scoring.MetricTable{KeyColumn: "acting_username"},
		Unnormalized:  scoring.ScoreTable{KeyColumn: "acting_username"},
		LogNormalized: scoring.ScoreTable{KeyColumn: "acting_username"},
	}
}

func (s *Service) emptyOverallBucket() repository.Bucket {
	return repository.Bucket{
		Events:        []model.Event{},
		RawMetrics:    scoring.MetricTable{KeyColumn: "user_id"},
		Unnormalized:  scoring.ScoreTable{KeyColumn: "user_id"},
		LogNormalized: scoring.ScoreTable{KeyColumn: "user_id"},
	}
}

func categoryFromRow(row discourse.Row) (model.Category, error) {
	id, err := model.AsInt(row["category_id"])
	if err != nil {
		return model.Category{}, fmt.Errorf("category_id: %w", err)
	}
	name := model.AsString(row["name"])
	if name == "" {
		return model.Category{}, fmt.Errorf("category %d has no name", id)
	}
	return model.Category{ID: id, Name: name}, nil
}

func identityFromRow(row discourse.Row) (int64, string, error) {
	id, err := model.AsInt(row["user_id"])
	if err != nil {
		return 0, "", fmt.Errorf("user_id: %w", err)
	}
	username := model.AsString(row["username"])
	if username == "" {
		return 0, "", fmt.Errorf("user %d has no username", id)
	}
	return id, username, nil
}
