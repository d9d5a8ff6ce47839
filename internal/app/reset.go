package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuspulse/engage/internal/adapters/discourse"
	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/domain/model"
	"github.com/campuspulse/engage/internal/domain/term"
	"github.com/campuspulse/engage/pkg/logger"
	"github.com/campuspulse/engage/pkg/metrics"
)

// snapshot is an immutable deep copy of everything FullReset can damage.
// Restoring is a reference swap, never a field-by-field copy-back.
type snapshot struct {
	data        map[string]repository.TermData
	categories  model.CategoryMap
	identities  model.IdentityMap
	lastRefresh time.Time
}

// takeSnapshot deep-copies the live state into a backup slot.
func (s *Service) takeSnapshot(ctx context.Context) snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identities := make(model.IdentityMap, len(s.identities))
	for id, name := range s.identities {
		identities[id] = name
	}
	return snapshot{
		data:        s.store.Snapshot(ctx),
		categories:  model.NewCategoryMap(s.categories.All(), nil),
		identities:  identities,
		lastRefresh: s.lastRefresh,
	}
}

// restoreSnapshot swaps the backup back into the live structures.
func (s *Service) restoreSnapshot(ctx context.Context, snap snapshot) {
	s.store.ReplaceAll(ctx, snap.data)
	s.mu.Lock()
	s.categories = snap.categories
	s.identities = snap.identities
	s.lastRefresh = snap.lastRefresh
	s.mu.Unlock()
	s.cache.Clear()
}

// FullReset rebuilds the entire dataset from scratch, reloading the
// category and identity mappings to pick up new courses and users. It is
// invoked only on trimester boundaries. On any failure the pre-reset
// snapshot is restored verbatim and the service keeps serving
// stale-but-consistent data: a failed reset must never leave the dataset
// empty or half-populated for live readers. The next boundary is the next
// attempt.
func (s *Service) FullReset(ctx context.Context) error {
	start := time.Now()
	today := s.now()
	s.logger.Info(ctx, "full reset starting", logger.String("date", today.Format(dateLayout)))

	snap := s.takeSnapshot(ctx)
	s.setLoaded(false)

	if err := s.rebuild(ctx, today); err != nil {
		s.restoreSnapshot(ctx, snap)
		s.mu.Lock()
		s.resetFailed = true
		s.resetReason = err.Error()
		s.mu.Unlock()
		// Stale data beats downtime: the restored snapshot is complete.
		s.setLoaded(true)

		if s.notifier != nil {
			// Fire-and-forget; a failed alert must not mask the reset error.
			s.notifier.Notify(ctx, "full system reset failed and was rolled back", err.Error())
		}
		metrics.RecordResetRun("rolled_back", time.Since(start).Seconds())
		s.logger.Error(ctx, "full reset rolled back", logger.Error(err))
		return fmt.Errorf("%w: %v", ErrResetFailed, err)
	}

	s.mu.Lock()
	s.lastRefresh = today
	s.resetFailed = false
	s.resetReason = ""
	s.mu.Unlock()
	s.setLoaded(true)
	s.cache.Clear()

	metrics.RecordResetRun("success", time.Since(start).Seconds())
	s.logger.Info(ctx, "full reset complete", logger.Duration("took", time.Since(start)))
	return nil
}

// rebuild reloads both mappings and reconstructs the dataset for the
// current and previous terms, swapping it in as one unit.
func (s *Service) rebuild(ctx context.Context, today time.Time) error {
	categories, err := s.loadCategories(ctx)
	if err != nil {
		return fmt.Errorf("reload categories: %w", err)
	}
	identities, err := s.loadIdentities(ctx)
	if err != nil {
		return fmt.Errorf("reload identities: %w", err)
	}

	s.mu.Lock()
	s.categories = categories
	s.identities = identities
	s.mu.Unlock()

	terms := term.Current(today).Previous(s.termsToKeep - 1)
	dataset, errs := s.buildDataset(ctx, terms)
	for _, e := range errs {
		// A rate-limited rebuild would swap in a mostly empty dataset;
		// keep the snapshot instead and let the next boundary retry.
		if errors.Is(e, discourse.ErrRateLimited) {
			return fmt.Errorf("rebuild dataset: %w", e)
		}
	}
	if len(errs) > 0 {
		// Other per-course failures do not abort the rebuild; the
		// affected buckets stay empty until the next refresh fills them.
		s.logger.Warn(ctx, "rebuild completed with errors", logger.Int("errors", len(errs)))
	}
	s.store.ReplaceAll(ctx, dataset)
	return nil
}
