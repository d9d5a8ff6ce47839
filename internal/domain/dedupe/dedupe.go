// Package dedupe removes duplicate action events when merging incremental
// batches into an existing event log.
//
// Duplicate detection uses full-row equality: two events collide only when
// every field matches. Rows are fingerprinted with xxhash over a canonical
// encoding so merges stay O(n) and idempotent.
package dedupe

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/campuspulse/engage/internal/domain/model"
)

// Fingerprint returns a stable 64-bit hash of every field of the event.
func Fingerprint(e model.Event) uint64 {
	var d xxhash.Digest
	// Field separator guards against ambiguous concatenations.
	_, _ = fmt.Fprintf(&d, "%s\x1f%d\x1f%d\x1f%d\x1f%s\x1f%s",
		e.ActingUsername,
		e.ActionType,
		e.TargetTopicID,
		e.TargetPostID,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.TopicTitle,
	)
	return d.Sum64()
}

// set tracks seen fingerprints for one merge pass.
type set struct {
	seen map[uint64]struct{}
}

func newSet(capacity int) *set {
	return &set{seen: make(map[uint64]struct{}, capacity)}
}

// seenAndRecord reports whether e was already recorded, recording it if not.
func (s *set) seenAndRecord(e model.Event) bool {
	fp := Fingerprint(e)
	if _, ok := s.seen[fp]; ok {
		return true
	}
	s.seen[fp] = struct{}{}
	return false
}

// Merge appends incoming events to existing, dropping rows already present.
// First-seen order is preserved, so Merge(Merge(a, b), b) == Merge(a, b).
// The returned slice is freshly allocated; inputs are not mutated.
func Merge(existing, incoming []model.Event) []model.Event {
	out := make([]model.Event, 0, len(existing)+len(incoming))
	s := newSet(len(existing) + len(incoming))
	for _, e := range existing {
		if s.seenAndRecord(e) {
			continue
		}
		out = append(out, e)
	}
	for _, e := range incoming {
		if s.seenAndRecord(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}
