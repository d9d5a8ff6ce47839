// Package repository holds the authoritative in-memory engagement dataset:
// term -> course key -> bucket, plus the reserved "overall" bucket per term.
package repository

import (
	"context"

	"github.com/campuspulse/engage/internal/domain/model"
	"github.com/campuspulse/engage/internal/domain/scoring"
)

// Bucket is the derived-data record for one (term, course key) pair.
// All four fields are always set together; readers never observe a bucket
// with only some of them populated. Events is empty for the overall bucket,
// whose metric feed is already aggregated at the source.
type Bucket struct {
	Events        []model.Event
	RawMetrics    scoring.MetricTable
	Unnormalized  scoring.ScoreTable
	LogNormalized scoring.ScoreTable
}

// Clone returns a deep copy of the bucket; backup snapshots must not alias
// live structures.
func (b Bucket) Clone() Bucket {
	out := Bucket{
		RawMetrics:    cloneMetricTable(b.RawMetrics),
		Unnormalized:  cloneScoreTable(b.Unnormalized),
		LogNormalized: cloneScoreTable(b.LogNormalized),
	}
	if b.Events != nil {
		out.Events = make([]model.Event, len(b.Events))
		copy(out.Events, b.Events)
	}
	return out
}

// TermData maps course keys (plus model.OverallKey) to buckets for one term.
type TermData map[string]Bucket

// Clone returns a deep copy of the term data.
func (d TermData) Clone() TermData {
	out := make(TermData, len(d))
	for key, b := range d {
		out[key] = b.Clone()
	}
	return out
}

// Store provides synchronized access to the term/course dataset.
// Implementations must let concurrent readers run against background
// writers without ever exposing a partially written term.
type Store interface {
	// Bucket returns the bucket for (term, courseKey).
	// Returns ErrNotFound if either key is unknown.
	Bucket(ctx context.Context, term, courseKey string) (Bucket, error)

	// SetBucket overwrites one bucket as a unit. The term must already be
	// published. Returns ErrNotFound for an unknown term.
	SetBucket(ctx context.Context, term, courseKey string, b Bucket) error

	// PublishTerm installs a fully built term in one step, so readers see
	// either no term or a complete one.
	PublishTerm(ctx context.Context, term string, data TermData)

	// ReplaceAll swaps the entire dataset, used by full loads and rollback.
	ReplaceAll(ctx context.Context, data map[string]TermData)

	// Snapshot returns a deep copy of the entire dataset.
	Snapshot(ctx context.Context) map[string]TermData

	// Terms lists known terms in descending chronological order.
	Terms(ctx context.Context) []string

	// CourseKeys lists the course keys published for a term.
	CourseKeys(ctx context.Context, term string) []string

	// HasTerm reports whether the term is published.
	HasTerm(ctx context.Context, term string) bool

	// Evict removes a term; no-op if absent.
	Evict(ctx context.Context, term string)

	// Count returns the total number of buckets across all terms.
	Count(ctx context.Context) int
}

func cloneMetricTable(t scoring.MetricTable) scoring.MetricTable {
	out := scoring.MetricTable{KeyColumn: t.KeyColumn}
	if t.Metrics != nil {
		out.Metrics = append([]string(nil), t.Metrics...)
	}
	if t.Rows != nil {
		out.Rows = make([]scoring.MetricRow, len(t.Rows))
		for i, row := range t.Rows {
			out.Rows[i] = scoring.MetricRow{Key: row.Key, Counts: cloneCounts(row.Counts)}
		}
	}
	return out
}

func cloneScoreTable(t scoring.ScoreTable) scoring.ScoreTable {
	out := scoring.ScoreTable{KeyColumn: t.KeyColumn}
	if t.Metrics != nil {
		out.Metrics = append([]string(nil), t.Metrics...)
	}
	if t.Rows != nil {
		out.Rows = make([]scoring.ScoreRow, len(t.Rows))
		for i, row := range t.Rows {
			out.Rows[i] = scoring.ScoreRow{
				Key:    row.Key,
				Counts: cloneCounts(row.Counts),
				Score:  row.Score,
				ZScore: row.ZScore,
			}
		}
	}
	return out
}

func cloneCounts(counts map[string]float64) map[string]float64 {
	if counts == nil {
		return nil
	}
	out := make(map[string]float64, len(counts))
	for name, v := range counts {
		out[name] = v
	}
	return out
}
