package scoring

import (
	"math"
	"sort"
)

// Scorer computes weighted engagement scores from a raw metric table.
type Scorer struct {
	weights Weights
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights replaces the scorer's weight table. The map is copied so a
// later configuration reload cannot mutate scores mid-computation.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		if len(w) == 0 {
			return
		}
		s.weights = make(Weights, len(w))
		for name, v := range w {
			s.weights[name] = v
		}
	}
}

// NewScorer creates a Scorer; defaults to the course weight table.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultCourseWeights()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weights returns a copy of the active weight table.
func (s *Scorer) Weights() Weights {
	out := make(Weights, len(s.weights))
	for name, v := range s.weights {
		out[name] = v
	}
	return out
}

// Unnormalized computes score = sum(count * weight) per row, then ranks
// rows by z-score. Empty input yields an empty table.
func (s *Scorer) Unnormalized(t MetricTable) ScoreTable {
	return s.score(t, func(v float64) float64 { return v })
}

// LogNormalized computes score = sum(log1p(count) * weight) per row to
// dampen outliers, then ranks rows by z-score.
func (s *Scorer) LogNormalized(t MetricTable) ScoreTable {
	return s.score(t, math.Log1p)
}

func (s *Scorer) score(t MetricTable, transform func(float64) float64) ScoreTable {
	out := ScoreTable{KeyColumn: t.KeyColumn, Metrics: t.Metrics}
	if t.Empty() {
		return out
	}
	out.Rows = make([]ScoreRow, len(t.Rows))
	for i, row := range t.Rows {
		var score float64
		counts := make(map[string]float64, len(row.Counts))
		for name, v := range row.Counts {
			counts[name] = v
			if w, ok := s.weights[name]; ok {
				score += transform(v) * w
			}
		}
		out.Rows[i] = ScoreRow{Key: row.Key, Counts: counts, Score: score}
	}
	applyZScores(out.Rows)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		if out.Rows[i].ZScore != out.Rows[j].ZScore {
			return out.Rows[i].ZScore > out.Rows[j].ZScore
		}
		return out.Rows[i].Key < out.Rows[j].Key
	})
	return out
}

// applyZScores sets ZScore = (score - mean) / stdev, rounded to two
// decimals. A zero (or undefined) standard deviation yields z = 0 for
// every row rather than an error.
func applyZScores(rows []ScoreRow) {
	n := float64(len(rows))
	var sum float64
	for _, r := range rows {
		sum += r.Score
	}
	mean := sum / n
	var sq float64
	for _, r := range rows {
		d := r.Score - mean
		sq += d * d
	}
	var std float64
	if len(rows) > 1 {
		// sample standard deviation, n-1 divisor
		std = math.Sqrt(sq / (n - 1))
	}
	for i := range rows {
		if std == 0 {
			rows[i].ZScore = 0
			continue
		}
		rows[i].ZScore = round2((rows[i].Score - mean) / std)
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
