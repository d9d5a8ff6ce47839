// Package scoring turns raw action events into per-user engagement scores.
//
// The pipeline has three stages: a raw metric table (one row per user, one
// column per retained action name), an unnormalized weighted score and a
// log-dampened weighted score. Both score variants are ranked by z-score.
package scoring

import (
	"sort"
	"strconv"
	"strings"

	"github.com/campuspulse/engage/internal/domain/model"
)

// Weights maps metric column names to their score contribution per count.
type Weights map[string]float64

// DefaultCourseWeights returns the weight table for course-scoped scores.
// solved_a_topic dominates: solving threads is the behaviour the score
// is meant to surface.
func DefaultCourseWeights() Weights {
	return Weights{
		"likes_given":       0.3,
		"likes_received":    0.8,
		"created_new_topic": 0.5,
		"replied":           0.7,
		"solved_a_topic":    10,
	}
}

// DefaultOverallWeights returns the weight table for organization-wide
// scores computed from the per-user engagement count feed.
func DefaultOverallWeights() Weights {
	return Weights{
		"likes_given":    0.4,
		"likes_received": 0.8,
		"topics_created": 0.4,
		"posts_created":  0.7,
		"days_visited":   0.3,
		"solutions":      3,
	}
}

// columns returns the weight table's metric names in sorted order.
func (w Weights) columns() []string {
	cols := make([]string, 0, len(w))
	for name := range w {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// MetricRow holds one user's counts per metric column.
type MetricRow struct {
	Key    string             `json:"key"`
	Counts map[string]float64 `json:"counts"`
}

// MetricTable is the raw metric stage: rows keyed by user, columns by
// metric name. Rows are sorted by key; missing combinations count as 0.
type MetricTable struct {
	KeyColumn string      `json:"key_column"`
	Metrics   []string    `json:"metrics"`
	Rows      []MetricRow `json:"rows"`
}

// Empty reports whether the table has no rows.
func (t MetricTable) Empty() bool {
	return len(t.Rows) == 0
}

// ScoreRow carries a user's counts plus the weighted score and its z-score.
type ScoreRow struct {
	Key    string             `json:"key"`
	Counts map[string]float64 `json:"counts"`
	Score  float64            `json:"score"`
	ZScore float64            `json:"z_score"`
}

// ScoreTable is a scored variant of a MetricTable, sorted by z-score
// descending.
type ScoreTable struct {
	KeyColumn string     `json:"key_column"`
	Metrics   []string   `json:"metrics"`
	Rows      []ScoreRow `json:"rows"`
}

// Empty reports whether the table has no rows.
func (t ScoreTable) Empty() bool {
	return len(t.Rows) == 0
}

// CourseMetrics cross-tabulates action events into a raw metric table
// keyed by acting username. Unknown and excluded action types are dropped.
func CourseMetrics(events []model.Event) MetricTable {
	t := MetricTable{KeyColumn: "acting_username"}
	if len(events) == 0 {
		return t
	}
	byUser := make(map[string]map[string]float64)
	seen := make(map[string]struct{})
	for _, e := range events {
		name, ok := model.MetricName(e.ActionType)
		if !ok || e.ActingUsername == "" {
			continue
		}
		counts, ok := byUser[e.ActingUsername]
		if !ok {
			counts = make(map[string]float64)
			byUser[e.ActingUsername] = counts
		}
		counts[name]++
		seen[name] = struct{}{}
	}
	if len(byUser) == 0 {
		return t
	}
	for name := range seen {
		t.Metrics = append(t.Metrics, name)
	}
	sort.Strings(t.Metrics)
	for user, counts := range byUser {
		row := MetricRow{Key: user, Counts: make(map[string]float64, len(t.Metrics))}
		for _, name := range t.Metrics {
			row.Counts[name] = counts[name]
		}
		t.Rows = append(t.Rows, row)
	}
	sort.Slice(t.Rows, func(i, j int) bool { return t.Rows[i].Key < t.Rows[j].Key })
	return t
}

// OverallMetrics projects the organization-wide engagement feed onto the
// weight table's columns, summing counts per user id. Rows lacking a
// user_id are dropped.
func OverallMetrics(rows []map[string]any, weights Weights) MetricTable {
	t := MetricTable{KeyColumn: "user_id", Metrics: weights.columns()}
	if len(rows) == 0 {
		t.Metrics = nil
		return t
	}
	byUser := make(map[string]map[string]float64)
	for _, row := range rows {
		key := userID(row)
		if key == "" {
			continue
		}
		counts, ok := byUser[key]
		if !ok {
			counts = make(map[string]float64, len(t.Metrics))
			byUser[key] = counts
		}
		for _, name := range t.Metrics {
			counts[name] += numeric(row[name])
		}
	}
	if len(byUser) == 0 {
		return MetricTable{KeyColumn: "user_id"}
	}
	for user, counts := range byUser {
		t.Rows = append(t.Rows, MetricRow{Key: user, Counts: counts})
	}
	sort.Slice(t.Rows, func(i, j int) bool { return t.Rows[i].Key < t.Rows[j].Key })
	return t
}

// CombineSum merges two metric tables by summing counts per key. Exact
// duplicate rows (same key, same counts) are dropped first, so replaying
// an already-merged delta does not double-count. Used by the incremental
// refresh, where the overall feed is grouped by user id rather than
// deduplicated row-wise.
func CombineSum(a, b MetricTable) MetricTable {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	out := MetricTable{KeyColumn: a.KeyColumn, Metrics: unionColumns(a.Metrics, b.Metrics)}
	byKey := make(map[string]map[string]float64, len(a.Rows)+len(b.Rows))
	seen := make(map[string]struct{}, len(a.Rows)+len(b.Rows))
	for _, src := range []MetricTable{a, b} {
		for _, row := range src.Rows {
			fp := rowFingerprint(row, out.Metrics)
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			counts, ok := byKey[row.Key]
			if !ok {
				counts = make(map[string]float64, len(out.Metrics))
				byKey[row.Key] = counts
			}
			for name, v := range row.Counts {
				counts[name] += v
			}
		}
	}
	for key, counts := range byKey {
		for _, name := range out.Metrics {
			if _, ok := counts[name]; !ok {
				counts[name] = 0
			}
		}
		out.Rows = append(out.Rows, MetricRow{Key: key, Counts: counts})
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].Key < out.Rows[j].Key })
	return out
}

// rowFingerprint canonically encodes a row's key and counts over the
// given column order.
func rowFingerprint(row MetricRow, columns []string) string {
	var sb strings.Builder
	sb.WriteString(row.Key)
	for _, name := range columns {
		sb.WriteByte('|')
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(row.Counts[name], 'g', -1, 64))
	}
	return sb.String()
}

func unionColumns(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, src := range [][]string{a, b} {
		for _, name := range src {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func userID(row map[string]any) string {
	switch v := row["user_id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func numeric(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
