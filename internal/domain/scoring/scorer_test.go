package scoring

import (
	"math"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func metricTable(rows ...MetricRow) MetricTable {
	return MetricTable{
		KeyColumn: "acting_username",
		Metrics:   DefaultCourseWeights().columns(),
		Rows:      rows,
	}
}

func TestUnnormalizedScores(t *testing.T) {
	convey.Convey("Given the default course weights", t, func() {
		scorer := NewScorer()

		convey.Convey("When a user gave 2 likes, received 1, created 1 topic and solved 1", func() {
			table := metricTable(MetricRow{Key: "alice", Counts: map[string]float64{
				"likes_given":       2,
				"likes_received":    1,
				"created_new_topic": 1,
				"replied":           0,
				"solved_a_topic":    1,
			}})
			scored := scorer.Unnormalized(table)

			convey.Convey("Then the weighted score is 11.9", func() {
				convey.So(scored.Rows[0].Score, convey.ShouldAlmostEqual, 11.9, 1e-9)
			})

			convey.Convey("Then a single row gets z-score zero", func() {
				convey.So(scored.Rows[0].ZScore, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When several users have identical scores", func() {
			same := map[string]float64{"likes_given": 1}
			scored := scorer.Unnormalized(metricTable(
				MetricRow{Key: "a", Counts: same},
				MetricRow{Key: "b", Counts: same},
				MetricRow{Key: "c", Counts: same},
			))

			convey.Convey("Then zero spread yields z-score zero everywhere", func() {
				for _, row := range scored.Rows {
					convey.So(row.ZScore, convey.ShouldEqual, 0)
				}
			})
		})

		convey.Convey("When users have distinct scores", func() {
			scored := scorer.Unnormalized(metricTable(
				MetricRow{Key: "low", Counts: map[string]float64{"likes_given": 1}},
				MetricRow{Key: "mid", Counts: map[string]float64{"replied": 2}},
				MetricRow{Key: "high", Counts: map[string]float64{"solved_a_topic": 3}},
			))

			convey.Convey("Then rows come back ranked by z-score descending", func() {
				convey.So(scored.Rows[0].Key, convey.ShouldEqual, "high")
				convey.So(scored.Rows[2].Key, convey.ShouldEqual, "low")
				convey.So(scored.Rows[0].ZScore, convey.ShouldBeGreaterThan, scored.Rows[2].ZScore)
			})

			convey.Convey("Then z-scores are centred and rounded to two decimals", func() {
				var sum float64
				for _, row := range scored.Rows {
					sum += row.ZScore
					convey.So(row.ZScore, convey.ShouldAlmostEqual, math.Round(row.ZScore*100)/100, 1e-12)
				}
				convey.So(sum, convey.ShouldAlmostEqual, 0, 0.05)
			})

			convey.Convey("Then scoring is deterministic", func() {
				again := scorer.Unnormalized(metricTable(
					MetricRow{Key: "low", Counts: map[string]float64{"likes_given": 1}},
					MetricRow{Key: "mid", Counts: map[string]float64{"replied": 2}},
					MetricRow{Key: "high", Counts: map[string]float64{"solved_a_topic": 3}},
				))
				convey.So(again, convey.ShouldResemble, scored)
			})
		})

		convey.Convey("When the metric table is empty", func() {
			scored := scorer.Unnormalized(MetricTable{KeyColumn: "acting_username"})
			convey.So(scored.Empty(), convey.ShouldBeTrue)
		})
	})
}

func TestLogNormalizedScores(t *testing.T) {
	convey.Convey("Given a metric table with an outlier", t, func() {
		scorer := NewScorer()
		table := metricTable(
			MetricRow{Key: "steady", Counts: map[string]float64{"replied": 10}},
			MetricRow{Key: "spammer", Counts: map[string]float64{"likes_given": 1000}},
		)

		convey.Convey("When scored with the log transform", func() {
			scored := scorer.LogNormalized(table)

			convey.Convey("Then counts are dampened before weighting", func() {
				var spammer ScoreRow
				for _, row := range scored.Rows {
					if row.Key == "spammer" {
						spammer = row
					}
				}
				convey.So(spammer.Score, convey.ShouldAlmostEqual, math.Log1p(1000)*0.3, 1e-9)
			})

			convey.Convey("Then the raw counts column is untouched", func() {
				for _, row := range scored.Rows {
					if row.Key == "spammer" {
						convey.So(row.Counts["likes_given"], convey.ShouldEqual, 1000)
					}
				}
			})
		})
	})
}

func TestScorerOptions(t *testing.T) {
	convey.Convey("Given a custom weight table", t, func() {
		custom := Weights{"replied": 2}
		scorer := NewScorer(WithWeights(custom))

		convey.Convey("Then the scorer holds a copy, not the caller's map", func() {
			custom["replied"] = 99
			convey.So(scorer.Weights()["replied"], convey.ShouldEqual, 2)
		})

		convey.Convey("Then an empty override keeps the defaults", func() {
			fallback := NewScorer(WithWeights(nil))
			convey.So(fallback.Weights(), convey.ShouldResemble, DefaultCourseWeights())
		})
	})
}
