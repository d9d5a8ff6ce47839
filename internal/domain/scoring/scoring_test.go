package scoring

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/campuspulse/engage/internal/domain/model"
)

func event(user string, action int) model.Event {
	return model.Event{
		ActingUsername: user,
		ActionType:     action,
		CreatedAt:      time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCourseMetrics(t *testing.T) {
	convey.Convey("Given a course event log", t, func() {
		events := []model.Event{
			event("alice", model.ActionLikesGiven),
			event("alice", model.ActionLikesGiven),
			event("alice", model.ActionReplied),
			event("bob", model.ActionLikesReceived),
			event("bob", model.ActionSolvedTopic),
		}

		convey.Convey("When cross-tabulated", func() {
			table := CourseMetrics(events)

			convey.Convey("Then rows are keyed and sorted by username", func() {
				convey.So(table.KeyColumn, convey.ShouldEqual, "acting_username")
				convey.So(len(table.Rows), convey.ShouldEqual, 2)
				convey.So(table.Rows[0].Key, convey.ShouldEqual, "alice")
				convey.So(table.Rows[1].Key, convey.ShouldEqual, "bob")
			})

			convey.Convey("Then counts reflect the events, with zeros filled in", func() {
				convey.So(table.Rows[0].Counts["likes_given"], convey.ShouldEqual, 2)
				convey.So(table.Rows[0].Counts["replied"], convey.ShouldEqual, 1)
				convey.So(table.Rows[0].Counts["solved_a_topic"], convey.ShouldEqual, 0)
				convey.So(table.Rows[1].Counts["solved_a_topic"], convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the log contains excluded and anonymous actions", func() {
			noisy := append(events,
				event("alice", model.ActionWasMentioned),
				event("alice", model.ActionLinked),
				event("", model.ActionReplied),
			)
			table := CourseMetrics(noisy)

			convey.Convey("Then they do not contribute columns or rows", func() {
				convey.So(table.Metrics, convey.ShouldNotContain, "user_was_mentioned")
				convey.So(table.Metrics, convey.ShouldNotContain, "linked")
				convey.So(len(table.Rows), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the log is empty", func() {
			table := CourseMetrics(nil)

			convey.Convey("Then the table is empty but keyed", func() {
				convey.So(table.Empty(), convey.ShouldBeTrue)
				convey.So(table.KeyColumn, convey.ShouldEqual, "acting_username")
			})
		})
	})
}

func TestOverallMetrics(t *testing.T) {
	convey.Convey("Given an organization-wide engagement feed", t, func() {
		weights := DefaultOverallWeights()
		rows := []map[string]any{
			{"user_id": float64(7), "likes_given": float64(2), "solutions": float64(1)},
			{"user_id": float64(7), "likes_given": float64(3)},
			{"user_id": "9", "posts_created": float64(4)},
			{"no_id": "dropped"},
		}

		convey.Convey("When projected onto the weight columns", func() {
			table := OverallMetrics(rows, weights)

			convey.Convey("Then counts are summed per user id", func() {
				convey.So(table.KeyColumn, convey.ShouldEqual, "user_id")
				convey.So(len(table.Rows), convey.ShouldEqual, 2)
				convey.So(table.Rows[0].Key, convey.ShouldEqual, "7")
				convey.So(table.Rows[0].Counts["likes_given"], convey.ShouldEqual, 5)
				convey.So(table.Rows[0].Counts["solutions"], convey.ShouldEqual, 1)
				convey.So(table.Rows[1].Counts["posts_created"], convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the feed is empty", func() {
			table := OverallMetrics(nil, weights)
			convey.So(table.Empty(), convey.ShouldBeTrue)
		})
	})
}

func TestCombineSum(t *testing.T) {
	convey.Convey("Given two overall metric tables", t, func() {
		weights := DefaultOverallWeights()
		base := OverallMetrics([]map[string]any{
			{"user_id": float64(1), "likes_given": float64(2)},
			{"user_id": float64(2), "solutions": float64(1)},
		}, weights)
		delta := OverallMetrics([]map[string]any{
			{"user_id": float64(1), "likes_given": float64(1)},
			{"user_id": float64(3), "days_visited": float64(5)},
		}, weights)

		convey.Convey("When combined", func() {
			merged := CombineSum(base, delta)

			convey.Convey("Then per-key counts are summed across tables", func() {
				convey.So(len(merged.Rows), convey.ShouldEqual, 3)
				convey.So(merged.Rows[0].Key, convey.ShouldEqual, "1")
				convey.So(merged.Rows[0].Counts["likes_given"], convey.ShouldEqual, 3)
				convey.So(merged.Rows[2].Counts["days_visited"], convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When a table is combined with itself", func() {
			merged := CombineSum(base, base)

			convey.Convey("Then exact duplicate rows do not double-count", func() {
				convey.So(len(merged.Rows), convey.ShouldEqual, 2)
				convey.So(merged.Rows[0].Counts["likes_given"], convey.ShouldEqual, 2)
				convey.So(merged.Rows[1].Counts["solutions"], convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When one side is empty", func() {
			convey.So(CombineSum(base, MetricTable{}), convey.ShouldResemble, base)
			convey.So(CombineSum(MetricTable{}, delta), convey.ShouldResemble, delta)
		})
	})
}
