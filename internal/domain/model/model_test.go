package model

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestActionNames(t *testing.T) {
	convey.Convey("Given the action type catalogue", t, func() {
		convey.Convey("Then known codes resolve to semantic names", func() {
			name, ok := ActionName(ActionSolvedTopic)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(name, convey.ShouldEqual, "solved_a_topic")
		})

		convey.Convey("Then unknown codes are rejected", func() {
			_, ok := ActionName(99)
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Then noise actions carry no metric name", func() {
			for _, code := range []int{ActionLinked, ActionReceivedResponse, ActionPostQuoted, ActionEditedPost, ActionWasMentioned} {
				_, ok := MetricName(code)
				convey.So(ok, convey.ShouldBeFalse)
			}
		})

		convey.Convey("Then scoring actions do", func() {
			name, ok := MetricName(ActionReplied)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(name, convey.ShouldEqual, "replied")
		})
	})
}

func TestEventFromRow(t *testing.T) {
	convey.Convey("Given a fetched report row", t, func() {
		row := map[string]any{
			"acting_username": "alice",
			"action_type":     float64(ActionReplied),
			"target_topic_id": float64(42),
			"target_post_id":  float64(7),
			"created_at":      "2025-06-01T09:30:00Z",
			"topic_title":     "week 3 doubts",
		}

		convey.Convey("When converted", func() {
			e, err := EventFromRow(row)

			convey.Convey("Then every field is mapped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(e.ActingUsername, convey.ShouldEqual, "alice")
				convey.So(e.ActionType, convey.ShouldEqual, ActionReplied)
				convey.So(e.TargetTopicID, convey.ShouldEqual, 42)
				convey.So(e.TargetPostID, convey.ShouldEqual, 7)
				convey.So(e.CreatedAt.Equal(time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)), convey.ShouldBeTrue)
				convey.So(e.TopicTitle, convey.ShouldEqual, "week 3 doubts")
			})
		})

		convey.Convey("When the timestamp uses the export layout without a zone", func() {
			row["created_at"] = "2025-06-01 09:30:00"
			e, err := EventFromRow(row)

			convey.So(err, convey.ShouldBeNil)
			convey.So(e.CreatedAt.IsZero(), convey.ShouldBeFalse)
		})

		convey.Convey("When the action type is missing", func() {
			delete(row, "action_type")
			_, err := EventFromRow(row)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestSanitizeKey(t *testing.T) {
	convey.Convey("Given raw category names", t, func() {
		cases := map[string]string{
			"Maths for Data Science II": "maths_for_data_science_ii",
			`Tools: "Intro"`:            "tools___intro_",
			"a/b\\c|d?e*f":              "a_b_c_d_e_f",
			"already_clean":             "already_clean",
		}
		for raw, want := range cases {
			convey.So(SanitizeKey(raw), convey.ShouldEqual, want)
		}
	})
}

func TestCategoryMap(t *testing.T) {
	convey.Convey("Given a category list with irrelevant entries", t, func() {
		cats := []Category{
			{ID: 1, Name: "Maths I"},
			{ID: 2, Name: "Staff Lounge"},
			{ID: 3, Name: "English II"},
		}

		convey.Convey("When built with an exclusion list", func() {
			m := NewCategoryMap(cats, []int64{2})

			convey.Convey("Then excluded ids are dropped", func() {
				convey.So(m.Len(), convey.ShouldEqual, 2)
				convey.So(m.Keys(), convey.ShouldContain, "maths_i")
				convey.So(m.Keys(), convey.ShouldNotContain, "staff_lounge")
			})
		})
	})
}

func TestIdentityMap(t *testing.T) {
	convey.Convey("Given an identity mapping", t, func() {
		m := IdentityMap{7: "alice"}

		name, ok := m.Username(7)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(name, convey.ShouldEqual, "alice")

		_, ok = m.Username(8)
		convey.So(ok, convey.ShouldBeFalse)
	})
}
