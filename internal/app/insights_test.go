package app_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/app"
	"github.com/campuspulse/engage/internal/domain/model"
)

func insightEvent(user string, action int, topic int64, at time.Time) model.Event {
	return model.Event{
		ActingUsername: user,
		ActionType:     action,
		TargetTopicID:  topic,
		CreatedAt:      at,
		TopicTitle:     "topic title",
	}
}

func TestTrendingTopics(t *testing.T) {
	Convey("Given a current-term event log", t, func() {
		ctx := context.Background()
		now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemStore()
		svc := app.New(
			app.WithStore(store),
			app.WithClock(func() time.Time { return now }),
			app.WithBaseURL("https://forum.example.edu"),
		)

		fresh := now.Add(-48 * time.Hour)
		stale := now.Add(-30 * 24 * time.Hour)
		events := []model.Event{
			// Hot: created two days ago, lots of weighted actions.
			insightEvent("alice", model.ActionCreatedNewTopic, 1, fresh),
			insightEvent("bob", model.ActionReceivedResponse, 1, fresh.Add(time.Hour)),
			insightEvent("carol", model.ActionPostQuoted, 1, fresh.Add(2*time.Hour)),
			insightEvent("dana", model.ActionLikesGiven, 1, fresh.Add(3*time.Hour)),
			// Lukewarm: same age, one like.
			insightEvent("alice", model.ActionCreatedNewTopic, 2, fresh),
			insightEvent("bob", model.ActionLikesGiven, 2, fresh.Add(time.Hour)),
			// Old: heavy activity but outside the window.
			insightEvent("alice", model.ActionCreatedNewTopic, 3, stale),
			insightEvent("bob", model.ActionPostQuoted, 3, stale.Add(time.Hour)),
		}
		store.PublishTerm(ctx, "t2-2025", repository.TermData{"maths_i": {Events: events}})

		Convey("When the trending ranking is computed", func() {
			topics, err := svc.TrendingTopics(ctx, "maths_i")

			Convey("Then only topics created inside the window rank", func() {
				So(err, ShouldBeNil)
				So(len(topics), ShouldEqual, 2)
				So(topics[0].TopicID, ShouldEqual, 1)
				So(topics[1].TopicID, ShouldEqual, 2)
			})

			Convey("Then entries carry action counts and a topic link", func() {
				So(topics[0].ResponseCount, ShouldEqual, 1)
				So(topics[0].QuoteCount, ShouldEqual, 1)
				So(topics[0].LikeCount, ShouldEqual, 1)
				So(topics[0].URL, ShouldEqual, "https://forum.example.edu/t/1")
				So(topics[0].Score, ShouldBeGreaterThan, topics[1].Score)
			})

			Convey("Then the second call is served from cache", func() {
				store.Evict(ctx, "t2-2025")
				again, err := svc.TrendingTopics(ctx, "maths_i")
				So(err, ShouldBeNil)
				So(again, ShouldResemble, topics)
			})
		})

		Convey("When the course has no activity yet", func() {
			store.PublishTerm(ctx, "t2-2025", repository.TermData{"maths_i": {Events: []model.Event{}}})
			_, err := svc.TrendingTopics(ctx, "maths_i")

			So(err, ShouldWrap, app.ErrNoActivity)
		})

		Convey("When the course is unknown", func() {
			_, err := svc.TrendingTopics(ctx, "ghost_course")
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})
}

func TestFirstResponders(t *testing.T) {
	Convey("Given topics with replies", t, func() {
		ctx := context.Background()
		now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemStore()
		svc := app.New(app.WithStore(store), app.WithClock(func() time.Time { return now }))

		base := now.Add(-72 * time.Hour)
		events := []model.Event{
			insightEvent("alice", model.ActionCreatedNewTopic, 1, base),
			insightEvent("carol", model.ActionReplied, 1, base.Add(2*time.Hour)),
			insightEvent("bob", model.ActionReplied, 1, base.Add(time.Hour)), // earliest reply, out of order
			insightEvent("alice", model.ActionCreatedNewTopic, 2, base),
			insightEvent("bob", model.ActionReceivedResponse, 2, base.Add(30*time.Minute)),
			insightEvent("alice", model.ActionCreatedNewTopic, 3, base),
			insightEvent("carol", model.ActionReplied, 3, base.Add(10*time.Minute)),
			// A reply stamped before its topic cannot be a response to it.
			insightEvent("dana", model.ActionReplied, 3, base.Add(-time.Hour)),
		}
		store.PublishTerm(ctx, "t2-2025", repository.TermData{"maths_i": {Events: events}})

		Convey("When the ranking is computed", func() {
			responders, err := svc.FirstResponders(ctx, "maths_i")

			Convey("Then each topic credits its earliest responder", func() {
				So(err, ShouldBeNil)
				So(responders, ShouldResemble, []app.FirstResponder{
					{Username: "bob", Count: 2},
					{Username: "carol", Count: 1},
				})
			})
		})

		Convey("When there is no activity", func() {
			store.PublishTerm(ctx, "t2-2025", repository.TermData{"maths_i": {}})
			_, err := svc.FirstResponders(ctx, "maths_i")
			So(err, ShouldWrap, app.ErrNoActivity)
		})
	})
}
