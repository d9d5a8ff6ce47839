package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/campuspulse/engage/internal/adapters/discourse"
	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/app"
	"github.com/campuspulse/engage/internal/domain/model"
	"github.com/campuspulse/engage/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// fakeRunner scripts report responses per query id and records every call.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []runnerCall
	handler func(queryID int, params map[string]string) (discourse.Table, error)
}

type runnerCall struct {
	queryID int
	params  map[string]string
}

func (f *fakeRunner) RunReport(_ context.Context, queryID int, params map[string]string) (discourse.Table, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runnerCall{queryID: queryID, params: params})
	f.mu.Unlock()
	return f.handler(queryID, params)
}

func (f *fakeRunner) callsFor(queryID int) []runnerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []runnerCall
	for _, c := range f.calls {
		if c.queryID == queryID {
			out = append(out, c)
		}
	}
	return out
}

// fakeNotifier records alert invocations.
type fakeNotifier struct {
	mu      sync.Mutex
	reasons []string
	details []string
}

func (f *fakeNotifier) Notify(_ context.Context, reason, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	f.details = append(f.details, detail)
}

func categoriesTable(pairs ...any) discourse.Table {
	t := discourse.Table{Columns: []string{"category_id", "name"}}
	for i := 0; i < len(pairs); i += 2 {
		t.Rows = append(t.Rows, discourse.Row{
			"category_id": pairs[i],
			"name":        pairs[i+1],
		})
	}
	return t
}

func identitiesTable(pairs ...any) discourse.Table {
	t := discourse.Table{Columns: []string{"user_id", "username"}}
	for i := 0; i < len(pairs); i += 2 {
		t.Rows = append(t.Rows, discourse.Row{
			"user_id":  pairs[i],
			"username": pairs[i+1],
		})
	}
	return t
}

func eventRow(user string, action int, topic int64, createdAt string) discourse.Row {
	return discourse.Row{
		"acting_username": user,
		"action_type":     float64(action),
		"target_topic_id": float64(topic),
		"target_post_id":  float64(0),
		"created_at":      createdAt,
		"topic_title":     fmt.Sprintf("topic %d", topic),
	}
}

func eventsTable(rows ...discourse.Row) discourse.Table {
	return discourse.Table{
		Columns: []string{"acting_username", "action_type", "target_topic_id", "target_post_id", "created_at", "topic_title"},
		Rows:    rows,
	}
}

func overallTable(rows ...discourse.Row) discourse.Table {
	return discourse.Table{
		Columns: []string{"user_id", "likes_given", "solutions"},
		Rows:    rows,
	}
}

// fixedClock pins the service clock to a date.
func fixedClock(date string) func() time.Time {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return d }
}

// baseHandler answers the mapping queries and empty data feeds.
func baseHandler(queryID int, _ map[string]string) (discourse.Table, error) {
	switch queryID {
	case discourse.QueryCategories:
		return categoriesTable(float64(10), "Maths I", float64(11), "English II"), nil
	case discourse.QueryIdentityMapping:
		return identitiesTable(float64(7), "alice", float64(8), "bob"), nil
	default:
		return discourse.Table{}, nil
	}
}

func newTestService(runner *fakeRunner, store repository.Store, opts ...app.Option) *app.Service {
	base := []app.Option{
		app.WithRunner(runner),
		app.WithStore(store),
		app.WithClock(fixedClock("2025-06-15")),
		app.WithBaseURL("https://forum.example.edu"),
	}
	return app.New(append(base, opts...)...)
}

func TestBootstrap(t *testing.T) {
	Convey("Given reachable mapping reports", t, func() {
		ctx := context.Background()
		runner := &fakeRunner{handler: baseHandler}
		store := repository.NewMemStore()
		svc := newTestService(runner, store)

		Convey("When the service bootstraps", func() {
			err := svc.Bootstrap(ctx)

			Convey("Then empty shells exist for the current and previous terms", func() {
				So(err, ShouldBeNil)
				So(store.Terms(ctx), ShouldResemble, []string{"t2-2025", "t1-2025", "t3-2024"})
			})

			Convey("Then every shell holds all course keys plus overall", func() {
				keys := store.CourseKeys(ctx, "t3-2024")
				So(keys, ShouldResemble, []string{"english_ii", "maths_i", model.OverallKey})
			})

			Convey("Then shell buckets are empty but fully formed", func() {
				b, berr := store.Bucket(ctx, "t2-2025", "maths_i")
				So(berr, ShouldBeNil)
				So(b.Events, ShouldBeEmpty)
				So(b.RawMetrics.KeyColumn, ShouldEqual, "acting_username")
				So(b.Unnormalized.KeyColumn, ShouldEqual, "acting_username")
				So(b.LogNormalized.KeyColumn, ShouldEqual, "acting_username")
			})

			Convey("Then identities resolve and loading is still pending", func() {
				So(svc.ResolveUsername("7"), ShouldEqual, "alice")
				So(svc.ResolveUsername("999"), ShouldEqual, "999")
				So(svc.IsLoaded(), ShouldBeFalse)
			})
		})

		Convey("When the category catalogue filters irrelevant ids", func() {
			filtered := newTestService(runner, repository.NewMemStore(), app.WithIrrelevantCategoryIDs([]int64{11}))
			err := filtered.Bootstrap(ctx)

			So(err, ShouldBeNil)
			So(len(filtered.Categories()), ShouldEqual, 1)
			So(filtered.Categories()[0].Key(), ShouldEqual, "maths_i")
		})
	})

	Convey("Given a failing mapping report", t, func() {
		ctx := context.Background()

		Convey("When the category report errors", func() {
			runner := &fakeRunner{handler: func(queryID int, _ map[string]string) (discourse.Table, error) {
				if queryID == discourse.QueryCategories {
					return discourse.Table{}, fmt.Errorf("fetch: %w", discourse.ErrRateLimited)
				}
				return identitiesTable(float64(7), "alice"), nil
			}}
			svc := newTestService(runner, repository.NewMemStore())

			So(svc.Bootstrap(ctx), ShouldWrap, app.ErrBootstrapFailed)
		})

		Convey("When the identity report comes back empty", func() {
			runner := &fakeRunner{handler: func(queryID int, _ map[string]string) (discourse.Table, error) {
				if queryID == discourse.QueryCategories {
					return categoriesTable(float64(10), "Maths I"), nil
				}
				return discourse.Table{}, nil
			}}
			svc := newTestService(runner, repository.NewMemStore())

			So(svc.Bootstrap(ctx), ShouldWrap, app.ErrBootstrapFailed)
		})
	})
}

func TestLoadAll(t *testing.T) {
	Convey("Given a bootstrapped service with historical data", t, func() {
		ctx := context.Background()
		runner := &fakeRunner{handler: func(queryID int, params map[string]string) (discourse.Table, error) {
			switch queryID {
			case discourse.QueryCategories:
				return categoriesTable(float64(10), "Maths I", float64(11), "English II"), nil
			case discourse.QueryIdentityMapping:
				return identitiesTable(float64(7), "alice"), nil
			case discourse.QueryCourseActions:
				if params["category_id"] != "10" {
					return discourse.Table{}, nil
				}
				return eventsTable(
					eventRow("alice", model.ActionReplied, 42, "2025-05-10 09:00:00"),
					eventRow("alice", model.ActionSolvedTopic, 42, "2025-05-11 09:00:00"),
					eventRow("bob", model.ActionLikesGiven, 42, "2025-05-12 09:00:00"),
				), nil
			case discourse.QueryOverallEngagement:
				return overallTable(
					discourse.Row{"user_id": float64(7), "likes_given": float64(3), "solutions": float64(1)},
				), nil
			default:
				return discourse.Table{}, nil
			}
		}}
		store := repository.NewMemStore()
		svc := newTestService(runner, store)
		So(svc.Bootstrap(ctx), ShouldBeNil)

		Convey("When the full load runs", func() {
			err := svc.LoadAll(ctx)

			Convey("Then the service flips to loaded", func() {
				So(err, ShouldBeNil)
				So(svc.IsLoaded(), ShouldBeTrue)
			})

			Convey("Then course buckets hold events and ranked scores", func() {
				b, berr := store.Bucket(ctx, "t2-2025", "maths_i")
				So(berr, ShouldBeNil)
				So(len(b.Events), ShouldEqual, 3)
				So(b.RawMetrics.Rows[0].Key, ShouldEqual, "alice")
				So(b.RawMetrics.Rows[0].Counts["solved_a_topic"], ShouldEqual, 1)
				So(b.Unnormalized.Rows[0].Key, ShouldEqual, "alice")
			})

			Convey("Then the overall bucket is keyed by user id", func() {
				b, berr := store.Bucket(ctx, "t2-2025", model.OverallKey)
				So(berr, ShouldBeNil)
				So(b.RawMetrics.KeyColumn, ShouldEqual, "user_id")
				So(b.RawMetrics.Rows[0].Key, ShouldEqual, "7")
			})

			Convey("Then a course with no activity keeps an empty bucket", func() {
				b, berr := store.Bucket(ctx, "t2-2025", "english_ii")
				So(berr, ShouldBeNil)
				So(b.Events, ShouldBeEmpty)
			})

			Convey("Then every term/course pair was fetched with its date range", func() {
				calls := runner.callsFor(discourse.QueryCourseActions)
				So(len(calls), ShouldEqual, 6)
				So(calls[0].params["start_date"], ShouldEqual, "01-05-2025")
				So(calls[0].params["end_date"], ShouldEqual, "31-08-2025")
			})
		})
	})

	Convey("Given one course feed that keeps failing", t, func() {
		ctx := context.Background()
		runner := &fakeRunner{handler: func(queryID int, params map[string]string) (discourse.Table, error) {
			switch queryID {
			case discourse.QueryCategories:
				return categoriesTable(float64(10), "Maths I", float64(11), "English II"), nil
			case discourse.QueryIdentityMapping:
				return identitiesTable(float64(7), "alice"), nil
			case discourse.QueryCourseActions:
				if params["category_id"] == "11" {
					return discourse.Table{}, fmt.Errorf("fetch: %w", discourse.ErrRateLimited)
				}
				return eventsTable(eventRow("alice", model.ActionReplied, 1, "2025-05-10 09:00:00")), nil
			default:
				return discourse.Table{}, nil
			}
		}}
		store := repository.NewMemStore()
		svc := newTestService(runner, store)
		So(svc.Bootstrap(ctx), ShouldBeNil)

		Convey("When the full load runs", func() {
			err := svc.LoadAll(ctx)

			Convey("Then the failure is reported but siblings still load", func() {
				So(err, ShouldNotBeNil)
				So(svc.IsLoaded(), ShouldBeTrue)

				healthy, berr := store.Bucket(ctx, "t2-2025", "maths_i")
				So(berr, ShouldBeNil)
				So(len(healthy.Events), ShouldEqual, 1)

				failed, berr := store.Bucket(ctx, "t2-2025", "english_ii")
				So(berr, ShouldBeNil)
				So(failed.Events, ShouldBeEmpty)
			})
		})
	})
}
