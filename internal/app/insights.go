package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/campuspulse/engage/internal/domain/model"
	"github.com/campuspulse/engage/internal/domain/term"
)

const (
	trendingWindow    = 7 * 24 * time.Hour
	topInsightResults = 10

	viewTrending        = "trending"
	viewFirstResponders = "first_responders"
)

// trendingWeights score the action types that signal topic momentum.
var trendingWeights = map[int]float64{
	model.ActionReceivedResponse: 0.5,
	model.ActionLikesGiven:       0.35,
	model.ActionPostQuoted:       3,
}

// TrendingTopic is one entry of the recent-topic momentum ranking.
type TrendingTopic struct {
	TopicID       int64   `json:"topic_id"`
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	ResponseCount int     `json:"response_count"`
	LikeCount     int     `json:"like_count"`
	QuoteCount    int     `json:"quote_count"`
	Score         float64 `json:"score"`
}

// FirstResponder counts how often a user was the first to answer a new
// topic.
type FirstResponder struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// TrendingTopics ranks topics created in the last seven days by an
// age-normalized weighted action score and returns the top ten. The
// ranking is computed from the current term's event log for the course
// and cached until the next bucket overwrite.
func (s *Service) TrendingTopics(ctx context.Context, courseKey string) ([]TrendingTopic, error) {
	current := term.Current(s.now()).String()
	if v, ok := s.cache.Get(current, courseKey, viewTrending); ok {
		return v.([]TrendingTopic), nil
	}

	bucket, err := s.store.Bucket(ctx, current, courseKey)
	if err != nil {
		return nil, fmt.Errorf("trending topics for %s/%s: %w", current, courseKey, err)
	}
	if len(bucket.Events) == 0 {
		return nil, fmt.Errorf("trending topics for %s/%s: %w", current, courseKey, ErrNoActivity)
	}

	topics := s.rankTrending(bucket.Events, s.now())
	s.cache.Set(current, courseKey, viewTrending, topics)
	return topics, nil
}

func (s *Service) rankTrending(events []model.Event, now time.Time) []TrendingTopic {
	cutoff := now.Add(-trendingWindow)

	type topicInfo struct {
		title   string
		created time.Time
	}
	recent := make(map[int64]topicInfo)
	for _, e := range events {
		if e.ActionType != model.ActionCreatedNewTopic || e.TargetTopicID == 0 {
			continue
		}
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		recent[e.TargetTopicID] = topicInfo{title: e.TopicTitle, created: e.CreatedAt}
	}

	counts := make(map[int64]map[int]int)
	for _, e := range events {
		if _, ok := recent[e.TargetTopicID]; !ok {
			continue
		}
		if _, weighted := trendingWeights[e.ActionType]; !weighted {
			continue
		}
		if counts[e.TargetTopicID] == nil {
			counts[e.TargetTopicID] = make(map[int]int)
		}
		counts[e.TargetTopicID][e.ActionType]++
	}

	out := make([]TrendingTopic, 0, len(recent))
	for id, info := range recent {
		var raw float64
		for action, weight := range trendingWeights {
			raw += float64(counts[id][action]) * weight
		}
		// A topic younger than one hour counts as one hour old.
		hours := now.Sub(info.created).Hours()
		if hours < 1 {
			hours = 1
		}
		out = append(out, TrendingTopic{
			TopicID:       id,
			URL:           fmt.Sprintf("%s/t/%d", s.baseURL, id),
			Title:         info.title,
			ResponseCount: counts[id][model.ActionReceivedResponse],
			LikeCount:     counts[id][model.ActionLikesGiven],
			QuoteCount:    counts[id][model.ActionPostQuoted],
			Score:         raw / hours,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TopicID < out[j].TopicID
	})
	if len(out) > topInsightResults {
		out = out[:topInsightResults]
	}
	return out
}

// FirstResponders returns the ten users who were most often the first to
// reply to a freshly created topic in the course's current-term event log.
func (s *Service) FirstResponders(ctx context.Context, courseKey string) ([]FirstResponder, error) {
	current := term.Current(s.now()).String()
	if v, ok := s.cache.Get(current, courseKey, viewFirstResponders); ok {
		return v.([]FirstResponder), nil
	}

	bucket, err := s.store.Bucket(ctx, current, courseKey)
	if err != nil {
		return nil, fmt.Errorf("first responders for %s/%s: %w", current, courseKey, err)
	}
	if len(bucket.Events) == 0 {
		return nil, fmt.Errorf("first responders for %s/%s: %w", current, courseKey, ErrNoActivity)
	}

	responders := rankFirstResponders(bucket.Events)
	s.cache.Set(current, courseKey, viewFirstResponders, responders)
	return responders, nil
}

func rankFirstResponders(events []model.Event) []FirstResponder {
	created := make(map[int64]time.Time)
	for _, e := range events {
		if e.ActionType == model.ActionCreatedNewTopic && e.TargetTopicID != 0 {
			created[e.TargetTopicID] = e.CreatedAt
		}
	}

	type firstReply struct {
		username string
		at       time.Time
	}
	firsts := make(map[int64]firstReply)
	for _, e := range events {
		if e.ActionType != model.ActionReplied && e.ActionType != model.ActionReceivedResponse {
			continue
		}
		topicTime, ok := created[e.TargetTopicID]
		if !ok || !e.CreatedAt.After(topicTime) {
			continue
		}
		if cur, seen := firsts[e.TargetTopicID]; !seen || e.CreatedAt.Before(cur.at) {
			firsts[e.TargetTopicID] = firstReply{username: e.ActingUsername, at: e.CreatedAt}
		}
	}

	tally := make(map[string]int)
	for _, f := range firsts {
		tally[f.username]++
	}
	out := make([]FirstResponder, 0, len(tally))
	for name, n := range tally {
		out = append(out, FirstResponder{Username: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Username < out[j].Username
	})
	if len(out) > topInsightResults {
		out = out[:topInsightResults]
	}
	return out
}
