// Package model defines the engagement domain entities: action events,
// course categories and the user identity mapping.
package model

import (
	"fmt"
	"strconv"
	"time"
)

// Action type codes as reported by the analytics source.
const (
	ActionLikesGiven       = 1
	ActionLikesReceived    = 2
	ActionBookmarkedPost   = 3
	ActionCreatedNewTopic  = 4
	ActionReplied          = 5
	ActionReceivedResponse = 6
	ActionWasMentioned     = 7
	ActionPostQuoted       = 9
	ActionEditedPost       = 11
	ActionSentPrivateMsg   = 12
	ActionReceivedPrivate  = 13
	ActionSolvedTopic      = 15
	ActionWasAssigned      = 16
	ActionLinked           = 17
)

// actionNames maps action type codes to semantic metric names.
var actionNames = map[int]string{
	ActionLikesGiven:       "likes_given",
	ActionLikesReceived:    "likes_received",
	ActionBookmarkedPost:   "bookmarked_post",
	ActionCreatedNewTopic:  "created_new_topic",
	ActionReplied:          "replied",
	ActionReceivedResponse: "received_response",
	ActionWasMentioned:     "user_was_mentioned",
	ActionPostQuoted:       "users_post_quoted",
	ActionEditedPost:       "user_edited_post",
	ActionSentPrivateMsg:   "user_sent_private_message",
	ActionReceivedPrivate:  "received_a_private_message",
	ActionSolvedTopic:      "solved_a_topic",
	ActionWasAssigned:      "user_was_assigned",
	ActionLinked:           "linked",
}

// excludedNames are actions considered noise for engagement metrics.
var excludedNames = map[string]struct{}{
	"linked":             {},
	"received_response":  {},
	"users_post_quoted":  {},
	"user_edited_post":   {},
	"user_was_mentioned": {},
}

// ActionName returns the semantic name for an action type code.
func ActionName(code int) (string, bool) {
	name, ok := actionNames[code]
	return name, ok
}

// MetricName returns the metric column name for an action type code, or
// false when the action is unknown or excluded from metric computation.
func MetricName(code int) (string, bool) {
	name, ok := actionNames[code]
	if !ok {
		return "", false
	}
	if _, excluded := excludedNames[name]; excluded {
		return "", false
	}
	return name, true
}

// Event is one per-user action row pulled from the analytics source.
type Event struct {
	ActingUsername string
	ActionType     int
	TargetTopicID  int64
	TargetPostID   int64
	CreatedAt      time.Time
	TopicTitle     string
}

// timestamp layouts observed in report exports.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// EventFromRow converts one fetched report row into an Event.
func EventFromRow(row map[string]any) (Event, error) {
	e := Event{
		ActingUsername: AsString(row["acting_username"]),
		TopicTitle:     AsString(row["topic_title"]),
	}
	code, err := AsInt(row["action_type"])
	if err != nil {
		return Event{}, fmt.Errorf("action_type: %w", err)
	}
	e.ActionType = int(code)
	if e.TargetTopicID, err = AsInt(row["target_topic_id"]); err != nil {
		e.TargetTopicID = 0
	}
	if e.TargetPostID, err = AsInt(row["target_post_id"]); err != nil {
		e.TargetPostID = 0
	}
	if raw := AsString(row["created_at"]); raw != "" {
		for _, layout := range createdAtLayouts {
			if ts, perr := time.Parse(layout, raw); perr == nil {
				e.CreatedAt = ts
				break
			}
		}
	}
	return e, nil
}

// AsString coerces a report cell to a string.
func AsString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

// AsInt coerces a report cell to an integer; report JSON delivers
// numbers as float64 and occasionally as strings.
func AsInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", n)
		}
		return parsed, nil
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
