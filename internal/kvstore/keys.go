package kvstore

import (
	"fmt"
	"time"
)

// Key schema:
//   user:<id>                      -> user record JSON
//   email:<email>                  -> user id (login index)
//   user:<id>:books                -> []Book JSON
//   user:<id>:sessions             -> []ReadingSession JSON, newest first
//   user:<id>:notifications       -> []Notification JSON, newest first
//   user:<id>:activity             -> []AnalyticsEvent JSON, bounded tail
//   session:<id>                   -> ReadingSession JSON
//   analytics:events:<ts>:<id>     -> AnalyticsEvent JSON
//   analytics:recent_errors        -> []AnalyticsEvent JSON ring, cap 100
//   analytics:counters             -> map[string]int JSON

func UserKey(userID string) string { return "user:" + userID }

func EmailKey(email string) string { return "email:" + email }

func UserBooksKey(userID string) string { return "user:" + userID + ":books" }

func UserSessionsKey(userID string) string { return "user:" + userID + ":sessions" }

func UserNotificationsKey(userID string) string { return "user:" + userID + ":notifications" }

func UserActivityKey(userID string) string { return "user:" + userID + ":activity" }

func SessionKey(sessionID string) string { return "session:" + sessionID }

const (
	EventPrefix     = "analytics:events:"
	RecentErrorsKey = "analytics:recent_errors"
	CountersKey     = "analytics:counters"
)

// eventTimeLayout is RFC 3339 with a fixed-width fractional second, so
// lexical key order matches chronological order.
const eventTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// EventKey orders events by timestamp so summary scans can walk them in
// key order.
func EventKey(ts time.Time, id string) string {
	return fmt.Sprintf("%s%s:%s", EventPrefix, ts.UTC().Format(eventTimeLayout), id)
}
