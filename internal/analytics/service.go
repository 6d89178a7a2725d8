package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"audiora/internal/kvstore"
	"audiora/internal/logger"
	"audiora/pkg/models"
)

const (
	recentErrorsCap = 100
	activityTailCap = 200
	messagesPerType = 5
)

// Service is the error/usage analytics sink. It is constructed once at
// process start and injected; there is no package-level state. The
// primary write is the per-event key; the recent-error ring, counters
// and per-user activity tail are best-effort side writes that never fail
// the caller's request.
type Service struct {
	store kvstore.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewService(store kvstore.Store, baseLog *logger.Logger) *Service {
	return &Service{
		store: store,
		log:   baseLog.With("service", "analytics"),
		now:   time.Now,
	}
}

type EventParams struct {
	UserID    string
	Type      string
	ErrorType string
	Message   string
	Context   map[string]string
}

func (s *Service) Record(ctx context.Context, p EventParams) (models.AnalyticsEvent, error) {
	ev := models.AnalyticsEvent{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Type:      p.Type,
		ErrorType: p.ErrorType,
		Message:   p.Message,
		Context:   p.Context,
		Timestamp: s.now().UTC(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return models.AnalyticsEvent{}, err
	}
	if err := s.store.Set(ctx, kvstore.EventKey(ev.Timestamp, ev.ID), b); err != nil {
		return models.AnalyticsEvent{}, err
	}

	if ev.ErrorType != "" {
		s.pushRecentError(ctx, ev)
	}
	s.bumpCounter(ctx, ev.Type)
	if ev.UserID != "" {
		s.appendActivity(ctx, ev)
	}
	return ev, nil
}

// Track records a usage event for a user, swallowing failures. Handlers
// call it on their side paths.
func (s *Service) Track(ctx context.Context, userID, eventType string, extra map[string]string) {
	if _, err := s.Record(ctx, EventParams{UserID: userID, Type: eventType, Context: extra}); err != nil {
		s.log.Warn("usage event dropped", "type", eventType, "error", err)
	}
}

type TypeSummary struct {
	ErrorType string   `json:"error_type"`
	Count     int      `json:"count"`
	Messages  []string `json:"messages"`
}

type Summary struct {
	Since       time.Time     `json:"since"`
	TotalErrors int           `json:"total_errors"`
	Groups      []TypeSummary `json:"groups"`
}

// Summarize groups events since the cutoff by error type, keeping at
// most 5 distinct messages per group, groups ordered by count
// descending.
func (s *Service) Summarize(ctx context.Context, days int) (Summary, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)

	raws, err := s.store.GetByPrefix(ctx, kvstore.EventPrefix)
	if err != nil {
		return Summary{}, err
	}

	counts := make(map[string]int)
	messages := make(map[string][]string)
	order := make([]string, 0)
	total := 0
	for _, raw := range raws {
		var ev models.AnalyticsEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		if ev.Timestamp.Before(cutoff) || ev.ErrorType == "" {
			continue
		}
		total++
		if _, seen := counts[ev.ErrorType]; !seen {
			order = append(order, ev.ErrorType)
		}
		counts[ev.ErrorType]++
		if ev.Message != "" && len(messages[ev.ErrorType]) < messagesPerType && !contains(messages[ev.ErrorType], ev.Message) {
			messages[ev.ErrorType] = append(messages[ev.ErrorType], ev.Message)
		}
	}

	groups := make([]TypeSummary, 0, len(order))
	for _, t := range order {
		groups = append(groups, TypeSummary{ErrorType: t, Count: counts[t], Messages: messages[t]})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Count > groups[j].Count })

	return Summary{Since: cutoff, TotalErrors: total, Groups: groups}, nil
}

type UsageReport struct {
	Period                 string         `json:"period"`
	TotalActivities        int            `json:"total_activities"`
	DailyUsage             map[string]int `json:"daily_usage"`
	ActivityBreakdown      map[string]int `json:"activity_breakdown"`
	HourlyDistribution     map[int]int    `json:"hourly_distribution"`
	MostActiveDay          string         `json:"most_active_day,omitempty"`
	MostActiveHour         *int           `json:"most_active_hour,omitempty"`
	AverageDailyActivities float64        `json:"average_daily_activities"`
}

// Usage reports a user's activity patterns over the trailing week, month
// or year.
func (s *Service) Usage(ctx context.Context, userID, period string) (UsageReport, error) {
	var span int
	switch period {
	case "month":
		span = 30
	case "year":
		span = 365
	default:
		period, span = "week", 7
	}
	cutoff := s.now().UTC().AddDate(0, 0, -span)

	events, err := s.userActivity(ctx, userID)
	if err != nil {
		return UsageReport{}, err
	}

	report := UsageReport{
		Period:             period,
		DailyUsage:         make(map[string]int),
		ActivityBreakdown:  make(map[string]int),
		HourlyDistribution: make(map[int]int),
	}
	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		report.TotalActivities++
		day := ev.Timestamp.Format("2006-01-02")
		report.DailyUsage[day]++
		report.ActivityBreakdown[ev.Type]++
		report.HourlyDistribution[ev.Timestamp.Hour()]++
	}

	bestDay, bestDayCount := "", 0
	for d, n := range report.DailyUsage {
		if n > bestDayCount || (n == bestDayCount && d < bestDay) {
			bestDay, bestDayCount = d, n
		}
	}
	report.MostActiveDay = bestDay

	bestHour, bestHourCount := -1, 0
	for h, n := range report.HourlyDistribution {
		if n > bestHourCount || (n == bestHourCount && (bestHour < 0 || h < bestHour)) {
			bestHour, bestHourCount = h, n
		}
	}
	if bestHour >= 0 {
		report.MostActiveHour = &bestHour
	}

	if len(report.DailyUsage) > 0 {
		report.AverageDailyActivities = float64(report.TotalActivities) / float64(len(report.DailyUsage))
	}
	return report, nil
}

// RecentErrors returns the newest-first error ring.
func (s *Service) RecentErrors(ctx context.Context) ([]models.AnalyticsEvent, error) {
	raw, err := s.store.Get(ctx, kvstore.RecentErrorsKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []models.AnalyticsEvent{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ring []models.AnalyticsEvent
	if err := json.Unmarshal(raw, &ring); err != nil {
		return nil, err
	}
	return ring, nil
}

func (s *Service) pushRecentError(ctx context.Context, ev models.AnalyticsEvent) {
	err := s.store.Update(ctx, kvstore.RecentErrorsKey, func(cur json.RawMessage) (json.RawMessage, error) {
		var ring []models.AnalyticsEvent
		if cur != nil {
			if err := json.Unmarshal(cur, &ring); err != nil {
				ring = nil
			}
		}
		ring = append([]models.AnalyticsEvent{ev}, ring...)
		if len(ring) > recentErrorsCap {
			ring = ring[:recentErrorsCap]
		}
		return json.Marshal(ring)
	})
	if err != nil {
		s.log.Warn("recent-error ring write failed", "error", err)
	}
}

func (s *Service) bumpCounter(ctx context.Context, eventType string) {
	err := s.store.Update(ctx, kvstore.CountersKey, func(cur json.RawMessage) (json.RawMessage, error) {
		counters := make(map[string]int)
		if cur != nil {
			if err := json.Unmarshal(cur, &counters); err != nil {
				counters = make(map[string]int)
			}
		}
		counters[eventType]++
		return json.Marshal(counters)
	})
	if err != nil {
		s.log.Warn("counter bump failed", "type", eventType, "error", err)
	}
}

func (s *Service) appendActivity(ctx context.Context, ev models.AnalyticsEvent) {
	err := s.store.Update(ctx, kvstore.UserActivityKey(ev.UserID), func(cur json.RawMessage) (json.RawMessage, error) {
		var tail []models.AnalyticsEvent
		if cur != nil {
			if err := json.Unmarshal(cur, &tail); err != nil {
				tail = nil
			}
		}
		tail = append(tail, ev)
		if len(tail) > activityTailCap {
			tail = tail[len(tail)-activityTailCap:]
		}
		return json.Marshal(tail)
	})
	if err != nil {
		s.log.Warn("activity tail write failed", "user_id", ev.UserID, "error", err)
	}
}

func (s *Service) userActivity(ctx context.Context, userID string) ([]models.AnalyticsEvent, error) {
	raw, err := s.store.Get(ctx, kvstore.UserActivityKey(userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var events []models.AnalyticsEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
