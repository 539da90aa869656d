package services

import (
	"context"
	"sort"
	"time"

	"github.com/taskflow-dev/taskflow/internal/repository"
)

type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int64  `json:"count"`
}

// AnalyticsService computes the dashboard aggregates.
type AnalyticsService struct {
	tasks *repository.TaskRepository
	now   func() time.Time
}

func NewAnalyticsService(tasks *repository.TaskRepository) *AnalyticsService {
	return &AnalyticsService{tasks: tasks, now: time.Now}
}

func (s *AnalyticsService) CompletedPerUser(ctx context.Context) ([]repository.UserCount, error) {
	rows, err := s.tasks.CompletedPerUser(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repository.UserCount{}
	}
	return rows, nil
}

func (s *AnalyticsService) Overdue(ctx context.Context) (int64, error) {
	return s.tasks.CountOverdue(ctx, s.now().UTC())
}

// CompletionRate counts done tasks by the UTC month they were last updated in, oldest first.
func (s *AnalyticsService) CompletionRate(ctx context.Context) ([]MonthCount, error) {
	stamps, err := s.tasks.CompletedTimestamps(ctx)
	if err != nil {
		return nil, err
	}

	buckets := map[string]int64{}
	for _, ts := range stamps {
		buckets[ts.UTC().Format("2006-01")]++
	}

	out := make([]MonthCount, 0, len(buckets))
	for month, count := range buckets {
		out = append(out, MonthCount{Month: month, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}
