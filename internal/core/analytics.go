package core

import (
	"context"
	"errors"
	"sort"
	"time"

	"gwi.com/botstudio/internal/models"
	"gwi.com/botstudio/internal/store"
)

var ErrInvalidRange = errors.New("range must be one of 24h, 7d, 30d, 90d")

type AnalyticsStore interface {
	CountResources(ctx context.Context, userID string) (store.Counts, error)
	UsageSince(ctx context.Context, userID string, since time.Time) ([]store.UsageEvent, error)
	ListProjects(ctx context.Context, userID string) ([]store.Project, error)
}

type AnalyticsService struct {
	store AnalyticsStore
	now   func() time.Time
}

func NewAnalyticsService(st AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: st, now: time.Now}
}

// window describes how a range is bucketed: 24h by hour, the rest by day.
type window struct {
	buckets int
	step    time.Duration
	layout  string
}

var windows = map[string]window{
	"24h": {buckets: 24, step: time.Hour, layout: "2006-01-02T15:00"},
	"7d":  {buckets: 7, step: 24 * time.Hour, layout: "2006-01-02"},
	"30d": {buckets: 30, step: 24 * time.Hour, layout: "2006-01-02"},
	"90d": {buckets: 90, step: 24 * time.Hour, layout: "2006-01-02"},
}

// Report builds the analytics page for userID over rng. An empty range means 7d.
func (s *AnalyticsService) Report(ctx context.Context, userID, rng string) (*models.Analytics, error) {
	if rng == "" {
		rng = "7d"
	}
	w, ok := windows[rng]
	if !ok {
		return nil, ErrInvalidRange
	}

	counts, err := s.store.CountResources(ctx, userID)
	if err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, err
	}

	end := s.now().UTC().Truncate(w.step)
	start := end.Add(-time.Duration(w.buckets-1) * w.step)
	events, err := s.store.UsageSince(ctx, userID, start)
	if err != nil {
		return nil, err
	}

	series := make([]models.UsagePoint, w.buckets)
	for i := range series {
		series[i].Date = start.Add(time.Duration(i) * w.step).Format(w.layout)
	}
	perProject := make(map[string]int64)
	for _, e := range events {
		i := int(e.CreatedAt.UTC().Sub(start) / w.step)
		if i < 0 || i >= len(series) {
			continue
		}
		series[i].Calls++
		if e.ProjectID != "" {
			perProject[e.ProjectID]++
		}
	}

	report := &models.Analytics{
		Range: rng,
		Summary: models.AnalyticsSummary{
			TotalProjects:    counts.Projects,
			DeployedProjects: counts.DeployedProjects,
			TotalDocuments:   counts.Documents,
			TotalAPICalls:    int64(len(events)),
		},
		TimeSeries: series,
		Projects:   make([]models.ProjectUsage, 0, len(projects)),
	}
	for _, p := range projects {
		report.Projects = append(report.Projects, models.ProjectUsage{
			ProjectID: p.ID,
			Name:      p.Name,
			Calls:     perProject[p.ID],
		})
	}
	sort.SliceStable(report.Projects, func(i, j int) bool {
		return report.Projects[i].Calls > report.Projects[j].Calls
	})
	return report, nil
}
