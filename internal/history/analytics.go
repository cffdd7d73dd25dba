package history

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/containerflow/pkg/db/models"
	"github.com/angelmondragon/containerflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
	"github.com/angelmondragon/containerflow/pkg/pagination"
	"github.com/angelmondragon/containerflow/pkg/shift"
	"github.com/angelmondragon/containerflow/pkg/timeutil"
)

const (
	defaultStatsDays = 30
	maxStatsDays     = 365
	maxTrendDays     = 7
)

// ListParams are the raw history list inputs. Bad values are coerced, never rejected.
type ListParams struct {
	Page            int
	Limit           int
	SerialNo        string
	PartNo          string
	FulfillmentType string
	StartDate       string
	EndDate         string
}

// ListFilters echoes the filters a page was computed with.
type ListFilters struct {
	SerialNo        *string `json:"serial_no"`
	PartNo          *string `json:"part_no"`
	FulfillmentType *string `json:"fulfillment_type"`
	StartDate       *string `json:"start_date"`
	EndDate         *string `json:"end_date"`
}

type ListResult struct {
	Data       []models.HistoryRecord `json:"data"`
	Pagination pagination.Page        `json:"pagination"`
	Filters    ListFilters            `json:"filters"`
}

type StatsParams struct {
	Days   int
	PartNo string
}

type Overall struct {
	TotalFulfilled int     `json:"total_fulfilled"`
	AvgMinutes     float64 `json:"avg_fulfillment_minutes"`
	AvgHours       float64 `json:"avg_fulfillment_hours"`
	MinMinutes     int     `json:"min_fulfillment_minutes"`
	MaxMinutes     int     `json:"max_fulfillment_minutes"`
	AutoFulfilled  int     `json:"auto_fulfilled"`
	ManualCleanup  int     `json:"manual_cleanup"`
	ManualDelete   int     `json:"manual_delete"`
}

type PartStats struct {
	PartNo         string  `json:"part_no"`
	FulfilledCount int     `json:"fulfilled_count"`
	AvgMinutes     float64 `json:"avg_fulfillment_minutes"`
	AvgHours       float64 `json:"avg_fulfillment_hours"`
	MinMinutes     int     `json:"min_fulfillment_minutes"`
	MaxMinutes     int     `json:"max_fulfillment_minutes"`
}

type ShiftStats struct {
	Shift          enums.Shift `json:"shift"`
	TimeRange      string      `json:"time_range"`
	FulfilledCount int         `json:"fulfilled_count"`
	AvgMinutes     float64     `json:"avg_fulfillment_minutes"`
	AvgHours       float64     `json:"avg_fulfillment_hours"`
	MinMinutes     int         `json:"min_fulfillment_minutes"`
	MaxMinutes     int         `json:"max_fulfillment_minutes"`
	AutoFulfilled  int         `json:"auto_fulfilled"`
	ManualCleanup  int         `json:"manual_cleanup"`
	ManualDelete   int         `json:"manual_delete"`
}

type DailyTrend struct {
	Date           string  `json:"date"`
	FulfilledCount int     `json:"fulfilled_count"`
	AvgMinutes     float64 `json:"avg_duration_minutes"`
	AvgHours       float64 `json:"avg_duration_hours"`
}

type PerformanceBucket struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	AvgMinutes float64 `json:"avg_minutes"`
	Percentage float64 `json:"percentage"`
}

type Stats struct {
	PeriodDays           int                 `json:"period_days"`
	PartNoFilter         *string             `json:"part_no_filter"`
	Overall              Overall             `json:"overall"`
	ByPartNumber         []PartStats         `json:"by_part_number"`
	ByShift              []ShiftStats        `json:"by_shift"`
	DailyTrends          []DailyTrend        `json:"daily_trends"`
	PerformanceBreakdown []PerformanceBucket `json:"performance_breakdown"`
	GeneratedAt          time.Time           `json:"generated_at"`
}

type performanceBand struct {
	label      string
	maxMinutes int
}

var performanceBands = []performanceBand{
	{label: "Fast (≤1 hour)", maxMinutes: 60},
	{label: "Medium (1-8 hours)", maxMinutes: 480},
	{label: "Slow (8-24 hours)", maxMinutes: 1440},
	{label: "Very Slow (>24 hours)", maxMinutes: math.MaxInt},
}

type AnalyticsParams struct {
	Repo           Repository
	Classifier     *shift.Classifier
	WindowDays     int
	TestWorkcenter string
	Now            func() time.Time
}

// Analytics answers read-only queries over the history log.
type Analytics struct {
	repo           Repository
	classifier     *shift.Classifier
	windowDays     int
	testWorkcenter string
	now            func() time.Time
}

func NewAnalytics(params AnalyticsParams) (*Analytics, error) {
	if params.Repo == nil {
		return nil, errors.New("history repository required")
	}
	if params.Classifier == nil {
		return nil, errors.New("shift classifier required")
	}
	window := params.WindowDays
	if window <= 0 {
		window = DefaultRetentionDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Analytics{
		repo:           params.Repo,
		classifier:     params.Classifier,
		windowDays:     window,
		testWorkcenter: params.TestWorkcenter,
		now:            now,
	}, nil
}

// List returns one page of history, newest first, with times in plant-local time.
func (a *Analytics) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page := pagination.Params{Page: params.Page, Limit: params.Limit}.Normalize()
	filter := a.listFilter(params)

	total, err := a.repo.Count(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count history")
	}
	rows, err := a.repo.List(ctx, filter, page.Offset(), page.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list history")
	}
	for i := range rows {
		a.localize(&rows[i])
	}

	return &ListResult{
		Data:       rows,
		Pagination: pagination.Build(page, total),
		Filters: ListFilters{
			SerialNo:        optional(params.SerialNo),
			PartNo:          optional(params.PartNo),
			FulfillmentType: optional(params.FulfillmentType),
			StartDate:       optional(params.StartDate),
			EndDate:         optional(params.EndDate),
		},
	}, nil
}

// Records returns every record matching params without paging, for export.
func (a *Analytics) Records(ctx context.Context, params ListParams) ([]models.HistoryRecord, error) {
	rows, err := a.repo.List(ctx, a.listFilter(params), 0, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list history")
	}
	for i := range rows {
		a.localize(&rows[i])
	}
	return rows, nil
}

func (a *Analytics) listFilter(params ListParams) Filter {
	filter := Filter{
		Since:            a.now().UTC().Add(-time.Duration(a.windowDays) * 24 * time.Hour),
		ExcludeDeliverTo: a.testWorkcenter,
		SerialContains:   strings.TrimSpace(params.SerialNo),
		PartContains:     strings.TrimSpace(params.PartNo),
		Type:             enums.FulfillmentType(strings.TrimSpace(params.FulfillmentType)),
	}
	// unparseable bounds are dropped rather than failing the query
	if start, err := timeutil.ParseInstant(params.StartDate); err == nil {
		filter.Start = &start
	}
	if end, err := timeutil.ParseInstant(params.EndDate); err == nil {
		filter.End = &end
	}
	return filter
}

func (a *Analytics) localize(r *models.HistoryRecord) {
	r.ReqTime = a.classifier.Local(r.ReqTime)
	r.FulfilledTime = a.classifier.Local(r.FulfilledTime)
}

// Stats aggregates history over the last params.Days days. Manual deletes
// are counted but never contribute to durations.
func (a *Analytics) Stats(ctx context.Context, params StatsParams) (*Stats, error) {
	days := params.Days
	if days < 1 || days > maxStatsDays {
		days = defaultStatsDays
	}
	partNo := strings.TrimSpace(params.PartNo)
	now := a.now().UTC()

	rows, err := a.repo.StatRows(ctx, Filter{
		Since:            now.Add(-time.Duration(days) * 24 * time.Hour),
		ExcludeDeliverTo: a.testWorkcenter,
		PartEquals:       partNo,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load history stats")
	}

	trendSince := now.Add(-time.Duration(min(days, maxTrendDays)) * 24 * time.Hour)

	overall := newAccumulator()
	byPart := map[string]*accumulator{}
	byShift := map[enums.Shift]*accumulator{}
	for _, s := range enums.Shifts {
		byShift[s] = newAccumulator()
	}
	byDay := map[string]*accumulator{}
	bands := make([]*accumulator, len(performanceBands))
	for i := range bands {
		bands[i] = newAccumulator()
	}

	for _, row := range rows {
		overall.add(row)
		if !row.FulfillmentType.CountsTowardDuration() {
			continue
		}

		part, ok := byPart[row.PartNo]
		if !ok {
			part = newAccumulator()
			byPart[row.PartNo] = part
		}
		part.add(row)

		if acc, ok := byShift[a.classifier.Of(row.FulfilledTime)]; ok {
			acc.add(row)
		}

		if !row.FulfilledTime.Before(trendSince) {
			day := a.classifier.Day(row.FulfilledTime)
			acc, ok := byDay[day]
			if !ok {
				acc = newAccumulator()
				byDay[day] = acc
			}
			acc.add(row)
		}

		for i, band := range performanceBands {
			if row.FulfillmentDurationMinutes <= band.maxMinutes {
				bands[i].add(row)
				break
			}
		}
	}

	stats := &Stats{
		PeriodDays:           days,
		PartNoFilter:         optional(partNo),
		Overall:              overall.overall(),
		ByPartNumber:         partStats(byPart),
		ByShift:              make([]ShiftStats, 0, len(enums.Shifts)),
		DailyTrends:          dailyTrends(byDay),
		PerformanceBreakdown: make([]PerformanceBucket, 0, len(performanceBands)),
		GeneratedAt:          a.classifier.Local(now),
	}

	for _, s := range enums.Shifts {
		acc := byShift[s]
		stats.ByShift = append(stats.ByShift, ShiftStats{
			Shift:          s,
			TimeRange:      s.TimeRange(),
			FulfilledCount: acc.durationCount,
			AvgMinutes:     round2(acc.avg()),
			AvgHours:       round2(acc.avg() / 60),
			MinMinutes:     acc.minMinutes,
			MaxMinutes:     acc.maxMinutes,
			AutoFulfilled:  acc.auto,
			ManualCleanup:  acc.manualCleanup,
			ManualDelete:   acc.manualDelete,
		})
	}

	total := stats.Overall.TotalFulfilled
	for i, band := range performanceBands {
		acc := bands[i]
		bucket := PerformanceBucket{
			Category:   band.label,
			Count:      acc.durationCount,
			AvgMinutes: round2(acc.avg()),
		}
		if total > 0 {
			bucket.Percentage = round1(float64(acc.durationCount) / float64(total) * 100)
		}
		stats.PerformanceBreakdown = append(stats.PerformanceBreakdown, bucket)
	}

	return stats, nil
}

func partStats(byPart map[string]*accumulator) []PartStats {
	out := make([]PartStats, 0, len(byPart))
	for partNo, acc := range byPart {
		out = append(out, PartStats{
			PartNo:         partNo,
			FulfilledCount: acc.durationCount,
			AvgMinutes:     round2(acc.avg()),
			AvgHours:       round2(acc.avg() / 60),
			MinMinutes:     acc.minMinutes,
			MaxMinutes:     acc.maxMinutes,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FulfilledCount != out[j].FulfilledCount {
			return out[i].FulfilledCount > out[j].FulfilledCount
		}
		if out[i].AvgMinutes != out[j].AvgMinutes {
			return out[i].AvgMinutes < out[j].AvgMinutes
		}
		return out[i].PartNo < out[j].PartNo
	})
	return out
}

func dailyTrends(byDay map[string]*accumulator) []DailyTrend {
	out := make([]DailyTrend, 0, len(byDay))
	for day, acc := range byDay {
		out = append(out, DailyTrend{
			Date:           day,
			FulfilledCount: acc.durationCount,
			AvgMinutes:     round2(acc.avg()),
			AvgHours:       round2(acc.avg() / 60),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

type accumulator struct {
	durationCount int
	sumMinutes    int64
	minMinutes    int
	maxMinutes    int
	auto          int
	manualCleanup int
	manualDelete  int
}

func newAccumulator() *accumulator {
	return &accumulator{}
}

func (a *accumulator) add(row StatRow) {
	switch row.FulfillmentType {
	case enums.FulfillmentAutoCleanup:
		a.auto++
	case enums.FulfillmentManualCleanup:
		a.manualCleanup++
	case enums.FulfillmentManualDelete:
		a.manualDelete++
		return
	}
	m := row.FulfillmentDurationMinutes
	if a.durationCount == 0 || m < a.minMinutes {
		a.minMinutes = m
	}
	if a.durationCount == 0 || m > a.maxMinutes {
		a.maxMinutes = m
	}
	a.durationCount++
	a.sumMinutes += int64(m)
}

func (a *accumulator) avg() float64 {
	if a.durationCount == 0 {
		return 0
	}
	return float64(a.sumMinutes) / float64(a.durationCount)
}

func (a *accumulator) overall() Overall {
	return Overall{
		TotalFulfilled: a.durationCount,
		AvgMinutes:     round2(a.avg()),
		AvgHours:       round2(a.avg() / 60),
		MinMinutes:     a.minMinutes,
		MaxMinutes:     a.maxMinutes,
		AutoFulfilled:  a.auto,
		ManualCleanup:  a.manualCleanup,
		ManualDelete:   a.manualDelete,
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
