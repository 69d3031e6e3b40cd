package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kasi-it/incident-desk/internal/dto"
	"github.com/kasi-it/incident-desk/internal/models"
	appErrors "github.com/kasi-it/incident-desk/pkg/errors"
)

// Placeholders for empty group keys.
const (
	placeholderStatus   = "Unknown"
	placeholderCategory = "Uncategorized"
	placeholderPriority = "N/A"
)

var isoWeekPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// statsStore is the aggregate-query surface of the record store. The
// aggregator reads the store only; there is no mirror fallback here.
type statsStore interface {
	Count(ctx context.Context, rng models.DateRange) (int, error)
	GroupCounts(ctx context.Context, column, placeholder string, rng models.DateRange) ([]models.GroupCount, error)
	OpenedPerDay(ctx context.Context, rng models.DateRange) ([]models.DayCount, error)
	ClosedPerDay(ctx context.Context, rng models.DateRange) ([]models.DayCount, error)
	SLASplit(ctx context.Context, rng models.DateRange) (models.SLASplit, error)
}

// StatsService computes the dashboard aggregation payload.
type StatsService struct {
	store    statsStore
	cache    *CacheService
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatsService constructs a stats service. now may be nil.
func NewStatsService(store statsStore, cache *CacheService, logger *zap.Logger, now func() time.Time) *StatsService {
	if now == nil {
		now = time.Now
	}
	validate := validator.New()
	_ = validate.RegisterValidation("isoweek", func(fl validator.FieldLevel) bool {
		_, _, err := parseISOWeek(fl.Field().String())
		return err == nil
	})
	return &StatsService{store: store, cache: cache, validate: validate, logger: logger, now: now}
}

// Aggregate resolves the filter, serves from cache when possible, and
// otherwise fans the independent sub-queries out concurrently.
func (s *StatsService) Aggregate(ctx context.Context, query dto.StatsQuery) (*dto.TicketStatsResponse, error) {
	rng, yearAnalyzed, cacheKey, err := s.resolveFilter(query)
	if err != nil {
		return nil, err
	}

	var cached dto.TicketStatsResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	var (
		wg         sync.WaitGroup
		total      int
		byStatus   []models.GroupCount
		byCategory []models.GroupCount
		byPriority []models.GroupCount
		opened     []models.DayCount
		closed     []models.DayCount
		split      models.SLASplit
		errs       = make([]error, 7)
	)

	run := func(slot int, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[slot] = fn()
		}()
	}

	run(0, func() (err error) { total, err = s.store.Count(ctx, rng); return })
	run(1, func() (err error) { byStatus, err = s.store.GroupCounts(ctx, "status", placeholderStatus, rng); return })
	run(2, func() (err error) {
		byCategory, err = s.store.GroupCounts(ctx, "category", placeholderCategory, rng)
		return
	})
	run(3, func() (err error) {
		byPriority, err = s.store.GroupCounts(ctx, "priority", placeholderPriority, rng)
		return
	})
	run(4, func() (err error) { opened, err = s.store.OpenedPerDay(ctx, rng); return })
	run(5, func() (err error) { closed, err = s.store.ClosedPerDay(ctx, rng); return })
	run(6, func() (err error) { split, err = s.store.SLASplit(ctx, rng); return })
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "statistics aggregation failed")
		}
	}

	onTime := split.Total - split.Breached
	rate := float64(onTime) / math.Max(float64(split.Total), 1) * 100
	response := &dto.TicketStatsResponse{
		TotalTickets:    total,
		ByStatus:        groupMap(byStatus),
		ByCategory:      groupMap(byCategory),
		ByPriority:      groupMap(byPriority),
		TicketsOverTime: mergeSeries(opened, closed),
		SLAStats: dto.SLAStats{
			Breached:       split.Breached,
			OnTime:         onTime,
			ComplianceRate: math.Round(rate*10) / 10,
		},
		Analytics: dto.StatsAnalytics{
			TopCategory:  topGroup(byCategory),
			TopPriority:  topGroup(byPriority),
			YearAnalyzed: yearAnalyzed,
		},
	}

	if err := s.cache.Set(ctx, cacheKey, response, 0); err != nil {
		s.logger.Warn("stats cache write failed", zap.String("key", cacheKey), zap.Error(err))
	}
	return response, nil
}

// resolveFilter validates the query and turns it into a half-open date
// range. At most one of month/week/year may be set.
func (s *StatsService) resolveFilter(query dto.StatsQuery) (models.DateRange, int, string, error) {
	if err := s.validate.Struct(query); err != nil {
		return models.DateRange{}, 0, "", validationError("filter must be month=YYYY-MM, week=YYYY-Www or year=YYYY")
	}
	set := 0
	for _, v := range []string{query.Month, query.Week, query.Year} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return models.DateRange{}, 0, "", validationError("only one of month, week or year may be set")
	}

	switch {
	case query.Month != "":
		start, err := time.Parse("2006-01", query.Month)
		if err != nil {
			return models.DateRange{}, 0, "", validationError("month must be formatted YYYY-MM")
		}
		end := start.AddDate(0, 1, 0)
		return models.DateRange{From: &start, To: &end}, start.Year(), "stats:month:" + query.Month, nil

	case query.Week != "":
		start, year, err := parseISOWeek(query.Week)
		if err != nil {
			return models.DateRange{}, 0, "", validationError("week must be formatted YYYY-Www")
		}
		end := start.AddDate(0, 0, 7)
		return models.DateRange{From: &start, To: &end}, year, "stats:week:" + query.Week, nil

	case query.Year != "":
		year, err := strconv.Atoi(query.Year)
		if err != nil || year < 1970 || year > 9999 {
			return models.DateRange{}, 0, "", validationError("year must be a four-digit year")
		}
		start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(1, 0, 0)
		return models.DateRange{From: &start, To: &end}, year, "stats:year:" + query.Year, nil
	}

	return models.DateRange{}, s.now().Year(), "stats:all", nil
}

// parseISOWeek returns the Monday starting the given ISO week. January 4
// always falls in week 1.
func parseISOWeek(raw string) (time.Time, int, error) {
	match := isoWeekPattern.FindStringSubmatch(raw)
	if match == nil {
		return time.Time{}, 0, fmt.Errorf("malformed iso week %q", raw)
	}
	year, _ := strconv.Atoi(match[1])
	week, _ := strconv.Atoi(match[2])
	if week < 1 || week > 53 {
		return time.Time{}, 0, fmt.Errorf("iso week out of range: %d", week)
	}

	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (week-1)*7), year, nil
}

func validationError(message string) error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

func groupMap(groups []models.GroupCount) map[string]int {
	result := make(map[string]int, len(groups))
	for _, group := range groups {
		result[group.Key] = group.Count
	}
	return result
}

// topGroup picks the group with the maximum count, first encountered
// winning ties.
func topGroup(groups []models.GroupCount) string {
	top := ""
	best := -1
	for _, group := range groups {
		if group.Count > best {
			best = group.Count
			top = group.Key
		}
	}
	return top
}

// mergeSeries unions the opened and closed day buckets into one series
// sorted ascending by date with no duplicates.
func mergeSeries(opened, closed []models.DayCount) []dto.TimeBucket {
	buckets := map[string]*dto.TimeBucket{}
	for _, day := range opened {
		buckets[day.Day] = &dto.TimeBucket{Date: day.Day, Opened: day.Count}
	}
	for _, day := range closed {
		if bucket, ok := buckets[day.Day]; ok {
			bucket.Closed = day.Count
			continue
		}
		buckets[day.Day] = &dto.TimeBucket{Date: day.Day, Closed: day.Count}
	}

	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	series := make([]dto.TimeBucket, 0, len(dates))
	for _, date := range dates {
		series = append(series, *buckets[date])
	}
	return series
}
