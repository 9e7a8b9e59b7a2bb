package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"stockroom/internal/cache"
	"stockroom/internal/model"
	"stockroom/internal/report"
	"stockroom/internal/repository"
	"stockroom/internal/statistics"
	"stockroom/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("stockroom/internal/service")

// StatisticsQuery selects the window either by a named filter or by explicit
// RFC3339 dates. Missing dates default to the start of the current month and now.
type StatisticsQuery struct {
	Filter    string `form:"filter"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Status    string `form:"status"`
}

type StatisticsService interface {
	GetStatistics(ctx context.Context, viewer model.Viewer, query StatisticsQuery) (model.AggregateResult, error)
	ExportStatistics(ctx context.Context, viewer model.Viewer, query StatisticsQuery, w io.Writer) error
}

type statisticsService struct {
	taskRepo    repository.TaskRepository
	productRepo repository.ProductRepository
	statsCache  cache.StatisticsCache
	loc         *time.Location
	log         *logger.Logger
	now         func() time.Time
}

func NewStatisticsService(
	taskRepo repository.TaskRepository,
	productRepo repository.ProductRepository,
	statsCache cache.StatisticsCache,
	loc *time.Location,
	log *logger.Logger,
) StatisticsService {
	if loc == nil {
		loc = time.Local
	}
	return &statisticsService{
		taskRepo:    taskRepo,
		productRepo: productRepo,
		statsCache:  statsCache,
		loc:         loc,
		log:         log.With("service", "StatisticsService"),
		now:         time.Now,
	}
}

func (s *statisticsService) resolveWindow(query StatisticsQuery) (statistics.Window, error) {
	now := s.now().In(s.loc)

	if query.Filter != "" {
		if query.StartDate != "" || query.EndDate != "" {
			return statistics.Window{}, fmt.Errorf("%w: filter and start_date/end_date are exclusive", statistics.ErrInvalidInput)
		}
		filter, err := statistics.ParseTimeFilter(strings.ToLower(query.Filter))
		if err != nil {
			return statistics.Window{}, err
		}
		return statistics.WindowFor(filter, now)
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	end := now
	var err error
	if query.StartDate != "" {
		if start, err = time.Parse(time.RFC3339, query.StartDate); err != nil {
			return statistics.Window{}, fmt.Errorf("%w: invalid start_date format, expected RFC3339", statistics.ErrInvalidInput)
		}
	}
	if query.EndDate != "" {
		if end, err = time.Parse(time.RFC3339, query.EndDate); err != nil {
			return statistics.Window{}, fmt.Errorf("%w: invalid end_date format, expected RFC3339", statistics.ErrInvalidInput)
		}
	}
	return statistics.NewWindow(start, end)
}

func cacheKey(gen int64, window statistics.Window, status model.TaskStatus, viewer model.Viewer) string {
	bounds := "all"
	if window.Bounded {
		bounds = window.Start.UTC().Format(time.RFC3339Nano) + "/" + window.End.UTC().Format(time.RFC3339Nano)
	}
	scope := "everyone"
	if !model.CanViewAllData(viewer.Role) {
		scope = "creator:" + strings.TrimSpace(viewer.Name)
	}
	return fmt.Sprintf("g%d|%s|%s|%s", gen, bounds, status, scope)
}

// GetStatistics loads tasks and the catalog concurrently and aggregates them for viewer
func (s *statisticsService) GetStatistics(ctx context.Context, viewer model.Viewer, query StatisticsQuery) (model.AggregateResult, error) {
	ctx, span := tracer.Start(ctx, "StatisticsService.GetStatistics")
	defer span.End()
	span.SetAttributes(
		attribute.String("statistics.filter", query.Filter),
		attribute.String("statistics.viewer_role", string(viewer.Role)),
	)

	window, err := s.resolveWindow(query)
	if err != nil {
		return model.AggregateResult{}, err
	}

	var status model.TaskStatus
	if query.Status != "" {
		parsed, ok := model.ParseTaskStatus(query.Status)
		if !ok {
			return model.AggregateResult{}, fmt.Errorf("%w: unknown task status %q", statistics.ErrInvalidInput, query.Status)
		}
		status = parsed
	}

	gen, err := s.statsCache.Generation(ctx)
	if err != nil {
		s.log.Warn("statistics cache unavailable", "error", err)
	}
	key := cacheKey(gen, window, status, viewer)
	if err == nil {
		var cached model.AggregateResult
		found, getErr := s.statsCache.Get(ctx, key, &cached)
		if getErr != nil {
			s.log.Warn("statistics cache read failed", "key", key, "error", getErr)
		}
		if found {
			span.SetAttributes(attribute.Bool("statistics.cache_hit", true))
			return cached, nil
		}
	}

	filter := repository.TaskFilter{Status: status}
	if window.Bounded {
		start, end := window.Start, window.End
		filter.EffectiveFrom = &start
		filter.EffectiveTo = &end
	}
	if !model.CanViewAllData(viewer.Role) {
		name := viewer.Name
		filter.CreatorName = &name
	}

	var tasks []model.Task
	var products []model.Product
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tasks, err = s.taskRepo.ListWithItems(gctx, filter); err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if products, err = s.productRepo.ListCatalog(gctx); err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.AggregateResult{}, err
	}

	res, err := statistics.Compute(tasks, products, window, viewer)
	if err != nil {
		return model.AggregateResult{}, err
	}

	if res.Anomalies.Any() {
		s.log.Warn("statistics computed over incomplete data",
			"empty_tasks", res.Anomalies.EmptyTasks,
			"undated_tasks", res.Anomalies.UndatedTasks,
			"unnamed_creators", res.Anomalies.UnnamedCreators,
			"unresolved_items", res.Anomalies.UnresolvedItems,
		)
	}

	if err := s.statsCache.Set(ctx, key, res); err != nil {
		s.log.Warn("statistics cache write failed", "key", key, "error", err)
	}
	return res, nil
}

func (s *statisticsService) ExportStatistics(ctx context.Context, viewer model.Viewer, query StatisticsQuery, w io.Writer) error {
	res, err := s.GetStatistics(ctx, viewer, query)
	if err != nil {
		return err
	}
	return report.WriteStatistics(w, res)
}
