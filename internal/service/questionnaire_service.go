package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/repository"
	"questionnaire_backend/internal/util"
	"questionnaire_backend/pkg/logger"
	"questionnaire_backend/pkg/monitoring"
	"questionnaire_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// QuestionnaireStore 问卷持久化，由 repository.QuestionnaireRepository 实现
type QuestionnaireStore interface {
	Create(ctx context.Context, rec *model.Questionnaire) (uint, bool, error)
	FindByID(ctx context.Context, id uint) (*model.Questionnaire, error)
	List(ctx context.Context, f repository.ListFilter) ([]model.Questionnaire, int64, error)
	FilterOptions(ctx context.Context) (*model.FilterOptions, error)
	Statistics(ctx context.Context, since time.Time) (*model.AdminStatistics, error)
	ForEachBatch(ctx context.Context, size int, fn func([]model.Questionnaire) error) error
	Ping(ctx context.Context) error
}

type QuestionnaireService struct {
	Store      QuestionnaireStore
	Registry   *SchemaRegistry
	Normalizer *Normalizer
	Validator  *Validator
	Scorer     *Scorer
	Cache      Cache
	CacheTTL   time.Duration
	Now        util.Clock
}

func NewQuestionnaireService(store QuestionnaireStore, registry *SchemaRegistry, cache Cache, cacheTTL time.Duration, clock util.Clock) *QuestionnaireService {
	if clock == nil {
		clock = util.SystemClock
	}
	if cache == nil {
		cache = NoopCache{}
	}
	return &QuestionnaireService{
		Store:      store,
		Registry:   registry,
		Normalizer: NewNormalizer(clock),
		Validator:  NewValidator(registry),
		Scorer:     NewScorer(registry),
		Cache:      cache,
		CacheTTL:   cacheTTL,
		Now:        clock,
	}
}

// SubmitResult Duplicate 为 true 表示 submission_id 已提交过，ID 为原记录
type SubmitResult struct {
	ID         uint
	Duplicate  bool
	Submission *model.Submission
}

// Submit 规范化、校验、评分后写入。结构错误与校验错误原样返回，存储错误包装后返回
func (s *QuestionnaireService) Submit(ctx context.Context, payload map[string]interface{}) (*SubmitResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "questionnaire.submit")
	defer span.End()

	start := time.Now()
	sub, err := s.Normalizer.Normalize(payload)
	monitoring.ObserveStage("normalize", start)
	if err != nil {
		monitoring.CountSubmission("", "invalid")
		span.SetStatus(codes.Error, "normalize")
		return nil, err
	}
	span.SetAttributes(attribute.String("questionnaire.kind", sub.Kind))

	start = time.Now()
	err = s.Validator.Validate(sub)
	monitoring.ObserveStage("validate", start)
	if err != nil {
		monitoring.CountSubmission(s.metricKind(sub.Kind), "invalid")
		span.SetStatus(codes.Error, "validate")
		return nil, err
	}

	at := s.Now().UTC()
	start = time.Now()
	sub.Statistics = s.Scorer.Score(sub, at)
	monitoring.ObserveStage("score", start)
	sub.CreatedAt = at.Format(time.RFC3339)

	rec, err := model.ProjectQuestionnaire(sub, at)
	if err != nil {
		monitoring.CountSubmission(sub.Kind, "error")
		return nil, fmt.Errorf("encode questionnaire: %w", err)
	}

	start = time.Now()
	id, duplicate, err := s.Store.Create(ctx, rec)
	monitoring.ObserveStage("persist", start)
	if err != nil {
		monitoring.CountSubmission(sub.Kind, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		return nil, fmt.Errorf("persist questionnaire: %w", err)
	}
	span.SetAttributes(attribute.Int64("questionnaire.id", int64(id)), attribute.Bool("questionnaire.duplicate", duplicate))

	if duplicate {
		monitoring.CountSubmission(sub.Kind, "duplicate")
		logger.Log.Info("Duplicate questionnaire submission",
			zap.Uint("id", id),
			zap.String("submission_id", sub.SubmissionID),
		)
		return &SubmitResult{ID: id, Duplicate: true, Submission: sub}, nil
	}

	monitoring.CountSubmission(sub.Kind, "created")
	if err := s.Cache.Delete(ctx, cacheKeyFilterOptions, cacheKeyAdminStats); err != nil {
		logger.Log.Warn("Failed to invalidate questionnaire cache", zap.Error(err))
	}
	return &SubmitResult{ID: id, Submission: sub}, nil
}

// metricKind 未登记的类型统一记为 unknown，避免标签基数失控
func (s *QuestionnaireService) metricKind(kind string) string {
	if _, ok := s.Registry.Lookup(kind); ok {
		return kind
	}
	return "unknown"
}

// Get 返回存储的规范 JSON
func (s *QuestionnaireService) Get(ctx context.Context, id uint) (json.RawMessage, error) {
	rec, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(rec.Data), nil
}

// Load 读取并还原为规范模型
func (s *QuestionnaireService) Load(ctx context.Context, id uint) (*model.Submission, error) {
	rec, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.ParseSubmission(rec.Data)
}

// ListQuery 列表查询参数，日期为 YYYY-MM-DD
type ListQuery struct {
	Kind     string `form:"kind"`
	Grade    string `form:"grade"`
	Search   string `form:"search"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

func (s *QuestionnaireService) List(ctx context.Context, q ListQuery) ([]model.QuestionnaireSummary, util.Pagination, error) {
	page, size := util.NormalizePage(q.Page, q.PageSize)
	filter := repository.ListFilter{
		Type:     q.Kind,
		Grade:    q.Grade,
		Search:   q.Search,
		Page:     page,
		PageSize: size,
	}

	verr := util.NewValidationError("invalid list query")
	if q.DateFrom != "" {
		from, err := time.ParseInLocation(util.DateFormat, q.DateFrom, time.Local)
		if err != nil {
			verr.Add("date_from", "must be a date in YYYY-MM-DD format")
		} else {
			from = from.UTC()
			filter.DateFrom = &from
		}
	}
	if q.DateTo != "" {
		to, err := time.ParseInLocation(util.DateFormat, q.DateTo, time.Local)
		if err != nil {
			verr.Add("date_to", "must be a date in YYYY-MM-DD format")
		} else {
			// 包含当天
			end := to.AddDate(0, 0, 1).UTC()
			filter.DateTo = &end
		}
	}
	if err := verr.Err(); err != nil {
		return nil, util.Pagination{}, err
	}

	recs, total, err := s.Store.List(ctx, filter)
	if err != nil {
		return nil, util.Pagination{}, err
	}
	out := make([]model.QuestionnaireSummary, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].Summary())
	}
	return out, util.NewPagination(page, size, total), nil
}

func (s *QuestionnaireService) FilterOptions(ctx context.Context) (*model.FilterOptions, error) {
	var cached model.FilterOptions
	if hit, err := s.Cache.Get(ctx, cacheKeyFilterOptions, &cached); err != nil {
		logger.Log.Warn("Failed to read filter options cache", zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	opts, err := s.Store.FilterOptions(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, cacheKeyFilterOptions, opts, s.CacheTTL); err != nil {
		logger.Log.Warn("Failed to cache filter options", zap.Error(err))
	}
	return opts, nil
}

// AdminStatistics today 按服务器本地时区的自然日计算
func (s *QuestionnaireService) AdminStatistics(ctx context.Context) (*model.AdminStatistics, error) {
	var cached model.AdminStatistics
	if hit, err := s.Cache.Get(ctx, cacheKeyAdminStats, &cached); err != nil {
		logger.Log.Warn("Failed to read statistics cache", zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	now := s.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	stats, err := s.Store.Statistics(ctx, midnight.UTC())
	if err != nil {
		return nil, err
	}
	stats.ComputedAt = now.UTC().Format(time.RFC3339)

	if err := s.Cache.Set(ctx, cacheKeyAdminStats, stats, s.CacheTTL); err != nil {
		logger.Log.Warn("Failed to cache statistics", zap.Error(err))
	}
	return stats, nil
}

func (s *QuestionnaireService) Schemas() []SchemaDescriptor {
	return s.Registry.Descriptors()
}

func (s *QuestionnaireService) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return nil
}
