package repository

import (
	"context"
	"errors"
	"time"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/util"

	"gorm.io/gorm"
)

// 列表只取摘要列，不读 data
var summaryColumns = []string{
	"id", "name", "type", "grade", "parent_phone", "parent_wechat", "parent_email", "submission_id", "created_at",
}

type QuestionnaireRepository struct {
	DB *gorm.DB
}

func NewQuestionnaireRepository(db *gorm.DB) *QuestionnaireRepository {
	return &QuestionnaireRepository{DB: db}
}

// ListFilter 列表筛选条件，零值表示不过滤
type ListFilter struct {
	Type     string
	Grade    string
	Search   string
	DateFrom *time.Time
	// 不含
	DateTo   *time.Time
	Page     int
	PageSize int
}

// Create 写入一条记录。带 submission_id 时幂等：已存在则返回原记录 ID 且 duplicate 为 true
func (r *QuestionnaireRepository) Create(ctx context.Context, rec *model.Questionnaire) (uint, bool, error) {
	db := r.DB.WithContext(ctx)
	if rec.SubmissionID == nil {
		if err := db.Create(rec).Error; err != nil {
			return 0, false, err
		}
		return rec.ID, false, nil
	}

	var id uint
	duplicate := false
	err := db.Transaction(func(tx *gorm.DB) error {
		existing, err := findIDBySubmissionID(tx, *rec.SubmissionID)
		if err == nil {
			id, duplicate = existing, true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		id = rec.ID
		return nil
	})

	// 并发重复提交：唯一索引冲突后读取先写入的那条
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, ferr := findIDBySubmissionID(db, *rec.SubmissionID)
		if ferr == nil {
			return existing, true, nil
		}
	}
	if err != nil {
		return 0, false, err
	}
	return id, duplicate, nil
}

func findIDBySubmissionID(tx *gorm.DB, submissionID string) (uint, error) {
	var ids []uint
	err := tx.Model(&model.Questionnaire{}).
		Where("submission_id = ?", submissionID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return ids[0], nil
}

func (r *QuestionnaireRepository) FindByID(ctx context.Context, id uint) (*model.Questionnaire, error) {
	var q model.Questionnaire
	err := r.DB.WithContext(ctx).First(&q, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionnaireNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionnaireRepository) List(ctx context.Context, f ListFilter) ([]model.Questionnaire, int64, error) {
	var qs []model.Questionnaire
	var total int64

	query := r.DB.WithContext(ctx).Model(&model.Questionnaire{})
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Grade != "" {
		query = query.Where("grade = ?", f.Grade)
	}
	if f.Search != "" {
		query = query.Where("name LIKE ?", "%"+f.Search+"%")
	}
	if f.DateFrom != nil {
		query = query.Where("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		query = query.Where("created_at < ?", *f.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, size := util.NormalizePage(f.Page, f.PageSize)
	offset := (page - 1) * size
	err := query.Select(summaryColumns).
		Order("created_at desc, id desc").
		Offset(offset).Limit(size).
		Find(&qs).Error
	return qs, total, err
}

func (r *QuestionnaireRepository) FilterOptions(ctx context.Context) (*model.FilterOptions, error) {
	db := r.DB.WithContext(ctx).Model(&model.Questionnaire{})
	opts := &model.FilterOptions{Types: []string{}, Grades: []string{}}

	if err := db.Session(&gorm.Session{}).Distinct("type").Order("type").Pluck("type", &opts.Types).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("grade <> ''").Distinct("grade").Order("grade").Pluck("grade", &opts.Grades).Error; err != nil {
		return nil, err
	}

	// 用排序取首尾而不是 MIN/MAX，保留列类型以便扫描为 time.Time
	var first, last []time.Time
	if err := db.Session(&gorm.Session{}).Order("created_at asc").Limit(1).Pluck("created_at", &first).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Order("created_at desc").Limit(1).Pluck("created_at", &last).Error; err != nil {
		return nil, err
	}
	if len(first) > 0 {
		opts.DateRange.Min = first[0].Format(util.DateFormat)
	}
	if len(last) > 0 {
		opts.DateRange.Max = last[0].Format(util.DateFormat)
	}
	return opts, nil
}

// Statistics 总数、since 之后的数量以及按类型计数
func (r *QuestionnaireRepository) Statistics(ctx context.Context, since time.Time) (*model.AdminStatistics, error) {
	db := r.DB.WithContext(ctx).Model(&model.Questionnaire{})
	stats := &model.AdminStatistics{ByType: []model.KindCount{}}

	if err := db.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("created_at >= ?", since).Count(&stats.Today).Error; err != nil {
		return nil, err
	}
	err := db.Session(&gorm.Session{}).
		Select("type, count(*) as count").
		Group("type").
		Order("type").
		Scan(&stats.ByType).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ForEachBatch 按主键顺序分批遍历全部记录（含 data）
func (r *QuestionnaireRepository) ForEachBatch(ctx context.Context, size int, fn func([]model.Questionnaire) error) error {
	var batch []model.Questionnaire
	return r.DB.WithContext(ctx).FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}

func (r *QuestionnaireRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
