package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/util"
	"questionnaire_backend/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *QuestionnaireRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return NewQuestionnaireRepository(db)
}

var base = time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

func record(name, kind, grade string, createdAt time.Time) *model.Questionnaire {
	return &model.Questionnaire{
		Name:        name,
		Type:        kind,
		Grade:       grade,
		ParentPhone: "13800138000",
		CreatedAt:   createdAt,
		Data:        datatypes.JSON(fmt.Sprintf(`{"type":%q,"basic_info":{"name":%q}}`, kind, name)),
	}
}

func TestCreateAndFindByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sub := &model.Submission{
		Kind: "speech_habit",
		BasicInfo: model.BasicInfo{
			Name: "王五", Grade: "小学", SubmissionDate: "2025-08-29",
			ParentPhone: "13800138000", ParentWechat: "wx_1", ParentEmail: "p@example.com",
		},
		Questions: []model.Question{{ID: 1, Type: model.QuestionText, SelectedTexts: []string{"<ok>"}}},
	}
	rec, err := model.ProjectQuestionnaire(sub, base)
	require.NoError(t, err)

	id, duplicate, err := repo.Create(ctx, rec)
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.NotZero(t, id)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "王五", got.Name)
	assert.Equal(t, "speech_habit", got.Type)
	assert.Equal(t, "小学", got.Grade)
	assert.Equal(t, "13800138000", got.ParentPhone)
	assert.Equal(t, "wx_1", got.ParentWechat)
	assert.Equal(t, "p@example.com", got.ParentEmail)
	assert.Nil(t, got.SubmissionID)
	assert.True(t, base.Equal(got.CreatedAt))

	// data 原样保存，不做 ASCII/HTML 转义
	assert.Contains(t, string(got.Data), "王五")
	assert.Contains(t, string(got.Data), "<ok>")

	loaded, err := model.ParseSubmission(got.Data)
	require.NoError(t, err)
	assert.Equal(t, sub, loaded)
}

func TestFindByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.FindByID(context.Background(), 42)
	assert.ErrorIs(t, err, util.ErrQuestionnaireNotFound)
}

func TestCreateIsIdempotentOnSubmissionID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sid := "client-123"
	first := record("A", "speech_habit", "小学", base)
	first.SubmissionID = &sid
	id1, dup1, err := repo.Create(ctx, first)
	require.NoError(t, err)
	assert.False(t, dup1)

	again := record("A", "speech_habit", "小学", base.Add(time.Minute))
	again.SubmissionID = &sid
	id2, dup2, err := repo.Create(ctx, again)
	require.NoError(t, err)
	assert.True(t, dup2)
	assert.Equal(t, id1, id2)

	// 没有 submission_id 的提交每次都是新记录
	id3, _, err := repo.Create(ctx, record("A", "speech_habit", "小学", base))
	require.NoError(t, err)
	id4, _, err := repo.Create(ctx, record("A", "speech_habit", "小学", base))
	require.NoError(t, err)
	assert.NotEqual(t, id3, id4)

	_, total, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestUniqueSubmissionIDIsEnforced(t *testing.T) {
	repo := newTestRepo(t)
	sid := "dup"
	a := record("A", "speech_habit", "小学", base)
	a.SubmissionID = &sid
	require.NoError(t, repo.DB.Create(a).Error)

	b := record("B", "speech_habit", "小学", base)
	b.SubmissionID = &sid
	assert.ErrorIs(t, repo.DB.Create(b).Error, gorm.ErrDuplicatedKey)
}

func TestListPagingAndFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		kind, grade := "speech_habit", "小学"
		if i%5 == 0 {
			kind, grade = "parent_interview", "幼儿园"
		}
		_, _, err := repo.Create(ctx, record(fmt.Sprintf("学生%02d", i), kind, grade, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	page1, total, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	require.Len(t, page1, util.DefaultPageSize)
	assert.Equal(t, "学生24", page1[0].Name)
	assert.Empty(t, page1[0].Data)
	for i := 1; i < len(page1); i++ {
		assert.False(t, page1[i].CreatedAt.After(page1[i-1].CreatedAt))
	}

	page2, _, err := repo.List(ctx, ListFilter{Page: 2})
	require.NoError(t, err)
	require.Len(t, page2, 5)
	assert.Equal(t, "学生00", page2[4].Name)

	capped, _, err := repo.List(ctx, ListFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Len(t, capped, 25)

	byKind, total, err := repo.List(ctx, ListFilter{Type: "parent_interview"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	for _, q := range byKind {
		assert.Equal(t, "parent_interview", q.Type)
	}

	byGrade, total, err := repo.List(ctx, ListFilter{Grade: "幼儿园"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, byGrade, 5)

	_, total, err = repo.List(ctx, ListFilter{Search: "学生1"})
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)

	from := base.Add(10 * time.Hour)
	to := base.Add(12 * time.Hour)
	ranged, total, err := repo.List(ctx, ListFilter{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "学生11", ranged[0].Name)
	assert.Equal(t, "学生10", ranged[1].Name)
}

func TestFilterOptionsAndStatistics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	opts, err := repo.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, opts.Types)
	assert.Empty(t, opts.DateRange.Min)

	rows := []*model.Questionnaire{
		record("A", "speech_habit", "小学", base),
		record("B", "speech_habit", "", base.Add(24*time.Hour)),
		record("C", "frankfurt_scale_selective_mutism", "幼儿园", base.Add(72*time.Hour)),
	}
	for _, r := range rows {
		_, _, err := repo.Create(ctx, r)
		require.NoError(t, err)
	}

	opts, err = repo.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"frankfurt_scale_selective_mutism", "speech_habit"}, opts.Types)
	assert.Equal(t, []string{"小学", "幼儿园"}, opts.Grades)
	assert.Equal(t, "2025-08-01", opts.DateRange.Min)
	assert.Equal(t, "2025-08-04", opts.DateRange.Max)

	stats, err := repo.Statistics(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.Today)
	assert.Equal(t, []model.KindCount{
		{Type: "frankfurt_scale_selective_mutism", Count: 1},
		{Type: "speech_habit", Count: 2},
	}, stats.ByType)
}

func TestForEachBatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, _, err := repo.Create(ctx, record(fmt.Sprint(i), "speech_habit", "小学", base))
		require.NoError(t, err)
	}

	var batches []int
	var names []string
	err := repo.ForEachBatch(ctx, 3, func(batch []model.Questionnaire) error {
		batches = append(batches, len(batch))
		for _, q := range batch {
			names = append(names, q.Name)
			assert.NotEmpty(t, q.Data)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, batches)
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6"}, names)

	require.NoError(t, repo.Ping(ctx))
}
