package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"questionnaire_backend/internal/config"
	"questionnaire_backend/internal/util"
	"questionnaire_backend/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2025, 8, 29, 10, 30, 0, 0, time.UTC)

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	cfg := &config.Config{
		Server:    config.ServerConfig{Port: "0", Mode: "test"},
		Storage:   config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:8080"}},
		RateLimit: config.RateLimitConfig{MaxRequests: 100000, WindowMinutes: 1},
	}
	a := New(cfg, db, nil, func() time.Time { return fixedNow })
	t.Cleanup(a.Close)
	return a
}

type result struct {
	Code int
	Body map[string]interface{}
	Raw  string
	Resp *httptest.ResponseRecorder
}

func do(t *testing.T, a *App, method, path, body string) result {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed), w.Body.String())
	}
	return result{Code: w.Code, Body: parsed, Raw: w.Body.String(), Resp: w}
}

func errorBody(t *testing.T, r result) map[string]interface{} {
	t.Helper()
	assert.Equal(t, false, r.Body["success"])
	body, ok := r.Body["error"].(map[string]interface{})
	require.True(t, ok, r.Raw)
	assert.NotEmpty(t, body["request_id"])
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, r.Body["timestamp"])
	return body
}

func details(body map[string]interface{}) []string {
	raw, _ := body["details"].([]interface{})
	out := make([]string, 0, len(raw))
	for _, d := range raw {
		out = append(out, d.(string))
	}
	return out
}

func submit(t *testing.T, a *App, payload string) uint {
	t.Helper()
	r := do(t, a, http.MethodPost, "/api/submit", payload)
	require.Equal(t, http.StatusCreated, r.Code, r.Raw)
	assert.Equal(t, true, r.Body["success"])
	return uint(r.Body["questionnaire_id"].(float64))
}

func stored(t *testing.T, a *App, id uint) map[string]interface{} {
	t.Helper()
	r := do(t, a, http.MethodGet, fmt.Sprintf("/api/questionnaire/%d", id), "")
	require.Equal(t, http.StatusOK, r.Code, r.Raw)
	data, ok := r.Body["data"].(map[string]interface{})
	require.True(t, ok, r.Raw)
	return data
}

func statistics(t *testing.T, data map[string]interface{}) map[string]interface{} {
	t.Helper()
	stats, ok := data["statistics"].(map[string]interface{})
	require.True(t, ok)
	return stats
}

const scenarioFrankfurt = `{"type":"frankfurt_scale_selective_mutism","basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
	"questions":[{"id":1,"type":"multiple_choice","question":"q","options":[{"value":0,"text":"no"},{"value":1,"text":"yes"}],"selected":[1],"section":"DS","can_speak":true}]}`

func TestScenarioFrankfurtMinimal(t *testing.T) {
	a := newTestApp(t)
	id := submit(t, a, scenarioFrankfurt)

	data := stored(t, a, id)
	assert.Equal(t, "frankfurt_scale_selective_mutism", data["type"])
	stats := statistics(t, data)
	assert.EqualValues(t, 1, stats["ds_total"])
	assert.Equal(t, "6_11", stats["age_group"])
	assert.EqualValues(t, 100, stats["completion_rate"])
	assert.Equal(t, "2025-08-29T10:30:00Z", stats["submission_time"])

	alias := do(t, a, http.MethodGet, fmt.Sprintf("/api/questionnaires/%d", id), "")
	assert.Equal(t, http.StatusOK, alias.Code)
}

func TestScenarioRatingScalePreservation(t *testing.T) {
	a := newTestApp(t)
	id := submit(t, a, `{"type":"小学生报告","basic_info":{"name":"B","grade":"小学二年级","submission_date":"2025-08-29"},
		"questions":[{"id":1,"type":"rating_scale","question":"喜欢上学",
		"options":[{"value":1,"text":"1"},{"value":2,"text":"2"},{"value":3,"text":"3"},{"value":4,"text":"4"},{"value":5,"text":"5"}],"selected":[3]}]}`)

	data := stored(t, a, id)
	q := data["questions"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(3)}, q["selected"])
	opts := q["options"].([]interface{})
	assert.EqualValues(t, 1, opts[0].(map[string]interface{})["value"])
	assert.EqualValues(t, 5, opts[4].(map[string]interface{})["value"])
	assert.EqualValues(t, 3, statistics(t, data)["total_score"])
	// 中文不转义
	raw := do(t, a, http.MethodGet, fmt.Sprintf("/api/questionnaire/%d", id), "").Raw
	assert.Contains(t, raw, "小学生报告")
}

func TestScenarioUnknownSelectedValue(t *testing.T) {
	a := newTestApp(t)
	r := do(t, a, http.MethodPost, "/api/submit", `{"type":"elementary_school_communication_assessment",
		"basic_info":{"name":"C","grade":"小学","submission_date":"2025-08-29"},
		"questions":[{"id":1,"type":"multiple_choice","question":"q","options":[{"value":0},{"value":1}],"selected":[2]}]}`)

	assert.Equal(t, http.StatusBadRequest, r.Code)
	body := errorBody(t, r)
	assert.Equal(t, util.CodeValidation, body["code"])
	assert.Equal(t, []string{"questions[0].selected: value 2 not in option set"}, details(body))
}

func TestSubmitRejectsOverlongSubmissionID(t *testing.T) {
	a := newTestApp(t)
	payload := strings.Replace(scenarioFrankfurt, `"type"`, `"submission_id":"`+strings.Repeat("s", 65)+`","type"`, 1)
	r := do(t, a, http.MethodPost, "/api/submit", payload)

	assert.Equal(t, http.StatusBadRequest, r.Code, r.Raw)
	body := errorBody(t, r)
	assert.Equal(t, util.CodeValidation, body["code"])
	assert.Equal(t, []string{"submission_id: must be at most 64 characters"}, details(body))
	// timestamp 来自注入的时钟
	assert.Equal(t, "2025-08-29T10:30:00Z", r.Body["timestamp"])
}

func TestScenarioMissingType(t *testing.T) {
	a := newTestApp(t)
	r := do(t, a, http.MethodPost, "/api/submit", `{"basic_info":{"name":"D","grade":"小学","submission_date":"2025-08-29"},"questions":[]}`)

	assert.Equal(t, http.StatusBadRequest, r.Code)
	body := errorBody(t, r)
	assert.Equal(t, util.CodeValidation, body["code"])
	d := details(body)
	require.Len(t, d, 1)
	assert.Contains(t, d[0], "type")
}

func TestScenarioCompletionRate(t *testing.T) {
	a := newTestApp(t)
	items := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		selected := "[]"
		if i <= 7 {
			selected = "[0]"
		}
		items = append(items, fmt.Sprintf(`{"id":%d,"type":"binary","options":[{"value":0,"text":"否"},{"value":1,"text":"是"}],"selected":%s}`, i, selected))
	}
	id := submit(t, a, `{"type":"speech_habit","basic_info":{"name":"E","grade":"小学","submission_date":"2025-08-29"},
		"questions":[`+strings.Join(items, ",")+`]}`)

	assert.EqualValues(t, 70, statistics(t, stored(t, a, id))["completion_rate"])
}

func TestScenarioMultiSectionSums(t *testing.T) {
	a := newTestApp(t)
	build := func(homeCanSpeak bool) string {
		var items []string
		for i, section := range []string{"DS", "SS_school", "SS_public", "SS_home"} {
			canSpeak := section != "SS_home" || homeCanSpeak
			items = append(items, fmt.Sprintf(`{"id":%d,"type":"multiple_choice","section":%q,"can_speak":%t,
				"options":[{"value":0},{"value":1},{"value":2},{"value":3},{"value":4}],"selected":[2]}`, i+1, section, canSpeak))
		}
		return `{"type":"frankfurt_scale_selective_mutism","basic_info":{"name":"F","grade":"小学","submission_date":"2025-08-29"},
			"questions":[` + strings.Join(items, ",") + `]}`
	}

	stats := statistics(t, stored(t, a, submit(t, a, build(true))))
	for _, key := range []string{"ds_total", "ss_school_total", "ss_public_total", "ss_home_total"} {
		assert.EqualValues(t, 2, stats[key], key)
	}
	assert.EqualValues(t, 100, stats["completion_rate"])

	flipped := statistics(t, stored(t, a, submit(t, a, build(false))))
	assert.EqualValues(t, 0, flipped["ss_home_total"])
	assert.EqualValues(t, 2, flipped["ss_school_total"])
	assert.EqualValues(t, 100, flipped["completion_rate"])
}

func TestSubmitAliasAndDuplicate(t *testing.T) {
	a := newTestApp(t)
	payload := strings.Replace(scenarioFrankfurt, `"questions"`, `"submission_id":"browser-42","questions"`, 1)

	first := do(t, a, http.MethodPost, "/api/questionnaires", payload)
	require.Equal(t, http.StatusCreated, first.Code, first.Raw)
	_, hasDup := first.Body["duplicate"]
	assert.False(t, hasDup)

	second := do(t, a, http.MethodPost, "/api/submit", payload)
	require.Equal(t, http.StatusOK, second.Code, second.Raw)
	assert.Equal(t, true, second.Body["duplicate"])
	assert.Equal(t, first.Body["questionnaire_id"], second.Body["questionnaire_id"])
}

func TestSubmitRejectsNonObjectBody(t *testing.T) {
	a := newTestApp(t)
	for _, body := range []string{`[1,2]`, `not json`, `null`} {
		r := do(t, a, http.MethodPost, "/api/submit", body)
		assert.Equal(t, http.StatusBadRequest, r.Code, body)
		assert.Equal(t, util.CodeValidation, errorBody(t, r)["code"])
	}
}

func TestGetQuestionnaireErrors(t *testing.T) {
	a := newTestApp(t)

	r := do(t, a, http.MethodGet, "/api/questionnaire/999", "")
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, util.CodeNotFound, errorBody(t, r)["code"])

	r = do(t, a, http.MethodGet, "/api/questionnaire/abc", "")
	assert.Equal(t, http.StatusBadRequest, r.Code)
}

func TestListAndFilters(t *testing.T) {
	a := newTestApp(t)
	for i := 0; i < 3; i++ {
		submit(t, a, scenarioFrankfurt)
	}

	r := do(t, a, http.MethodGet, "/api/questionnaires?kind=frankfurt_scale_selective_mutism&page_size=2", "")
	require.Equal(t, http.StatusOK, r.Code, r.Raw)
	assert.Len(t, r.Body["data"], 2)
	p := r.Body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 3, p["total"])
	assert.EqualValues(t, 2, p["pages"])
	assert.Equal(t, true, p["has_next"])

	r = do(t, a, http.MethodGet, "/api/questionnaires?date_from=2025-08-28&date_to=2025-08-30", "")
	require.Equal(t, http.StatusOK, r.Code, r.Raw)
	assert.EqualValues(t, 3, r.Body["pagination"].(map[string]interface{})["total"])

	r = do(t, a, http.MethodGet, "/api/questionnaires?date_from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = do(t, a, http.MethodGet, "/api/questionnaires/filters", "")
	require.Equal(t, http.StatusOK, r.Code, r.Raw)
	filters := r.Body["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"frankfurt_scale_selective_mutism"}, filters["types"])
	assert.Equal(t, []interface{}{"小学"}, filters["grades"])
}

func TestSchemasHealthAndAdmin(t *testing.T) {
	a := newTestApp(t)
	submit(t, a, scenarioFrankfurt)

	r := do(t, a, http.MethodGet, "/api/schemas", "")
	require.Equal(t, http.StatusOK, r.Code)
	assert.Len(t, r.Body["data"], 5)

	r = do(t, a, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, r.Code, r.Raw)
	assert.Equal(t, "ok", r.Body["data"].(map[string]interface{})["status"])

	r = do(t, a, http.MethodGet, "/api/admin/statistics", "")
	require.Equal(t, http.StatusOK, r.Code, r.Raw)
	stats := r.Body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["total"])
	assert.EqualValues(t, 1, stats["today"])

	r = do(t, a, http.MethodPost, "/api/admin/backup", "")
	require.Equal(t, http.StatusCreated, r.Code, r.Raw)
	backup := r.Body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, backup["rows"])
	assert.NotEmpty(t, backup["object"])
}

func TestHealthReportsStoreOutage(t *testing.T) {
	a := newTestApp(t)
	sqlDB, err := a.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	r := do(t, a, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, r.Code)
	assert.Equal(t, util.CodeServer, errorBody(t, r)["code"])
	assert.EqualValues(t, 30, r.Body["retry_after"])

	r = do(t, a, http.MethodPost, "/api/submit", scenarioFrankfurt)
	assert.Equal(t, http.StatusInternalServerError, r.Code)
	body := errorBody(t, r)
	assert.Equal(t, util.CodeServer, body["code"])
	// 技术细节只写日志
	assert.Empty(t, body["technical_message"])
}

func TestRequestIDAndCORS(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/questionnaire/999", nil)
	req.Header.Set(util.RequestIDHeader, "req-abc")
	req.Header.Set("Origin", "http://localhost:8080")
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	assert.Equal(t, "req-abc", w.Header().Get(util.RequestIDHeader))
	assert.Equal(t, "http://localhost:8080", w.Header().Get("Access-Control-Allow-Origin"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-abc", body["error"].(map[string]interface{})["request_id"])

	req = httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// 配置热更新后白名单生效
	for _, cb := range a.configCallbacks {
		cb(&config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"http://evil.example"}}})
	}
	w = httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	assert.Equal(t, "http://evil.example", w.Header().Get("Access-Control-Allow-Origin"))
}
