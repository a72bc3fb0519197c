package service

import (
	"errors"
	"strings"
	"testing"

	"questionnaire_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validate(t *testing.T, raw string) []string {
	t.Helper()
	sub := normalizeJSON(t, raw)
	err := NewValidator(DefaultSchemaRegistry()).Validate(sub)
	if err == nil {
		return nil
	}
	var verr *util.ValidationError
	require.True(t, errors.As(err, &verr), err.Error())
	require.NotEmpty(t, verr.Issues)
	return verr.Details()
}

func TestValidateAcceptsFrankfurtMinimal(t *testing.T) {
	details := validate(t, `{"type":"frankfurt_scale_selective_mutism",
		"basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
		"questions":[{"id":1,"type":"multiple_choice","question":"q","options":[{"value":0,"text":"no"},{"value":1,"text":"yes"}],"selected":[1],"section":"DS","can_speak":true}]}`)
	assert.Empty(t, details)
}

func TestValidateUnknownSelectedValue(t *testing.T) {
	details := validate(t, `{"type":"elementary_school_communication_assessment",
		"basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
		"questions":[{"id":1,"type":"multiple_choice","question":"q","options":[{"value":0},{"value":1}],"selected":[2]}]}`)
	assert.Equal(t, []string{"questions[0].selected: value 2 not in option set"}, details)
}

func TestValidateUnknownKind(t *testing.T) {
	details := validate(t, `{"type":"nope",
		"basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
		"questions":[{"id":1,"type":"binary","options":[{"value":0},{"value":1}],"selected":[0]}]}`)
	require.NotEmpty(t, details)
	assert.Equal(t, `type: unknown kind "nope"`, details[0])
}

func TestValidateBasicInfo(t *testing.T) {
	details := validate(t, `{"type":"speech_habit",
		"basic_info":{"name":"","grade":"小学","submission_date":"2025/08/29",
		              "parent_phone":"call me","parent_email":"not-an-email","parent_wechat":"x"},
		"questions":[{"id":1,"type":"text","answer":"ok"}]}`)
	assert.Contains(t, details, "basic_info.name: is required")
	assert.Contains(t, details, "basic_info.submission_date: must be a date in YYYY-MM-DD format")
	assert.Contains(t, details, "basic_info.parent_phone: is not a valid phone number")
	assert.Contains(t, details, "basic_info.parent_email: is not a valid email address")
	assert.Contains(t, details, "basic_info.parent_wechat: is not a valid WeChat id")

	ok := validate(t, `{"type":"speech_habit",
		"basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29",
		              "parent_phone":"+86 138-0013-8000","parent_email":"p@example.com","parent_wechat":"wx_parent01"},
		"questions":[{"id":1,"type":"text","answer":"ok"}]}`)
	assert.Empty(t, ok)
}

func TestValidateCollectsAllQuestionErrors(t *testing.T) {
	details := validate(t, `{"type":"frankfurt_scale_selective_mutism",
		"basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
		"questions":[
			{"id":1,"type":"text","section":"DS","answer":"x"},
			{"id":1,"type":"multiple_choice","section":"XX","options":[{"value":0},{"value":0},{"value":9}],"selected":[0]},
			{"id":3,"type":"rating_scale","options":[],"selected":[]},
			{"id":4,"type":"multiple_choice","section":"DS","options":[{"value":0},{"value":1}],"selected":[]}
		]}`)

	assert.Equal(t, []string{
		`questions[0].type: question type "text" not allowed for frankfurt_scale_selective_mutism`,
		`questions[1].options[1].value: duplicate value 0`,
		`questions[1].options[2].value: value 9 outside allowed range 0-4`,
		`questions[1].section: unknown section "XX"`,
		`questions[1].id: duplicate id 1 (also used by questions[0])`,
		`questions[2].options: must not be empty for rating_scale questions`,
		`questions[2].section: is required`,
		`questions[2].selected: an answer is required`,
		`questions[3].selected: an answer is required`,
	}, details)
}

func TestValidateCardinality(t *testing.T) {
	details := validate(t, `{"type":"elementary_school_communication_assessment",
		"basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
		"questions":[
			{"id":1,"type":"binary","options":[{"value":0},{"value":1}],"selected":[0,1]},
			{"id":2,"type":"multiple_choice","allow_multiple":false,"options":[{"value":0},{"value":1}],"selected":[0,1]},
			{"id":3,"type":"multiple_choice","options":[{"value":0},{"value":1},{"value":2}],"selected":[0,2]},
			{"id":4,"type":"binary","options":[{"value":0},{"value":1},{"value":2}],"selected":[1]},
			{"id":5,"type":"rating_scale","options":[{"value":1},{"value":2},{"value":4}],"selected":[2]},
			{"id":6,"type":"text","selected_texts":["a","b"]}
		]}`)

	assert.Equal(t, []string{
		"questions[0].selected: exactly one value required, got 2",
		"questions[1].selected: exactly one value required, got 2",
		"questions[3].options: binary questions need exactly 2 options, got 3",
		"questions[3].options[2].value: value 2 outside allowed range 0-1",
		"questions[4].options: rating values must form a contiguous range",
		"questions[5].selected_texts: text questions accept at most one answer, got 2",
	}, details)
}

func TestValidateOptionalSectionsAndKinds(t *testing.T) {
	// SS 分部允许不作答
	frankfurt := validate(t, `{"type":"frankfurt_scale_selective_mutism",
		"basic_info":{"name":"A","grade":"幼儿园","submission_date":"2025-08-29"},
		"questions":[
			{"id":1,"type":"rating_scale","section":"DS","options":[{"value":0},{"value":1},{"value":2},{"value":3},{"value":4}],"selected":[3]},
			{"id":2,"type":"rating_scale","section":"SS_home","options":[{"value":0},{"value":1},{"value":2},{"value":3},{"value":4}],"selected":[]}
		]}`)
	assert.Empty(t, frankfurt)

	interview := validate(t, `{"type":"parent_interview",
		"basic_info":{"name":"A","grade":"初一","submission_date":"2025-08-29"},
		"questions":[{"id":1,"type":"multiple_choice","options":[{"value":0},{"value":1}],"selected":[]},{"id":2,"type":"text"}]}`)
	assert.Empty(t, interview)
}

func TestValidateRatingRangePerKind(t *testing.T) {
	report := `{"type":"小学生报告","basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
		"questions":[{"id":1,"type":"rating_scale","options":[{"value":0},{"value":1},{"value":2},{"value":3},{"value":4}],"selected":[2]}]}`
	assert.Equal(t, []string{"questions[0].options[0].value: value 0 outside allowed range 1-5"}, validate(t, report))

	native := `{"type":"小学生报告","basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
		"questions":[{"id":1,"type":"rating_scale","options":[{"value":1},{"value":2},{"value":3},{"value":4},{"value":5}],"selected":[3]}]}`
	assert.Empty(t, validate(t, native))
}

func TestValidateEmptyQuestions(t *testing.T) {
	details := validate(t, `{"type":"speech_habit","basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},"questions":[]}`)
	assert.Equal(t, []string{"questions: at least one question is required"}, details)
}

func TestValidateIsDeterministic(t *testing.T) {
	raw := `{"type":"frankfurt_scale_selective_mutism","basic_info":{"name":"","grade":"","submission_date":"bad"},
		"questions":[{"id":0,"type":"weird"},{"type":"binary","options":[{"value":5}],"selected":[6,6]}]}`
	first := validate(t, raw)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, validate(t, raw))
	}
}

func TestValidateBoundsOptionValues(t *testing.T) {
	huge := `{"type":"elementary_school_communication_assessment",
		"basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
		"questions":[
			{"id":1,"type":"multiple_choice","options":[{"value":9223372036854775807}],"selected":[9223372036854775807]},
			{"id":2,"type":"multiple_choice","options":[{"value":9223372036854775807}],"selected":[9223372036854775807]},
			{"id":3,"type":"rating_scale","options":[{"value":10},{"value":11}],"selected":[11]}
		]}`
	assert.Equal(t, []string{
		"questions[0].options[0].value: value 9223372036854775807 outside allowed range 0-4",
		"questions[1].options[0].value: value 9223372036854775807 outside allowed range 0-4",
		"questions[2].options[1].value: value 11 outside allowed range 0-10",
	}, validate(t, huge))

	// 未声明取值范围的问卷类型同样有上下限
	interview := `{"type":"parent_interview",
		"basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
		"questions":[{"id":1,"type":"multiple_choice","options":[{"value":-1000},{"value":1001}],"selected":[]}]}`
	assert.Equal(t, []string{
		"questions[0].options[1].value: value 1001 outside allowed range -1000-1000",
	}, validate(t, interview))
}

func TestValidateSubmissionIDLength(t *testing.T) {
	raw := func(id string) string {
		return `{"type":"speech_habit","submission_id":"` + id + `",
			"basic_info":{"name":"A","grade":"小学","submission_date":"2025-08-29"},
			"questions":[{"id":1,"type":"text","answer":"ok"}]}`
	}
	assert.Empty(t, validate(t, raw(strings.Repeat("a", 64))))
	assert.Empty(t, validate(t, raw(strings.Repeat("提", 64))))
	assert.Equal(t, []string{"submission_id: must be at most 64 characters"}, validate(t, raw(strings.Repeat("a", 65))))
}
