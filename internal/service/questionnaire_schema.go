package service

import (
	"fmt"
	"sort"

	"questionnaire_backend/internal/model"
)

// 已登记的问卷类型
const (
	KindFrankfurtScale       = "frankfurt_scale_selective_mutism"
	KindElementaryAssessment = "elementary_school_communication_assessment"
	KindParentInterview      = "parent_interview"
	KindSpeechHabit          = "speech_habit"
	KindElementaryReport     = "小学生报告"
)

// ScoringRule 决定评分器为该问卷类型计算哪些统计
type ScoringRule string

const (
	ScoreCompletionOnly ScoringRule = "completion_only"
	ScoreSections       ScoringRule = "sections"
	ScoreTotal          ScoringRule = "total"
)

// SectionRule 分部量表中的一个分部
type SectionRule struct {
	Tag string `json:"tag"`
	// 未作答是否允许
	Optional bool `json:"optional"`
	// 分部合计写入的统计字段
	TotalKey string `json:"total_key"`
	// 是否计入 CombinedTotalKey
	Combined bool `json:"combined"`
	// 分部平均分写入的统计字段，为空则不计算
	AverageKey string `json:"average_key,omitempty"`
	// 分部单独的风险阈值，结果写入 RiskKey
	Risk    *RiskRule `json:"risk,omitempty"`
	RiskKey string    `json:"risk_key,omitempty"`
}

// RiskRule 按总分划分风险等级，总分 >= High 为 high，>= Mid 为 mid
type RiskRule struct {
	Mid  int `json:"mid"`
	High int `json:"high"`
}

func (r RiskRule) Level(total int) string {
	switch {
	case total >= r.High:
		return "high"
	case total >= r.Mid:
		return "mid"
	default:
		return "low"
	}
}

// SchemaDescriptor 一种问卷的结构约束与评分方式
type SchemaDescriptor struct {
	Kind         string               `json:"kind"`
	Title        string               `json:"title"`
	AllowedTypes []model.QuestionType `json:"allowed_types"`
	// 各题型声明的原生取值范围；未声明则按 model.OptionValueBound
	ValueRanges map[model.QuestionType]model.ValueRange `json:"value_ranges,omitempty"`
	Sections    []SectionRule                           `json:"sections,omitempty"`
	// 每道题必须带 section
	SectionRequired bool `json:"section_required"`
	// 允许题目不作答
	OptionalAnswers bool        `json:"optional_answers"`
	Scoring         ScoringRule `json:"scoring"`
	// ScoreTotal 时参与 total_score 的题型
	ScoredTypes      []model.QuestionType `json:"scored_types,omitempty"`
	CombinedTotalKey   string               `json:"combined_total_key,omitempty"`
	CombinedAverageKey string               `json:"combined_average_key,omitempty"`
	AgeGroups          bool                 `json:"age_groups"`
	Risk             *RiskRule            `json:"risk,omitempty"`
}

func (d *SchemaDescriptor) Allows(t model.QuestionType) bool {
	for _, allowed := range d.AllowedTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

func (d *SchemaDescriptor) Section(tag string) (SectionRule, bool) {
	for _, s := range d.Sections {
		if s.Tag == tag {
			return s, true
		}
	}
	return SectionRule{}, false
}

func (d *SchemaDescriptor) RangeFor(t model.QuestionType) (model.ValueRange, bool) {
	r, ok := d.ValueRanges[t]
	return r, ok
}

func (d *SchemaDescriptor) Scores(t model.QuestionType) bool {
	for _, s := range d.ScoredTypes {
		if s == t {
			return true
		}
	}
	return false
}

// SchemaRegistry 问卷类型到结构描述的映射，构造后只读
type SchemaRegistry struct {
	descriptors map[string]*SchemaDescriptor
}

func NewSchemaRegistry(descriptors ...SchemaDescriptor) (*SchemaRegistry, error) {
	r := &SchemaRegistry{descriptors: make(map[string]*SchemaDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *SchemaRegistry) Register(d SchemaDescriptor) error {
	if d.Kind == "" {
		return fmt.Errorf("schema descriptor without kind")
	}
	if _, exists := r.descriptors[d.Kind]; exists {
		return fmt.Errorf("schema %q already registered", d.Kind)
	}
	if d.Scoring == "" {
		d.Scoring = ScoreCompletionOnly
	}
	r.descriptors[d.Kind] = &d
	return nil
}

func (r *SchemaRegistry) Lookup(kind string) (*SchemaDescriptor, bool) {
	d, ok := r.descriptors[kind]
	return d, ok
}

// Descriptors 按 kind 排序
func (r *SchemaRegistry) Descriptors() []SchemaDescriptor {
	out := make([]SchemaDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

var allQuestionTypes = []model.QuestionType{
	model.QuestionMultipleChoice,
	model.QuestionRatingScale,
	model.QuestionText,
	model.QuestionBinary,
}

// DefaultSchemas 当前线上使用的五种问卷
func DefaultSchemas() []SchemaDescriptor {
	frankfurtRange := model.ValueRange{Min: 0, Max: 4}
	return []SchemaDescriptor{
		{
			Kind:         KindFrankfurtScale,
			Title:        "法兰克福选择性缄默量表",
			AllowedTypes: []model.QuestionType{model.QuestionMultipleChoice, model.QuestionRatingScale},
			ValueRanges: map[model.QuestionType]model.ValueRange{
				model.QuestionMultipleChoice: frankfurtRange,
				model.QuestionRatingScale:    frankfurtRange,
			},
			Sections: []SectionRule{
				{Tag: "DS", TotalKey: model.StatDSTotal, AverageKey: model.StatDSAverage},
				{
					Tag: "SS_school", Optional: true, TotalKey: model.StatSSSchoolTotal, Combined: true,
					AverageKey: model.StatSSSchoolAverage,
					Risk:       &RiskRule{Mid: 10, High: 20}, RiskKey: model.StatSSSchoolRisk,
				},
				{
					Tag: "SS_public", Optional: true, TotalKey: model.StatSSPublicTotal, Combined: true,
					AverageKey: model.StatSSPublicAverage,
					Risk:       &RiskRule{Mid: 8, High: 16}, RiskKey: model.StatSSPublicRisk,
				},
				{
					Tag: "SS_home", Optional: true, TotalKey: model.StatSSHomeTotal, Combined: true,
					AverageKey: model.StatSSHomeAverage,
					Risk:       &RiskRule{Mid: 8, High: 16}, RiskKey: model.StatSSHomeRisk,
				},
			},
			SectionRequired:    true,
			Scoring:            ScoreSections,
			CombinedTotalKey:   model.StatSSTotal,
			CombinedAverageKey: model.StatSSAverage,
			AgeGroups:          true,
			Risk:               &RiskRule{Mid: 15, High: 30},
		},
		{
			Kind:         KindElementaryAssessment,
			Title:        "小学生交流评定表",
			AllowedTypes: allQuestionTypes,
			ValueRanges: map[model.QuestionType]model.ValueRange{
				model.QuestionMultipleChoice: {Min: 0, Max: 4},
				model.QuestionRatingScale:    {Min: 0, Max: 10},
				model.QuestionBinary:         {Min: 0, Max: 1},
			},
			Scoring: ScoreTotal,
			ScoredTypes: []model.QuestionType{
				model.QuestionMultipleChoice,
				model.QuestionRatingScale,
				model.QuestionBinary,
			},
		},
		{
			Kind:         KindElementaryReport,
			Title:        "小学生报告",
			AllowedTypes: []model.QuestionType{model.QuestionRatingScale, model.QuestionMultipleChoice, model.QuestionText},
			ValueRanges: map[model.QuestionType]model.ValueRange{
				model.QuestionRatingScale: {Min: 1, Max: 5},
			},
			Scoring:     ScoreTotal,
			ScoredTypes: []model.QuestionType{model.QuestionRatingScale},
		},
		{
			Kind:            KindParentInterview,
			Title:           "家长访谈表",
			AllowedTypes:    allQuestionTypes,
			OptionalAnswers: true,
			Scoring:         ScoreCompletionOnly,
		},
		{
			Kind:            KindSpeechHabit,
			Title:           "说话习惯记录表",
			AllowedTypes:    allQuestionTypes,
			OptionalAnswers: true,
			Scoring:         ScoreCompletionOnly,
		},
	}
}

// DefaultSchemaRegistry 注册 DefaultSchemas
func DefaultSchemaRegistry() *SchemaRegistry {
	r, err := NewSchemaRegistry(DefaultSchemas()...)
	if err != nil {
		panic(err)
	}
	return r
}
