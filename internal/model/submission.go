package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// QuestionType 题目类型
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionRatingScale    QuestionType = "rating_scale"
	QuestionText           QuestionType = "text"
	QuestionBinary         QuestionType = "binary"
)

// IsChoice 选择类题目（需要选项）
func (t QuestionType) IsChoice() bool {
	return t == QuestionMultipleChoice || t == QuestionRatingScale || t == QuestionBinary
}

// Known 是否为系统支持的题目类型
func (t QuestionType) Known() bool {
	return t.IsChoice() || t == QuestionText
}

type Option struct {
	Value int    `json:"value"`
	Text  string `json:"text"`
}

// ValueRange 评分题选项的取值范围（闭区间）
type ValueRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r ValueRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// OptionValueBound 未声明取值范围时选项取值的上下限
var OptionValueBound = ValueRange{Min: -1000, Max: 1000}

type Question struct {
	ID               int          `json:"id"`
	Type             QuestionType `json:"type"`
	Question         string       `json:"question"`
	Options          []Option     `json:"options"`
	Selected         []int        `json:"selected"`
	SelectedTexts    []string     `json:"selected_texts"`
	AllowMultiple    bool         `json:"allow_multiple"`
	IsMultipleChoice bool         `json:"is_multiple_choice"`
	Section          string       `json:"section,omitempty"`
	CanSpeak         *bool        `json:"can_speak,omitempty"`
	ValueRange       *ValueRange  `json:"value_range,omitempty"`
}

// Answered 文本题看 selected_texts，其余看 selected
func (q *Question) Answered() bool {
	if q.Type == QuestionText {
		for _, t := range q.SelectedTexts {
			if strings.TrimSpace(t) != "" {
				return true
			}
		}
		return false
	}
	return len(q.Selected) > 0
}

// HasOption 判断取值是否存在于选项中
func (q *Question) HasOption(value int) bool {
	for _, opt := range q.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// OptionText 返回取值对应的选项文本
func (q *Question) OptionText(value int) (string, bool) {
	for _, opt := range q.Options {
		if opt.Value == value {
			return opt.Text, true
		}
	}
	return "", false
}

// Speakable can_speak 缺省视为 true
func (q *Question) Speakable() bool {
	return q.CanSpeak == nil || *q.CanSpeak
}

type BasicInfo struct {
	Name           string `json:"name" validate:"required,max=100"`
	Grade          string `json:"grade" validate:"required,max=50"`
	SubmissionDate string `json:"submission_date" validate:"required,datetime=2006-01-02"`
	Guardian       string `json:"guardian,omitempty" validate:"omitempty,max=100"`
	ParentPhone    string `json:"parent_phone,omitempty" validate:"omitempty,phone"`
	ParentWechat   string `json:"parent_wechat,omitempty" validate:"omitempty,wechat"`
	ParentEmail    string `json:"parent_email,omitempty" validate:"omitempty,email,max=254"`
	Gender         string `json:"gender,omitempty" validate:"omitempty,max=20"`
	Birthdate      string `json:"birthdate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	School         string `json:"school,omitempty" validate:"omitempty,max=100"`
	Teacher        string `json:"teacher,omitempty" validate:"omitempty,max=50"`
}

// 统计字段名
const (
	StatDSTotal       = "ds_total"
	StatSSSchoolTotal = "ss_school_total"
	StatSSPublicTotal = "ss_public_total"
	StatSSHomeTotal   = "ss_home_total"
	StatSSTotal       = "ss_total"
	StatTotalScore    = "total_score"

	StatDSAverage       = "ds_average"
	StatSSSchoolAverage = "ss_school_average"
	StatSSPublicAverage = "ss_public_average"
	StatSSHomeAverage   = "ss_home_average"
	StatSSAverage       = "ss_average"

	StatSSSchoolRisk = "ss_school_risk"
	StatSSPublicRisk = "ss_public_risk"
	StatSSHomeRisk   = "ss_home_risk"
)

// MaxSubmissionIDLength submission_id 列宽
const MaxSubmissionIDLength = 64

// Statistics 由服务端计算的统计信息，客户端提交的值一律忽略
type Statistics struct {
	CompletionRate int    `json:"completion_rate"`
	SubmissionTime string `json:"submission_time"`
	TotalScore     *int   `json:"total_score,omitempty"`
	DSTotal        *int   `json:"ds_total,omitempty"`
	SSSchoolTotal  *int   `json:"ss_school_total,omitempty"`
	SSPublicTotal  *int   `json:"ss_public_total,omitempty"`
	SSHomeTotal    *int   `json:"ss_home_total,omitempty"`
	SSTotal        *int   `json:"ss_total,omitempty"`
	// 分部平均分保留两位小数，分部没有计分题时不输出
	DSAverage       *float64 `json:"ds_average,omitempty"`
	SSSchoolAverage *float64 `json:"ss_school_average,omitempty"`
	SSPublicAverage *float64 `json:"ss_public_average,omitempty"`
	SSHomeAverage   *float64 `json:"ss_home_average,omitempty"`
	SSAverage       *float64 `json:"ss_average,omitempty"`
	AgeGroup        string   `json:"age_group,omitempty"`
	RiskLevel       string   `json:"risk_level,omitempty"`
	SSSchoolRisk    string   `json:"ss_school_risk,omitempty"`
	SSPublicRisk    string   `json:"ss_public_risk,omitempty"`
	SSHomeRisk      string   `json:"ss_home_risk,omitempty"`
}

// SetTotal 按统计字段名写入分值，未知字段返回 false
func (s *Statistics) SetTotal(key string, v int) bool {
	switch key {
	case StatDSTotal:
		s.DSTotal = &v
	case StatSSSchoolTotal:
		s.SSSchoolTotal = &v
	case StatSSPublicTotal:
		s.SSPublicTotal = &v
	case StatSSHomeTotal:
		s.SSHomeTotal = &v
	case StatSSTotal:
		s.SSTotal = &v
	case StatTotalScore:
		s.TotalScore = &v
	default:
		return false
	}
	return true
}

// SetAverage 按统计字段名写入平均分，未知字段返回 false
func (s *Statistics) SetAverage(key string, v float64) bool {
	switch key {
	case StatDSAverage:
		s.DSAverage = &v
	case StatSSSchoolAverage:
		s.SSSchoolAverage = &v
	case StatSSPublicAverage:
		s.SSPublicAverage = &v
	case StatSSHomeAverage:
		s.SSHomeAverage = &v
	case StatSSAverage:
		s.SSAverage = &v
	default:
		return false
	}
	return true
}

// SetRisk 写入分部风险等级，未知字段返回 false
func (s *Statistics) SetRisk(key, level string) bool {
	switch key {
	case StatSSSchoolRisk:
		s.SSSchoolRisk = level
	case StatSSPublicRisk:
		s.SSPublicRisk = level
	case StatSSHomeRisk:
		s.SSHomeRisk = level
	default:
		return false
	}
	return true
}

// Submission 一份问卷提交的规范化表示
type Submission struct {
	Kind         string      `json:"type"`
	SubmissionID string      `json:"submission_id,omitempty"`
	BasicInfo    BasicInfo   `json:"basic_info"`
	Questions    []Question  `json:"questions"`
	Statistics   *Statistics `json:"statistics,omitempty"`
	CreatedAt    string      `json:"created_at,omitempty"`
}

// ParseSubmission 从已规范化的 JSON 还原提交
func ParseSubmission(data []byte) (*Submission, error) {
	var s Submission
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.fillEmpty()
	return &s, nil
}

// ToJSON 输出 UTF-8 JSON，不做 HTML/ASCII 转义
func (s *Submission) ToJSON() ([]byte, error) {
	s.fillEmpty()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// fillEmpty 保证切片输出为 [] 而不是 null
func (s *Submission) fillEmpty() {
	if s.Questions == nil {
		s.Questions = []Question{}
	}
	for i := range s.Questions {
		q := &s.Questions[i]
		if q.Options == nil {
			q.Options = []Option{}
		}
		if q.Selected == nil {
			q.Selected = []int{}
		}
		if q.SelectedTexts == nil {
			q.SelectedTexts = []string{}
		}
	}
}
