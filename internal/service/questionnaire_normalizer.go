package service

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/util"

	"github.com/spf13/cast"
)

// 旧版前端使用的题型别名
var questionTypeAliases = map[string]model.QuestionType{
	"text_input":    model.QuestionText,
	"single_choice": model.QuestionMultipleChoice,
}

var genderAliases = map[string]string{
	"male": "男", "m": "男", "boy": "男", "1": "男",
	"female": "女", "f": "女", "girl": "女", "0": "女",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// 由 min/max_rating 生成的选项个数上限
const maxSynthesizedOptions = 101

// Normalizer 把前端提交的松散载荷整理成规范模型。
// 要么返回完整的 Submission，要么返回一个结构错误，不会部分修改。
type Normalizer struct {
	now util.Clock
}

func NewNormalizer(clock util.Clock) *Normalizer {
	if clock == nil {
		clock = util.SystemClock
	}
	return &Normalizer{now: clock}
}

func (n *Normalizer) Normalize(payload map[string]interface{}) (*model.Submission, error) {
	if payload == nil {
		return nil, util.MalformedStructure("", "payload must be a JSON object")
	}

	kind, err := optionalString(payload, "type", "type")
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return nil, util.MissingField("type")
	}

	submissionID, err := optionalString(payload, "submission_id", "submission_id")
	if err != nil {
		return nil, err
	}

	basic, err := n.basicInfo(payload)
	if err != nil {
		return nil, err
	}

	questions, err := normalizeQuestions(payload["questions"])
	if err != nil {
		return nil, err
	}

	// statistics 与 created_at 由服务端生成，客户端值直接丢弃
	return &model.Submission{
		Kind:         kind,
		SubmissionID: submissionID,
		BasicInfo:    basic,
		Questions:    questions,
	}, nil
}

func (n *Normalizer) basicInfo(payload map[string]interface{}) (model.BasicInfo, error) {
	src := payload
	if raw, ok := payload["basic_info"]; ok && raw != nil {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return model.BasicInfo{}, util.MalformedStructure("basic_info", "must be an object")
		}
		if len(m) > 0 {
			src = m
		}
	}
	prefix := "basic_info."

	var info model.BasicInfo
	fields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"name"}, &info.Name},
		{[]string{"grade"}, &info.Grade},
		{[]string{"submission_date"}, &info.SubmissionDate},
		{[]string{"guardian"}, &info.Guardian},
		{[]string{"parent_phone"}, &info.ParentPhone},
		{[]string{"parent_wechat"}, &info.ParentWechat},
		{[]string{"parent_email"}, &info.ParentEmail},
		{[]string{"gender"}, &info.Gender},
		{[]string{"birthdate", "birth_date"}, &info.Birthdate},
		{[]string{"school"}, &info.School},
		{[]string{"teacher"}, &info.Teacher},
	}
	for _, f := range fields {
		for _, key := range f.keys {
			v, err := optionalString(src, key, prefix+f.keys[0])
			if err != nil {
				return model.BasicInfo{}, err
			}
			if v != "" {
				*f.dst = v
				break
			}
		}
	}

	info.Name = whitespaceRun.ReplaceAllString(info.Name, " ")
	if g, ok := genderAliases[strings.ToLower(info.Gender)]; ok {
		info.Gender = g
	}
	if info.SubmissionDate == "" {
		info.SubmissionDate = n.now().Format(util.DateFormat)
	}
	return info, nil
}

func normalizeQuestions(raw interface{}) ([]model.Question, error) {
	if raw == nil {
		return []model.Question{}, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, util.MalformedStructure("questions", "must be an array")
	}

	out := make([]model.Question, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("questions[%d]", i)
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, util.MalformedStructure(path, "must be an object")
		}
		q, err := normalizeQuestion(m, i, path)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func normalizeQuestion(m map[string]interface{}, index int, path string) (model.Question, error) {
	var q model.Question

	rawType, err := optionalString(m, "type", path+".type")
	if err != nil {
		return q, err
	}
	forceSingle := rawType == "single_choice"
	if alias, ok := questionTypeAliases[rawType]; ok {
		q.Type = alias
	} else {
		q.Type = model.QuestionType(rawType)
	}

	q.ID = index + 1
	if v, ok := m["id"]; ok && v != nil {
		id, err := toInt(v)
		if err != nil {
			return q, util.MalformedStructure(path+".id", "must be an integer")
		}
		q.ID = id
	}

	if q.Question, err = optionalString(m, "question", path+".question"); err != nil {
		return q, err
	}
	if q.Section, err = optionalString(m, "section", path+".section"); err != nil {
		return q, err
	}
	if v, ok := m["can_speak"]; ok && v != nil {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return q, util.MalformedStructure(path+".can_speak", "must be a boolean")
		}
		q.CanSpeak = &b
	}

	if q.Type == model.QuestionText {
		texts, err := textAnswers(m, path)
		if err != nil {
			return q, err
		}
		q.Options = []model.Option{}
		q.Selected = []int{}
		q.SelectedTexts = texts
		return q, nil
	}

	if q.Options, err = normalizeOptions(m["options"], path+".options"); err != nil {
		return q, err
	}
	if q.Selected, err = intList(m["selected"], path+".selected"); err != nil {
		return q, err
	}

	if q.Type == model.QuestionRatingScale {
		if err := reshapeRating(&q, m, path); err != nil {
			return q, err
		}
	}

	if q.Type == model.QuestionMultipleChoice {
		allow, present, err := optionalBool(m, path, "allow_multiple", "is_multiple_choice")
		if err != nil {
			return q, err
		}
		switch {
		case forceSingle:
			q.AllowMultiple = false
		case present:
			q.AllowMultiple = allow
		default:
			q.AllowMultiple = len(q.Selected) > 1
		}
	}
	q.IsMultipleChoice = q.AllowMultiple

	// 找不到选项的取值只从 selected_texts 中丢弃，selected 保留给校验器报错
	q.SelectedTexts = make([]string, 0, len(q.Selected))
	for _, v := range q.Selected {
		if text, ok := q.OptionText(v); ok {
			q.SelectedTexts = append(q.SelectedTexts, text)
		}
	}
	return q, nil
}

// reshapeRating 补齐评分题：rating 兜底 selected，min/max_rating 生成选项，记录原生取值范围。
// 选项取值保持原样（1..5 不会被改成 0..4）。
func reshapeRating(q *model.Question, m map[string]interface{}, path string) error {
	if len(q.Selected) == 0 {
		if v, ok := m["rating"]; ok && v != nil {
			r, err := toInt(v)
			if err != nil {
				return util.MalformedStructure(path+".rating", "must be an integer")
			}
			q.Selected = []int{r}
		}
	}

	if len(q.Options) == 0 {
		minV, hasMin := m["min_rating"]
		maxV, hasMax := m["max_rating"]
		if hasMin && hasMax && minV != nil && maxV != nil {
			lo, err := toInt(minV)
			if err != nil {
				return util.MalformedStructure(path+".min_rating", "must be an integer")
			}
			hi, err := toInt(maxV)
			if err != nil {
				return util.MalformedStructure(path+".max_rating", "must be an integer")
			}
			bound := model.OptionValueBound
			if !bound.Contains(lo) {
				return util.MalformedStructure(path+".min_rating", fmt.Sprintf("must be within %d-%d", bound.Min, bound.Max))
			}
			if !bound.Contains(hi) {
				return util.MalformedStructure(path+".max_rating", fmt.Sprintf("must be within %d-%d", bound.Min, bound.Max))
			}
			if hi < lo || hi > lo+maxSynthesizedOptions-1 {
				return util.MalformedStructure(path+".max_rating", "rating bounds out of order or too wide")
			}
			for v := lo; v <= hi; v++ {
				q.Options = append(q.Options, model.Option{Value: v, Text: fmt.Sprint(v)})
			}
		}
	}

	if len(q.Options) > 0 {
		r := model.ValueRange{Min: q.Options[0].Value, Max: q.Options[0].Value}
		for _, opt := range q.Options[1:] {
			if opt.Value < r.Min {
				r.Min = opt.Value
			}
			if opt.Value > r.Max {
				r.Max = opt.Value
			}
		}
		q.ValueRange = &r
	}
	return nil
}

func normalizeOptions(raw interface{}, path string) ([]model.Option, error) {
	if raw == nil {
		return []model.Option{}, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, util.MalformedStructure(path, "must be an array")
	}
	out := make([]model.Option, 0, len(items))
	for j, item := range items {
		optPath := fmt.Sprintf("%s[%d]", path, j)
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, util.MalformedStructure(optPath, "must be an object")
		}
		rawValue, ok := m["value"]
		if !ok || rawValue == nil {
			return nil, util.MissingField(optPath + ".value")
		}
		v, err := toInt(rawValue)
		if err != nil {
			return nil, util.MalformedStructure(optPath+".value", "must be an integer")
		}
		text, err := optionalString(m, "text", optPath+".text")
		if err != nil {
			return nil, err
		}
		out = append(out, model.Option{Value: v, Text: text})
	}
	return out, nil
}

// intList 标量视为单元素列表
func intList(raw interface{}, path string) ([]int, error) {
	if raw == nil {
		return []int{}, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		items = []interface{}{raw}
	}
	out := make([]int, 0, len(items))
	for j, item := range items {
		v, err := toInt(item)
		if err != nil {
			return nil, util.MalformedStructure(fmt.Sprintf("%s[%d]", path, j), "must be an integer")
		}
		out = append(out, v)
	}
	return out, nil
}

// textAnswers 文本题答案依次取 selected_texts、answer、selected
func textAnswers(m map[string]interface{}, path string) ([]string, error) {
	for _, key := range []string{"selected_texts", "answer", "selected"} {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		items, ok := raw.([]interface{})
		if !ok {
			items = []interface{}{raw}
		}
		out := make([]string, 0, len(items))
		for j, item := range items {
			s, err := cast.ToStringE(item)
			if err != nil {
				return nil, util.MalformedStructure(fmt.Sprintf("%s.%s[%d]", path, key, j), "must be a string")
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	return []string{}, nil
}

func optionalString(m map[string]interface{}, key, path string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return "", util.MalformedStructure(path, "must be a string")
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", util.MalformedStructure(path, "must be a string")
	}
	return strings.TrimSpace(s), nil
}

// optionalBool 依次读取 keys，返回第一个存在的值
func optionalBool(m map[string]interface{}, path string, keys ...string) (bool, bool, error) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return false, false, util.MalformedStructure(path+"."+key, "must be a boolean")
		}
		return b, true, nil
	}
	return false, false, nil
}

// toInt 只接受整数值（含 "3"、3.0 这类无小数部分的写法）
func toInt(v interface{}) (int, error) {
	switch x := v.(type) {
	case bool:
		return 0, fmt.Errorf("boolean is not an integer")
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, err
		}
		return floatToInt(f)
	case float64:
		return floatToInt(x)
	case float32:
		return floatToInt(float64(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, fmt.Errorf("empty string is not an integer")
		}
		return toInt(json.Number(s))
	}
	return cast.ToIntE(v)
}

// floatToInt 超出 int 范围的值报错，不截断
func floatToInt(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < math.MinInt || f >= math.MaxInt {
		return 0, fmt.Errorf("%v is out of integer range", f)
	}
	return int(f), nil
}
