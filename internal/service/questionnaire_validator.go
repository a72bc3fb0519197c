package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/util"

	"github.com/go-playground/validator/v10"
)

var (
	phonePattern  = regexp.MustCompile(`^\+?[0-9][0-9\-\s()]{4,19}$`)
	wechatPattern = regexp.MustCompile(`^[A-Za-z0-9_\-+.@]{2,50}$`)
)

// Validator 按问卷类型的结构描述校验规范模型，收集全部错误后一次返回
type Validator struct {
	registry *SchemaRegistry
	validate *validator.Validate
}

func NewValidator(registry *SchemaRegistry) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("wechat", func(fl validator.FieldLevel) bool {
		return wechatPattern.MatchString(fl.Field().String())
	})
	return &Validator{registry: registry, validate: v}
}

// Validate 通过时返回 nil，否则返回 *util.ValidationError
func (v *Validator) Validate(sub *model.Submission) error {
	verr := util.NewValidationError("questionnaire validation failed")

	desc, ok := v.registry.Lookup(sub.Kind)
	if !ok {
		verr.Addf("type", "unknown kind %q", sub.Kind)
	}
	if utf8.RuneCountInString(sub.SubmissionID) > model.MaxSubmissionIDLength {
		verr.Addf("submission_id", "must be at most %d characters", model.MaxSubmissionIDLength)
	}

	v.checkBasicInfo(&sub.BasicInfo, verr)

	if len(sub.Questions) == 0 {
		verr.Add("questions", "at least one question is required")
	}

	seen := make(map[int]int, len(sub.Questions))
	for i := range sub.Questions {
		q := &sub.Questions[i]
		path := fmt.Sprintf("questions[%d]", i)

		checkQuestionStructure(desc, q, path, verr)
		checkQuestionValues(desc, q, path, verr)

		if q.ID <= 0 {
			verr.Addf(path+".id", "must be a positive integer, got %d", q.ID)
		} else if first, dup := seen[q.ID]; dup {
			verr.Addf(path+".id", "duplicate id %d (also used by questions[%d])", q.ID, first)
		} else {
			seen[q.ID] = i
		}
	}

	return verr.Err()
}

func (v *Validator) checkBasicInfo(info *model.BasicInfo, verr *util.ValidationError) {
	err := v.validate.Struct(info)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("basic_info", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.Add("basic_info."+fe.Field(), basicInfoMessage(fe))
	}
}

func basicInfoMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "email":
		return "is not a valid email address"
	case "phone":
		return "is not a valid phone number"
	case "wechat":
		return "is not a valid WeChat id"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func checkQuestionStructure(desc *SchemaDescriptor, q *model.Question, path string, verr *util.ValidationError) {
	switch {
	case q.Type == "":
		verr.Add(path+".type", "is required")
	case !q.Type.Known():
		verr.Addf(path+".type", "unsupported question type %q", q.Type)
	case desc != nil && !desc.Allows(q.Type):
		verr.Addf(path+".type", "question type %q not allowed for %s", q.Type, desc.Kind)
	}

	if q.Type.IsChoice() {
		if len(q.Options) == 0 {
			verr.Addf(path+".options", "must not be empty for %s questions", q.Type)
		}
		if q.Type == model.QuestionBinary && len(q.Options) != 2 && len(q.Options) != 0 {
			verr.Addf(path+".options", "binary questions need exactly 2 options, got %d", len(q.Options))
		}
		checkOptionValues(desc, q, path, verr)
	}

	if desc == nil || len(desc.Sections) == 0 {
		return
	}
	if q.Section == "" {
		if desc.SectionRequired {
			verr.Add(path+".section", "is required")
		}
		return
	}
	if _, ok := desc.Section(q.Section); !ok {
		verr.Addf(path+".section", "unknown section %q", q.Section)
	}
}

func checkOptionValues(desc *SchemaDescriptor, q *model.Question, path string, verr *util.ValidationError) {
	declared := model.OptionValueBound
	if desc != nil {
		if r, ok := desc.RangeFor(q.Type); ok {
			declared = r
		}
	}

	seen := make(map[int]bool, len(q.Options))
	values := make([]int, 0, len(q.Options))
	for j, opt := range q.Options {
		optPath := fmt.Sprintf("%s.options[%d].value", path, j)
		if seen[opt.Value] {
			verr.Addf(optPath, "duplicate value %d", opt.Value)
			continue
		}
		seen[opt.Value] = true
		values = append(values, opt.Value)
		if !declared.Contains(opt.Value) {
			verr.Addf(optPath, "value %d outside allowed range %d-%d", opt.Value, declared.Min, declared.Max)
		}
	}

	if q.Type == model.QuestionRatingScale && len(values) > 1 {
		sort.Ints(values)
		for k := 1; k < len(values); k++ {
			if values[k] != values[k-1]+1 {
				verr.Add(path+".options", "rating values must form a contiguous range")
				break
			}
		}
	}
}

func answerOptional(desc *SchemaDescriptor, q *model.Question) bool {
	if desc == nil {
		return false
	}
	if desc.OptionalAnswers {
		return true
	}
	if s, ok := desc.Section(q.Section); ok {
		return s.Optional
	}
	return false
}

func checkQuestionValues(desc *SchemaDescriptor, q *model.Question, path string, verr *util.ValidationError) {
	selPath := path + ".selected"

	if q.Type == model.QuestionText {
		if len(q.Selected) > 0 {
			verr.Add(selPath, "text questions do not take option values")
		}
		if len(q.SelectedTexts) > 1 {
			verr.Addf(path+".selected_texts", "text questions accept at most one answer, got %d", len(q.SelectedTexts))
		}
		return
	}
	if !q.Type.IsChoice() {
		return
	}

	dup := make(map[int]bool, len(q.Selected))
	for _, v := range q.Selected {
		if !q.HasOption(v) {
			verr.Addf(selPath, "value %d not in option set", v)
		}
		if dup[v] {
			verr.Addf(selPath, "duplicate value %d", v)
		}
		dup[v] = true
	}

	n := len(q.Selected)
	if n == 0 {
		if !answerOptional(desc, q) {
			verr.Add(selPath, "an answer is required")
		}
		return
	}

	if q.Type == model.QuestionMultipleChoice && q.AllowMultiple {
		if len(q.Options) > 0 && n > len(q.Options) {
			verr.Addf(selPath, "at most %d values allowed, got %d", len(q.Options), n)
		}
		return
	}
	if n > 1 {
		verr.Addf(selPath, "exactly one value required, got %d", n)
	}
}
