package util

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrQuestionnaireNotFound = errors.New("questionnaire not found")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrStorageNotConfigured  = errors.New("backup storage not configured")
)

// MissingFieldError 载荷缺少无法补全的字段
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: field is required", e.Field)
}

func MissingField(field string) error {
	return &MissingFieldError{Field: field}
}

// MalformedStructureError 载荷结构无法规范化
type MalformedStructureError struct {
	Path   string
	Reason string
}

func (e *MalformedStructureError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func MalformedStructure(path, reason string) error {
	return &MalformedStructureError{Path: path, Reason: reason}
}

// IsStructural 判断是否为规范化阶段的结构错误
func IsStructural(err error) bool {
	var mf *MissingFieldError
	var ms *MalformedStructureError
	return errors.As(err, &mf) || errors.As(err, &ms)
}

// FieldIssue 单条校验失败
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i FieldIssue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// ValidationError 收集一次校验中的全部失败项，顺序即检查顺序
type ValidationError struct {
	Message string
	Issues  []FieldIssue
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Add(field, message string) {
	e.Issues = append(e.Issues, FieldIssue{Field: field, Message: message})
}

func (e *ValidationError) Addf(field, format string, args ...interface{}) {
	e.Add(field, fmt.Sprintf(format, args...))
}

// Err 没有失败项时返回 nil
func (e *ValidationError) Err() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// Details 形如 "questions[3].selected: value 2 not in option set"
func (e *ValidationError) Details() []string {
	out := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		out = append(out, issue.String())
	}
	return out
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	return msg + ": " + strings.Join(e.Details(), "; ")
}
