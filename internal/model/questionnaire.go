package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model Questionnaire
// Questionnaire 问卷存储记录，data 为规范化 JSON，其余列为从 data 投影出的摘要列
type Questionnaire struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string         `gorm:"size:100;index" json:"name"`
	Type         string         `gorm:"size:100;not null;index:idx_questionnaires_type_created,priority:1" json:"type"`
	Grade        string         `gorm:"size:50;index" json:"grade"`
	ParentPhone  string         `gorm:"size:50" json:"parent_phone"`
	ParentWechat string         `gorm:"size:100" json:"parent_wechat"`
	ParentEmail  string         `gorm:"size:254" json:"parent_email"`
	SubmissionID *string        `gorm:"size:64;uniqueIndex" json:"submission_id,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index;index:idx_questionnaires_type_created,priority:2" json:"created_at"`
	Data         datatypes.JSON `gorm:"type:text;not null" json:"data,omitempty"`
}

func (Questionnaire) TableName() string {
	return "questionnaires"
}

// ProjectQuestionnaire 把规范化提交投影为一条存储记录
func ProjectQuestionnaire(s *Submission, createdAt time.Time) (*Questionnaire, error) {
	data, err := s.ToJSON()
	if err != nil {
		return nil, err
	}

	rec := &Questionnaire{
		Name:         s.BasicInfo.Name,
		Type:         s.Kind,
		Grade:        s.BasicInfo.Grade,
		ParentPhone:  s.BasicInfo.ParentPhone,
		ParentWechat: s.BasicInfo.ParentWechat,
		ParentEmail:  s.BasicInfo.ParentEmail,
		CreatedAt:    createdAt,
		Data:         datatypes.JSON(data),
	}
	if s.SubmissionID != "" {
		id := s.SubmissionID
		rec.SubmissionID = &id
	}
	return rec, nil
}

// QuestionnaireSummary 列表用摘要
type QuestionnaireSummary struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Grade        string    `json:"grade"`
	ParentPhone  string    `json:"parent_phone"`
	ParentWechat string    `json:"parent_wechat"`
	ParentEmail  string    `json:"parent_email"`
	CreatedAt    time.Time `json:"created_at"`
}

func (q *Questionnaire) Summary() QuestionnaireSummary {
	return QuestionnaireSummary{
		ID:           q.ID,
		Name:         q.Name,
		Type:         q.Type,
		Grade:        q.Grade,
		ParentPhone:  q.ParentPhone,
		ParentWechat: q.ParentWechat,
		ParentEmail:  q.ParentEmail,
		CreatedAt:    q.CreatedAt,
	}
}

// FilterOptions 列表筛选项
type FilterOptions struct {
	Types     []string   `json:"types"`
	Grades    []string   `json:"grades"`
	DateRange DateBounds `json:"date_range"`
}

type DateBounds struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// KindCount 按问卷类型的计数
type KindCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

type AdminStatistics struct {
	Total      int64       `json:"total"`
	Today      int64       `json:"today"`
	ByType     []KindCount `json:"by_type"`
	ComputedAt string      `json:"computed_at"`
}
