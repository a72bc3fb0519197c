package service

import (
	"math"
	"strings"
	"time"

	"questionnaire_backend/internal/model"
)

// 年龄段
const (
	AgeGroupPreschool  = "3_5"
	AgeGroupElementary = "6_11"
	AgeGroupOlder      = "12_plus"
)

// Scorer 根据已校验的提交重新计算统计，不读取客户端 statistics
type Scorer struct {
	registry *SchemaRegistry
}

func NewScorer(registry *SchemaRegistry) *Scorer {
	return &Scorer{registry: registry}
}

// Score 结果只依赖 questions 与 basic_info.grade；submission_time 取 at
func (s *Scorer) Score(sub *model.Submission, at time.Time) *model.Statistics {
	stats := &model.Statistics{
		CompletionRate: completionRate(sub.Questions),
		SubmissionTime: at.UTC().Format(time.RFC3339),
	}

	desc, ok := s.registry.Lookup(sub.Kind)
	if !ok {
		return stats
	}

	switch desc.Scoring {
	case ScoreSections:
		scoreSections(desc, sub, stats)
	case ScoreTotal:
		total := 0
		for i := range sub.Questions {
			q := &sub.Questions[i]
			if !desc.Scores(q.Type) {
				continue
			}
			for _, v := range q.Selected {
				total += v
			}
		}
		stats.SetTotal(model.StatTotalScore, total)
	}

	if desc.AgeGroups {
		stats.AgeGroup = AgeGroup(sub.BasicInfo.Grade)
	}
	return stats
}

func scoreSections(desc *SchemaDescriptor, sub *model.Submission, stats *model.Statistics) {
	sums := make(map[string]int, len(desc.Sections))
	// 计分题数，未作答的题按 0 分计入
	counts := make(map[string]int, len(desc.Sections))
	for i := range sub.Questions {
		q := &sub.Questions[i]
		if !q.Speakable() {
			continue
		}
		counts[q.Section]++
		if len(q.Selected) > 0 {
			sums[q.Section] += q.Selected[0]
		}
	}

	combined, combinedCount, grand := 0, 0, 0
	for _, section := range desc.Sections {
		v, n := sums[section.Tag], counts[section.Tag]
		stats.SetTotal(section.TotalKey, v)
		if section.AverageKey != "" && n > 0 {
			stats.SetAverage(section.AverageKey, average(v, n))
		}
		if section.Risk != nil {
			stats.SetRisk(section.RiskKey, section.Risk.Level(v))
		}
		if section.Combined {
			combined += v
			combinedCount += n
		}
		grand += v
	}
	if desc.CombinedTotalKey != "" {
		stats.SetTotal(desc.CombinedTotalKey, combined)
	}
	if desc.CombinedAverageKey != "" && combinedCount > 0 {
		stats.SetAverage(desc.CombinedAverageKey, average(combined, combinedCount))
	}
	if desc.Risk != nil {
		stats.RiskLevel = desc.Risk.Level(grand)
	}
}

// average 保留两位小数
func average(sum, n int) float64 {
	return math.Round(float64(sum)/float64(n)*100) / 100
}

// completionRate 没有题目时视为 100
func completionRate(questions []model.Question) int {
	if len(questions) == 0 {
		return 100
	}
	answered := 0
	for i := range questions {
		if questions[i].Answered() {
			answered++
		}
	}
	rate := (answered*200 + len(questions)) / (2 * len(questions))
	// 只有全部作答才为 100
	if rate == 100 && answered < len(questions) {
		rate = 99
	}
	if rate == 0 && answered > 0 {
		rate = 1
	}
	return rate
}

// AgeGroup 按年级判断年龄段
func AgeGroup(grade string) string {
	switch {
	case strings.Contains(grade, "幼儿"):
		return AgeGroupPreschool
	case strings.Contains(grade, "小学"):
		return AgeGroupElementary
	default:
		return AgeGroupOlder
	}
}
