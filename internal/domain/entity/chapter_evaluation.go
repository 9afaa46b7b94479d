package entity

import (
	"fmt"
	"time"
)

// EvaluationDecision 评审结论
type EvaluationDecision string

const (
	DecisionAccept EvaluationDecision = "accept"
	DecisionRevise EvaluationDecision = "revise"
	DecisionReject EvaluationDecision = "reject"
)

// Valid 校验评审结论取值
func (d EvaluationDecision) Valid() bool {
	switch d {
	case DecisionAccept, DecisionRevise, DecisionReject:
		return true
	default:
		return false
	}
}

// ChapterEvaluation 章节评审
type ChapterEvaluation struct {
	ID        string             `json:"id" gorm:"type:uuid;primaryKey"`
	ChapterID string             `json:"chapter_id" gorm:"type:uuid;index;not null"`
	VersionID *string            `json:"version_id,omitempty" gorm:"type:uuid;index"`
	Decision  EvaluationDecision `json:"decision" gorm:"type:varchar(16);not null"`
	Feedback  string             `json:"feedback,omitempty" gorm:"type:text"`
	Score     float64            `json:"score"`
	Source    string             `json:"source,omitempty" gorm:"type:varchar(32)"` // manual/llm
	CreatedAt time.Time          `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ChapterEvaluation) TableName() string {
	return "chapter_evaluations"
}

// NewChapterEvaluation 创建评审记录
func NewChapterEvaluation(chapterID string, versionID *string, decision EvaluationDecision, feedback string, score float64) (*ChapterEvaluation, error) {
	if !decision.Valid() {
		return nil, fmt.Errorf("invalid evaluation decision %q", decision)
	}
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("evaluation score %.2f out of range [0,100]", score)
	}
	return &ChapterEvaluation{
		ChapterID: chapterID,
		VersionID: versionID,
		Decision:  decision,
		Feedback:  feedback,
		Score:     score,
		Source:    "manual",
		CreatedAt: time.Now(),
	}, nil
}
