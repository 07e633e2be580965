package model

import (
	"time"
)

// QuizResult 存储用户的测验结果
type QuizResult struct {
	UUIDBase
	UserID         uint            `gorm:"uniqueIndex:idx_result_user_quiz" json:"userId"`
	QuizID         string          `gorm:"uniqueIndex:idx_result_user_quiz;type:varchar(36)" json:"quizId"`
	Answers        []AttemptAnswer `gorm:"serializer:json;type:json" json:"answers"`
	Score          int             `gorm:"default:0" json:"score"`
	TotalQuestions int             `gorm:"default:0" json:"totalQuestions"`
	TimeTaken      int             `gorm:"default:0" json:"timeTaken"` // Seconds
	Status         string          `gorm:"size:20;default:'pending'" json:"status"`
	SubmittedAt    time.Time       `json:"submittedAt"`
}

func (QuizResult) TableName() string {
	return "quiz_results"
}

// Summary 待批改的成绩不返回分数
func (r *QuizResult) Summary() SubmissionResult {
	s := SubmissionResult{ID: r.ID, Status: r.Status}
	if r.Status == ResultGraded {
		score, total := r.Score, r.TotalQuestions
		s.Score = &score
		s.TotalQuestions = &total
	}
	return s
}
