package service

import (
	"context"
	"errors"
	"osian_backend/internal/model"
	"osian_backend/internal/util"
	"osian_backend/pkg/logger"
	"osian_backend/pkg/monitoring"
	"osian_backend/pkg/tracing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ResultStore interface {
	Create(result *model.QuizResult) error
	FindByUserAndQuiz(userID uint, quizID string) (*model.QuizResult, error)
	ListByUser(userID uint) ([]model.QuizResult, error)
}

type ResultService struct {
	Results ResultStore
	Quizzes *QuizService
}

func NewResultService(results ResultStore, quizzes *QuizService) *ResultService {
	return &ResultService{Results: results, Quizzes: quizzes}
}

// Submit 评分并保存一次作答，同一用户同一测验只能提交一次
func (s *ResultService) Submit(ctx context.Context, userID uint, payload model.AttemptPayload) (*model.QuizResult, error) {
	_, span := tracing.Tracer.Start(ctx, "ResultService.Submit")
	defer span.End()

	quiz, err := s.Quizzes.GetQuiz(payload.QuizID)
	if err != nil {
		return nil, err
	}

	existing, err := s.Results.FindByUserAndQuiz(userID, quiz.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, util.ErrAlreadyAttempted
	}

	result := Grade(quiz, payload)
	result.UserID = userID
	result.SubmittedAt = time.Now()

	if err := s.Results.Create(result); err != nil {
		// 并发提交时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrAlreadyAttempted
		}
		return nil, err
	}

	monitoring.QuizSubmissions.WithLabelValues(result.Status).Inc()
	logger.Log.Info("quiz submitted",
		zap.Uint("userId", userID),
		zap.String("quizId", quiz.ID),
		zap.String("status", result.Status),
		zap.Int("score", result.Score),
		zap.Int("timeTaken", result.TimeTaken),
	)
	return result, nil
}

func (s *ResultService) ListForUser(userID uint) ([]model.QuizResult, error) {
	return s.Results.ListByUser(userID)
}

// Grade 客观题按标准答案计分；含主观题时整份成绩为 pending，等待人工批改
func Grade(quiz *model.Quiz, payload model.AttemptPayload) *model.QuizResult {
	byIndex := make(map[int]model.AttemptAnswer, len(payload.Answers))
	for _, a := range payload.Answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(quiz.Questions) {
			continue
		}
		byIndex[a.QuestionIndex] = a
	}

	answers := make([]model.AttemptAnswer, len(quiz.Questions))
	score := 0
	for i, q := range quiz.Questions {
		a, ok := byIndex[i]
		if !ok {
			a = model.AttemptAnswer{QuestionIndex: i}
		}
		answers[i] = a

		if q.QuestionType == model.QuestionMCQ && a.SelectedAnswer != nil && q.CorrectAnswer != nil &&
			*a.SelectedAnswer == *q.CorrectAnswer {
			score++
		}
	}

	timeTaken := payload.TimeTaken
	if timeTaken < 0 {
		timeTaken = 0
	}
	if limit := quiz.Duration * 60; timeTaken > limit {
		timeTaken = limit
	}

	status := model.ResultGraded
	if quiz.HasWritten() {
		status = model.ResultPending
	}

	return &model.QuizResult{
		QuizID:         quiz.ID,
		Answers:        answers,
		Score:          score,
		TotalQuestions: len(quiz.Questions),
		TimeTaken:      timeTaken,
		Status:         status,
	}
}
