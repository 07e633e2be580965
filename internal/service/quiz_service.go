package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"osian_backend/internal/config"
	"osian_backend/internal/model"
	"osian_backend/internal/repository"
	"osian_backend/internal/util"
	"osian_backend/pkg/logger"
	"osian_backend/pkg/monitoring"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuizStore interface {
	Create(quiz *model.Quiz) error
	FindByID(id string) (*model.Quiz, error)
	List(page, limit int) ([]repository.QuizListRow, int64, error)
}

type QuizService struct {
	Store    QuizStore
	Redis    *redis.Client
	CacheTTL time.Duration
}

func NewQuizService(store QuizStore, rdb *redis.Client, cfg *config.Config) *QuizService {
	return &QuizService{
		Store:    store,
		Redis:    rdb,
		CacheTTL: time.Duration(cfg.Redis.CacheTTLMinutes) * time.Minute,
	}
}

func quizCacheKey(id string) string {
	return "quiz:definition:" + id
}

type QuizQuestionReq struct {
	QuestionType  string             `json:"questionType" binding:"required,oneof=mcq written"`
	QuestionText  string             `json:"questionText" binding:"required"`
	Options       []model.QuizOption `json:"options"`
	CorrectAnswer *int               `json:"correctAnswer"`
}

type CreateQuizReq struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Duration    int               `json:"duration" binding:"required,min=1"`
	IsPublished *bool             `json:"isPublished"`
	Questions   []QuizQuestionReq `json:"questions" binding:"required,min=1,dive"`
}

func validateQuizReq(req CreateQuizReq) error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("%w: title is required", util.ErrInvalidQuiz)
	}
	if req.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", util.ErrInvalidQuiz)
	}
	if len(req.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", util.ErrInvalidQuiz)
	}
	for i, q := range req.Questions {
		switch q.QuestionType {
		case model.QuestionMCQ:
			if len(q.Options) < 2 {
				return fmt.Errorf("%w: question %d needs at least two options", util.ErrInvalidQuiz, i+1)
			}
			if q.CorrectAnswer != nil && (*q.CorrectAnswer < 0 || *q.CorrectAnswer >= len(q.Options)) {
				return fmt.Errorf("%w: question %d has an out of range correct answer", util.ErrInvalidQuiz, i+1)
			}
		case model.QuestionWritten:
			if len(q.Options) > 0 {
				return fmt.Errorf("%w: written question %d cannot have options", util.ErrInvalidQuiz, i+1)
			}
		default:
			return fmt.Errorf("%w: question %d has unknown type %q", util.ErrInvalidQuiz, i+1, q.QuestionType)
		}
	}
	return nil
}

func (s *QuizService) CreateQuiz(creatorID uint, req CreateQuizReq) (*model.Quiz, error) {
	if err := validateQuizReq(req); err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Duration:    req.Duration,
		IsPublished: true,
		CreatorID:   creatorID,
	}
	if req.IsPublished != nil {
		quiz.IsPublished = *req.IsPublished
	}
	for i, q := range req.Questions {
		question := model.QuizQuestion{
			QuestionType:  q.QuestionType,
			QuestionText:  q.QuestionText,
			CorrectAnswer: q.CorrectAnswer,
			Position:      i,
		}
		if q.QuestionType == model.QuestionMCQ {
			question.Options = q.Options
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	if err := s.Store.Create(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// GetQuiz 返回包含标准答案的完整测验，只给评分使用
func (s *QuizService) GetQuiz(id string) (*model.Quiz, error) {
	quiz, err := s.Store.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, util.ErrQuizNotFound
	}
	return quiz, nil
}

// GetDefinition 返回下发给答题端的测验，优先读 Redis 缓存
func (s *QuizService) GetDefinition(ctx context.Context, id string) (*model.QuizDefinition, error) {
	if def := s.cachedDefinition(ctx, id); def != nil {
		return def, nil
	}

	quiz, err := s.GetQuiz(id)
	if err != nil {
		return nil, err
	}

	def := quiz.Definition()
	s.cacheDefinition(ctx, def)
	return def, nil
}

func (s *QuizService) cachedDefinition(ctx context.Context, id string) *model.QuizDefinition {
	if s.Redis == nil {
		return nil
	}
	data, err := s.Redis.Get(ctx, quizCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("quiz cache read failed", zap.String("quizId", id), zap.Error(err))
		}
		monitoring.QuizCacheLookups.WithLabelValues("miss").Inc()
		return nil
	}

	var def model.QuizDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		logger.Log.Warn("quiz cache entry corrupted", zap.String("quizId", id), zap.Error(err))
		monitoring.QuizCacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	monitoring.QuizCacheLookups.WithLabelValues("hit").Inc()
	return &def
}

func (s *QuizService) cacheDefinition(ctx context.Context, def *model.QuizDefinition) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(def)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, quizCacheKey(def.ID), data, s.CacheTTL).Err(); err != nil {
		logger.Log.Warn("quiz cache write failed", zap.String("quizId", def.ID), zap.Error(err))
	}
}

func (s *QuizService) ListQuizzes(page, limit int) ([]repository.QuizListRow, int64, error) {
	return s.Store.List(page, limit)
}
