package repository

import (
	"errors"
	"osian_backend/internal/model"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) Create(result *model.QuizResult) error {
	return r.DB.Create(result).Error
}

// FindByUserAndQuiz 没有记录时返回 (nil, nil)
func (r *ResultRepository) FindByUserAndQuiz(userID uint, quizID string) (*model.QuizResult, error) {
	var result model.QuizResult
	err := r.DB.Where("user_id = ? AND quiz_id = ?", userID, quizID).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepository) ListByUser(userID uint) ([]model.QuizResult, error) {
	var results []model.QuizResult
	err := r.DB.Where("user_id = ?", userID).Order("submitted_at desc").Find(&results).Error
	return results, err
}
