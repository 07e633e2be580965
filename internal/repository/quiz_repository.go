package repository

import (
	"osian_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

// Create 测验与题目在同一个事务中写入
func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(quiz).Error
	})
}

func (r *QuizRepository) FindByID(id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, created_at asc")
		}).
		First(&quiz, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

type QuizListRow struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Duration      int    `json:"duration"`
	QuestionCount int    `json:"questionCount"`
}

func (r *QuizRepository) List(page, limit int) ([]QuizListRow, int64, error) {
	var total int64
	query := r.DB.Model(&model.Quiz{}).Where("is_published = ?", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []QuizListRow
	err := r.DB.Table("quizzes q").
		Select("q.id, q.title, q.description, q.duration, " +
			"(SELECT COUNT(*) FROM quiz_questions qq WHERE qq.quiz_id = q.id AND qq.deleted_at IS NULL) as question_count").
		Where("q.deleted_at IS NULL AND q.is_published = ?", true).
		Order("q.created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Scan(&rows).Error
	return rows, total, err
}
