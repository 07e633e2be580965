package database

import (
	"fmt"
	"osian_backend/internal/config"
	"osian_backend/internal/model"
	applog "osian_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	logLevel := logger.Warn
	if mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	applog.Log.Info("Database connection established", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))

	err = db.AutoMigrate(
		&model.User{},
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.QuizResult{},
	)
	if err != nil {
		return nil, err
	}

	applog.Log.Info("Database migration completed")

	if err := seedSampleQuiz(db); err != nil {
		return nil, err
	}

	return db, nil
}

// 测验表为空时写入一份示例测验，方便本地联调
func seedSampleQuiz(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Quiz{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	one, two := 1, 2
	quiz := &model.Quiz{
		Title:       "OSIAN Orientation Quiz",
		Description: "A short warm-up before the real thing.",
		Duration:    5,
		IsPublished: true,
		Questions: []model.QuizQuestion{
			{
				QuestionType:  model.QuestionMCQ,
				QuestionText:  "How many times may you switch tabs before the quiz is submitted automatically?",
				Options:       []model.QuizOption{{Text: "Never"}, {Text: "Once"}, {Text: "Twice"}},
				CorrectAnswer: &two,
				Position:      0,
			},
			{
				QuestionType:  model.QuestionMCQ,
				QuestionText:  "What happens when the timer reaches zero?",
				Options:       []model.QuizOption{{Text: "Nothing"}, {Text: "The quiz is submitted"}, {Text: "The timer restarts"}},
				CorrectAnswer: &one,
				Position:      1,
			},
			{
				QuestionType: model.QuestionWritten,
				QuestionText: "Tell us why you joined OSIAN.",
				Position:     2,
			},
		},
	}
	if err := db.Create(quiz).Error; err != nil {
		return err
	}
	applog.Log.Info("Seeded sample quiz", zap.String("quizId", quiz.ID))
	return nil
}
