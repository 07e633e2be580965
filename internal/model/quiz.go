package model

const (
	QuestionMCQ     = "mcq"
	QuestionWritten = "written"
)

type QuizOption struct {
	Text string `json:"text"`
}

// swagger:model Quiz
type Quiz struct {
	UUIDBase
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Duration    int            `gorm:"not null" json:"duration"` // Minutes
	IsPublished bool           `gorm:"default:true" json:"isPublished"`
	CreatorID   uint           `gorm:"index" json:"creatorId"`
	Questions   []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	UUIDBase
	QuizID       string       `gorm:"index;type:varchar(36)" json:"quizId"`
	QuestionType string       `gorm:"size:20;not null" json:"questionType"`
	QuestionText string       `gorm:"type:text;not null" json:"questionText"`
	Options      []QuizOption `gorm:"serializer:json;type:json" json:"options,omitempty"`
	// 标准答案（选项下标），不会下发给学生端
	CorrectAnswer *int `json:"-"`
	Position      int  `gorm:"default:0" json:"position"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// HasWritten 只要包含主观题，成绩就需要人工批改
func (q *Quiz) HasWritten() bool {
	for _, question := range q.Questions {
		if question.QuestionType == QuestionWritten {
			return true
		}
	}
	return false
}

// Definition 转换为答题端使用的结构，去掉标准答案
func (q *Quiz) Definition() *QuizDefinition {
	def := &QuizDefinition{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Duration:    q.Duration,
		Questions:   make([]QuestionDefinition, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		qd := QuestionDefinition{
			QuestionType: question.QuestionType,
			QuestionText: question.QuestionText,
		}
		if question.QuestionType == QuestionMCQ {
			qd.Options = append([]QuizOption(nil), question.Options...)
		}
		def.Questions = append(def.Questions, qd)
	}
	return def
}
