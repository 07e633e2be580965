package model

const (
	ResultPending = "pending"
	ResultGraded  = "graded"
)

// QuizDefinition 答题端拉取到的测验内容
type QuizDefinition struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Duration    int                  `json:"duration"` // Minutes
	Questions   []QuestionDefinition `json:"questions"`
}

type QuestionDefinition struct {
	QuestionType string       `json:"questionType"`
	QuestionText string       `json:"questionText"`
	Options      []QuizOption `json:"options,omitempty"`
}

// AttemptAnswer 每道题一条，未作答时 SelectedAnswer 为 null、WrittenAnswer 为空串
type AttemptAnswer struct {
	QuestionIndex  int    `json:"questionIndex"`
	SelectedAnswer *int   `json:"selectedAnswer"`
	WrittenAnswer  string `json:"writtenAnswer"`
	TimeSpent      int    `json:"timeSpent"`
}

type AttemptPayload struct {
	QuizID    string          `json:"quizId" binding:"required"`
	Answers   []AttemptAnswer `json:"answers"`
	TimeTaken int             `json:"timeTaken"` // Seconds
}

type SubmissionResult struct {
	ID             string `json:"id,omitempty"`
	Status         string `json:"status"`
	Score          *int   `json:"score,omitempty"`
	TotalQuestions *int   `json:"totalQuestions,omitempty"`
}

type SubmitResponse struct {
	Result SubmissionResult `json:"result"`
}
