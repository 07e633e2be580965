package service

import (
	"context"
	"errors"
	"osian_backend/internal/config"
	"osian_backend/internal/model"
	"osian_backend/internal/repository"
	"osian_backend/internal/util"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memUsers struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uint]*model.User)}
}

func (m *memUsers) Create(user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) FindByID(id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) UpdateLastLogin(userID uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.LastLogin = &at
	}
	return nil
}

type memQuizzes struct {
	quizzes map[string]*model.Quiz
}

func (m *memQuizzes) Create(quiz *model.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = model.GenerateUUID()
	}
	m.quizzes[quiz.ID] = quiz
	return nil
}

func (m *memQuizzes) FindByID(id string) (*model.Quiz, error) {
	q, ok := m.quizzes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return q, nil
}

func (m *memQuizzes) List(page, limit int) ([]repository.QuizListRow, int64, error) {
	var rows []repository.QuizListRow
	for _, q := range m.quizzes {
		rows = append(rows, repository.QuizListRow{ID: q.ID, Title: q.Title, Duration: q.Duration, QuestionCount: len(q.Questions)})
	}
	return rows, int64(len(rows)), nil
}

type memResults struct {
	results []model.QuizResult
	failErr error
}

func (m *memResults) Create(result *model.QuizResult) error {
	if m.failErr != nil {
		return m.failErr
	}
	result.ID = model.GenerateUUID()
	m.results = append(m.results, *result)
	return nil
}

func (m *memResults) FindByUserAndQuiz(userID uint, quizID string) (*model.QuizResult, error) {
	for i := range m.results {
		if m.results[i].UserID == userID && m.results[i].QuizID == quizID {
			return &m.results[i], nil
		}
	}
	return nil, nil
}

func (m *memResults) ListByUser(userID uint) ([]model.QuizResult, error) {
	var out []model.QuizResult
	for _, r := range m.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func intPtr(v int) *int { return &v }

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:     "service-test-secret-with-enough-length",
			ExpireTime: time.Hour,
		},
		Redis: config.RedisConfig{CacheTTLMinutes: 1},
	}
}

func mcqQuiz() *model.Quiz {
	return &model.Quiz{
		UUIDBase:    model.UUIDBase{ID: "quiz-1"},
		Title:       "Arithmetic",
		Duration:    1,
		IsPublished: true,
		Questions: []model.QuizQuestion{
			{QuestionType: model.QuestionMCQ, QuestionText: "1+1", Options: []model.QuizOption{{Text: "1"}, {Text: "2"}}, CorrectAnswer: intPtr(1)},
			{QuestionType: model.QuestionMCQ, QuestionText: "2+2", Options: []model.QuizOption{{Text: "4"}, {Text: "5"}}, CorrectAnswer: intPtr(0)},
		},
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	users := newMemUsers()
	svc := NewAuthService(users, testConfig())

	user := &model.User{Name: "Ada", Email: "  Ada@Example.com ", Password: "password123"}
	require.NoError(t, svc.Register(user))
	require.Equal(t, "ada@example.com", user.Email)
	require.Equal(t, model.Student, user.Role)
	require.NotEqual(t, "password123", user.Password)

	err := svc.Register(&model.User{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	require.ErrorIs(t, err, util.ErrEmailRegistered)

	token, got, err := svc.Login("ADA@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	claims, err := util.ParseJWT(token, testConfig().JWT.Secret)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, model.Student, claims.Role)

	stored, err := svc.GetUser(user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
}

func TestAuthLoginFailures(t *testing.T) {
	users := newMemUsers()
	svc := NewAuthService(users, testConfig())
	require.NoError(t, svc.Register(&model.User{Name: "Bob", Email: "bob@example.com", Password: "password123"}))

	_, _, err := svc.Login("bob@example.com", "wrong-password")
	require.ErrorIs(t, err, util.ErrInvalidCredentials)

	_, _, err = svc.Login("nobody@example.com", "password123")
	require.ErrorIs(t, err, util.ErrInvalidCredentials)

	u, err := users.FindByEmail("bob@example.com")
	require.NoError(t, err)
	users.users[u.ID].Disabled = true
	_, _, err = svc.Login("bob@example.com", "password123")
	require.ErrorIs(t, err, util.ErrUserDisabled)

	_, err = svc.GetUser(999)
	require.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestValidateQuizReq(t *testing.T) {
	valid := CreateQuizReq{
		Title:    "Quiz",
		Duration: 5,
		Questions: []QuizQuestionReq{
			{QuestionType: model.QuestionMCQ, QuestionText: "Q1", Options: []model.QuizOption{{Text: "a"}, {Text: "b"}}, CorrectAnswer: intPtr(0)},
			{QuestionType: model.QuestionWritten, QuestionText: "Q2"},
		},
	}
	require.NoError(t, validateQuizReq(valid))

	cases := map[string]func(r *CreateQuizReq){
		"blank title":      func(r *CreateQuizReq) { r.Title = "  " },
		"zero duration":    func(r *CreateQuizReq) { r.Duration = 0 },
		"no questions":     func(r *CreateQuizReq) { r.Questions = nil },
		"one option":       func(r *CreateQuizReq) { r.Questions[0].Options = r.Questions[0].Options[:1] },
		"answer out range": func(r *CreateQuizReq) { r.Questions[0].CorrectAnswer = intPtr(2) },
		"written options":  func(r *CreateQuizReq) { r.Questions[1].Options = []model.QuizOption{{Text: "x"}} },
		"unknown type":     func(r *CreateQuizReq) { r.Questions[1].QuestionType = "essay" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			req.Questions = append([]QuizQuestionReq(nil), valid.Questions...)
			mutate(&req)
			require.ErrorIs(t, validateQuizReq(req), util.ErrInvalidQuiz)
		})
	}
}

func TestQuizServiceCreateAndDefinition(t *testing.T) {
	store := &memQuizzes{quizzes: make(map[string]*model.Quiz)}
	svc := NewQuizService(store, nil, testConfig())

	quiz, err := svc.CreateQuiz(1, CreateQuizReq{
		Title:    " Mixed ",
		Duration: 10,
		Questions: []QuizQuestionReq{
			{QuestionType: model.QuestionMCQ, QuestionText: "Pick", Options: []model.QuizOption{{Text: "a"}, {Text: "b"}}, CorrectAnswer: intPtr(1)},
			{QuestionType: model.QuestionWritten, QuestionText: "Explain"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Mixed", quiz.Title)
	require.True(t, quiz.IsPublished)
	require.Equal(t, 1, quiz.Questions[1].Position)

	def, err := svc.GetDefinition(context.Background(), quiz.ID)
	require.NoError(t, err)
	require.Equal(t, 10, def.Duration)
	require.Len(t, def.Questions, 2)
	require.Len(t, def.Questions[0].Options, 2)
	require.Empty(t, def.Questions[1].Options)

	_, err = svc.GetDefinition(context.Background(), "missing")
	require.ErrorIs(t, err, util.ErrQuizNotFound)

	hidden := false
	draft, err := svc.CreateQuiz(1, CreateQuizReq{
		Title:       "Draft",
		Duration:    1,
		IsPublished: &hidden,
		Questions:   []QuizQuestionReq{{QuestionType: model.QuestionWritten, QuestionText: "?"}},
	})
	require.NoError(t, err)
	_, err = svc.GetQuiz(draft.ID)
	require.ErrorIs(t, err, util.ErrQuizNotFound)
}

func TestGradeMCQ(t *testing.T) {
	quiz := mcqQuiz()
	result := Grade(quiz, model.AttemptPayload{
		QuizID: quiz.ID,
		Answers: []model.AttemptAnswer{
			{QuestionIndex: 0, SelectedAnswer: intPtr(1)},
			{QuestionIndex: 1, SelectedAnswer: intPtr(1)},
			{QuestionIndex: 7, SelectedAnswer: intPtr(0)},
		},
		TimeTaken: 95,
	})

	require.Equal(t, model.ResultGraded, result.Status)
	require.Equal(t, 1, result.Score)
	require.Equal(t, 2, result.TotalQuestions)
	require.Len(t, result.Answers, 2)
	// 超出测验时长的用时按时长计
	require.Equal(t, 60, result.TimeTaken)

	summary := result.Summary()
	require.NotNil(t, summary.Score)
	require.Equal(t, 1, *summary.Score)
	require.Equal(t, 2, *summary.TotalQuestions)
}

func TestGradeWrittenIsPending(t *testing.T) {
	quiz := mcqQuiz()
	quiz.Questions = append(quiz.Questions, model.QuizQuestion{QuestionType: model.QuestionWritten, QuestionText: "Why?"})

	result := Grade(quiz, model.AttemptPayload{QuizID: quiz.ID, TimeTaken: -3})
	require.Equal(t, model.ResultPending, result.Status)
	require.Equal(t, 0, result.TimeTaken)
	require.Len(t, result.Answers, 3)
	require.Nil(t, result.Answers[2].SelectedAnswer)
	require.Equal(t, "", result.Answers[2].WrittenAnswer)

	summary := result.Summary()
	require.Nil(t, summary.Score)
	require.Nil(t, summary.TotalQuestions)
}

func TestResultSubmitOnce(t *testing.T) {
	quizzes := &memQuizzes{quizzes: map[string]*model.Quiz{"quiz-1": mcqQuiz()}}
	results := &memResults{}
	svc := NewResultService(results, NewQuizService(quizzes, nil, testConfig()))

	payload := model.AttemptPayload{
		QuizID:    "quiz-1",
		Answers:   []model.AttemptAnswer{{QuestionIndex: 0, SelectedAnswer: intPtr(1)}, {QuestionIndex: 1, SelectedAnswer: intPtr(0)}},
		TimeTaken: 30,
	}
	result, err := svc.Submit(context.Background(), 7, payload)
	require.NoError(t, err)
	require.Equal(t, 2, result.Score)
	require.Equal(t, uint(7), result.UserID)
	require.False(t, result.SubmittedAt.IsZero())

	_, err = svc.Submit(context.Background(), 7, payload)
	require.ErrorIs(t, err, util.ErrAlreadyAttempted)

	// 其他用户不受影响
	_, err = svc.Submit(context.Background(), 8, payload)
	require.NoError(t, err)

	list, err := svc.ListForUser(7)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestResultSubmitErrors(t *testing.T) {
	quizzes := &memQuizzes{quizzes: map[string]*model.Quiz{"quiz-1": mcqQuiz()}}
	results := &memResults{failErr: errors.New("disk full")}
	svc := NewResultService(results, NewQuizService(quizzes, nil, testConfig()))

	_, err := svc.Submit(context.Background(), 1, model.AttemptPayload{QuizID: "nope"})
	require.ErrorIs(t, err, util.ErrQuizNotFound)

	_, err = svc.Submit(context.Background(), 1, model.AttemptPayload{QuizID: "quiz-1"})
	require.EqualError(t, err, "disk full")
}

func TestResultSubmitDuplicateKey(t *testing.T) {
	quizzes := &memQuizzes{quizzes: map[string]*model.Quiz{"quiz-1": mcqQuiz()}}
	// 检查时还没有记录，写入时另一个请求已经先插入
	results := &memResults{failErr: gorm.ErrDuplicatedKey}
	svc := NewResultService(results, NewQuizService(quizzes, nil, testConfig()))

	_, err := svc.Submit(context.Background(), 3, model.AttemptPayload{QuizID: "quiz-1"})
	require.ErrorIs(t, err, util.ErrAlreadyAttempted)
}
