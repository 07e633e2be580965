package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"osian_backend/internal/config"
	"osian_backend/internal/console"
	"osian_backend/internal/model"
	"osian_backend/internal/quizclient"
	"osian_backend/internal/repository"
	"osian_backend/internal/session"
	"osian_backend/internal/util"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// bcrypt DefaultCost 在 -race 下单次可达数百毫秒
const clientTimeout = 10 * time.Second

type memStore struct {
	mu      sync.Mutex
	nextID  uint
	users   map[uint]*model.User
	quizzes map[string]*model.Quiz
	results []model.QuizResult
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uint]*model.User), quizzes: make(map[string]*model.Quiz)}
}

type memUsers struct{ *memStore }
type memQuizzes struct{ *memStore }
type memResults struct{ *memStore }

func (m memUsers) Create(user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m memUsers) FindByID(id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m memUsers) FindByEmail(email string) (*model.User, error) {
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

func (m memUsers) UpdateLastLogin(uint, time.Time) error { return nil }

func (m memUsers) List(filter repository.UserFilter, page, limit int) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		if filter.Disabled != nil && u.Disabled != *filter.Disabled {
			continue
		}
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (m memUsers) SetDisabled(id uint, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Disabled = disabled
	}
	return nil
}

func (m memQuizzes) Create(quiz *model.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if quiz.ID == "" {
		quiz.ID = model.GenerateUUID()
	}
	m.quizzes[quiz.ID] = quiz
	return nil
}

func (m memQuizzes) FindByID(id string) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.quizzes[id]; ok {
		return q, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m memQuizzes) List(page, limit int) ([]repository.QuizListRow, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []repository.QuizListRow
	for _, q := range m.quizzes {
		rows = append(rows, repository.QuizListRow{ID: q.ID, Title: q.Title, Duration: q.Duration, QuestionCount: len(q.Questions)})
	}
	return rows, int64(len(rows)), nil
}

func (m memResults) Create(result *model.QuizResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	result.ID = model.GenerateUUID()
	m.results = append(m.results, *result)
	return nil
}

func (m memResults) FindByUserAndQuiz(userID uint, quizID string) (*model.QuizResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.results {
		if m.results[i].UserID == userID && m.results[i].QuizID == quizID {
			cp := m.results[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memResults) ListByUser(userID uint) ([]model.QuizResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QuizResult
	for _, r := range m.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

func intPtr(v int) *int { return &v }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "test", BodyLimitMB: 1},
		JWT: config.JWTConfig{
			Secret:     "app-test-secret-that-is-long-enough",
			ExpireTime: time.Hour,
		},
		Redis: config.RedisConfig{CacheTTLMinutes: 1},
		CORS:  config.CORSConfig{AllowedOrigins: []string{"http://localhost:5500"}},
		RateLimit: config.RateLimitConfig{
			API:  config.LimitRule{MaxRequests: 1000, WindowMinutes: 15},
			Auth: config.LimitRule{MaxRequests: 1000, WindowMinutes: 10},
		},
	}
}

type testEnv struct {
	store  *memStore
	server *httptest.Server
	cfg    *config.Config
}

func newTestEnv(t *testing.T, pinger interface {
	PingContext(context.Context) error
}) *testEnv {
	cfg := testConfig()
	store := newMemStore()
	st := &stores{user: memUsers{store}, admin: memUsers{store}, quiz: memQuizzes{store}, result: memResults{store}}
	app := newApp(cfg, st, nil, pinger)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	return &testEnv{store: store, server: srv, cfg: cfg}
}

func (e *testEnv) api() string { return e.server.URL + "/api" }

func (e *testEnv) seedQuiz(quiz *model.Quiz) {
	_ = memQuizzes{e.store}.Create(quiz)
}

func (e *testEnv) register(t *testing.T, email string) string {
	body, _ := json.Marshal(map[string]string{"name": "Student", "email": email, "password": "password123"})
	resp, err := http.Post(e.api()+"/auth/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	token, err := quizclient.New(e.api(), "", clientTimeout).Login(context.Background(), email, "password123")
	require.NoError(t, err)
	return token
}

func arithmeticQuiz() *model.Quiz {
	return &model.Quiz{
		UUIDBase:    model.UUIDBase{ID: "quiz-arith"},
		Title:       "Arithmetic",
		Duration:    1,
		IsPublished: true,
		Questions: []model.QuizQuestion{
			{QuestionType: model.QuestionMCQ, QuestionText: "1+1", Options: []model.QuizOption{{Text: "1"}, {Text: "2"}}, CorrectAnswer: intPtr(1)},
			{QuestionType: model.QuestionMCQ, QuestionText: "2+2", Options: []model.QuizOption{{Text: "4"}, {Text: "5"}}, CorrectAnswer: intPtr(0)},
		},
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.api() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status     string            `json:"status"`
		Message    string            `json:"message"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "OK", body.Status)
	require.Equal(t, "disabled", body.Components["database"])
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestHealthDatabaseDown(t *testing.T) {
	env := newTestEnv(t, failingPinger{})
	resp, err := http.Get(env.api() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnknownAPIRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.api() + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body util.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "Route not found", body.Message)
}

func TestQuizRequiresLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedQuiz(arithmeticQuiz())

	_, err := quizclient.New(env.api(), "", clientTimeout).FetchQuiz(context.Background(), "quiz-arith")
	require.ErrorIs(t, err, session.ErrInvalidSession)

	_, err = quizclient.New(env.api(), "garbage", clientTimeout).FetchQuiz(context.Background(), "quiz-arith")
	require.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestCreateQuizAdminOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	studentToken := env.register(t, "student@example.com")

	admin := &model.User{Name: "Admin", Email: "admin@example.com", Role: model.Admin}
	require.NoError(t, memUsers{env.store}.Create(admin))
	adminToken, err := util.GenerateJWT(admin, env.cfg.JWT.Secret, time.Hour)
	require.NoError(t, err)

	body := []byte(`{"title":"Essay","duration":5,"questions":[{"questionType":"written","questionText":"Why?"}]}`)
	post := func(token string) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, env.api()+"/quizzes", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := post(studentToken)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = post(adminToken)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	def, err := quizclient.New(env.api(), studentToken, clientTimeout).FetchQuiz(context.Background(), created.Data.ID)
	require.NoError(t, err)
	require.Equal(t, "Essay", def.Title)
	require.Equal(t, model.QuestionWritten, def.Questions[0].QuestionType)
}

func TestTakeQuizEndToEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedQuiz(arithmeticQuiz())
	token := env.register(t, "taker@example.com")
	client := quizclient.New(env.api(), token, clientTimeout)

	ctrl := session.New("quiz-arith", client, console.NewPresenter(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		_ = ctrl.Run(ctx)
		close(runDone)
	}()
	defer func() {
		cancel()
		<-runDone
	}()

	require.NoError(t, ctrl.Load(context.Background()))
	require.NoError(t, ctrl.Start())
	require.NoError(t, ctrl.SelectOption(0, 1))
	require.NoError(t, ctrl.Navigate(session.Next))
	require.NoError(t, ctrl.SelectOption(1, 1))
	require.NoError(t, ctrl.Submit())

	waitCtx, waitCancel := context.WithTimeout(context.Background(), clientTimeout)
	defer waitCancel()
	out, err := ctrl.Wait(waitCtx)
	require.NoError(t, err)
	require.NoError(t, out.Err)
	require.Equal(t, session.Completed, out.Phase)
	require.Equal(t, model.ResultGraded, out.Result.Status)
	require.Equal(t, 1, *out.Result.Score)
	require.Equal(t, 2, *out.Result.TotalQuestions)

	// 同一测验再次提交
	_, err = client.SubmitAttempt(context.Background(), *out.Payload)
	var denied *session.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	require.Equal(t, "You have already attempted this quiz.", denied.Error())

	req, _ := http.NewRequest(http.MethodGet, env.api()+"/results/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mine struct {
		Data []struct {
			QuizID    string `json:"quizId"`
			Status    string `json:"status"`
			TimeTaken int    `json:"timeTaken"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mine))
	require.Len(t, mine.Data, 1)
	require.Equal(t, "quiz-arith", mine.Data[0].QuizID)
	require.Equal(t, model.ResultGraded, mine.Data[0].Status)
}

func TestFetchMissingQuiz(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.register(t, "missing@example.com")

	_, err := quizclient.New(env.api(), token, clientTimeout).FetchQuiz(context.Background(), "does-not-exist")
	var statusErr *quizclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestAdminDisableUser(t *testing.T) {
	env := newTestEnv(t, nil)
	studentToken := env.register(t, "disable-me@example.com")

	admin := &model.User{Name: "Admin", Email: "root@example.com", Role: model.Admin}
	require.NoError(t, memUsers{env.store}.Create(admin))
	adminToken, err := util.GenerateJWT(admin, env.cfg.JWT.Secret, time.Hour)
	require.NoError(t, err)

	call := func(method, path, token string) *http.Response {
		req, _ := http.NewRequest(method, env.api()+path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := call(http.MethodGet, "/admin/users", studentToken)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = call(http.MethodPost, "/admin/users/1/disable?disable=true", adminToken)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = quizclient.New(env.api(), "", clientTimeout).Login(context.Background(), "disable-me@example.com", "password123")
	var statusErr *quizclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)

	resp = call(http.MethodGet, "/admin/users?status=disabled", adminToken)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Data struct {
			List  []model.User `json:"list"`
			Total int64        `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.EqualValues(t, 1, page.Data.Total)
	require.Equal(t, "disable-me@example.com", page.Data.List[0].Email)

	resp = call(http.MethodPost, "/admin/users/2/disable?disable=true", adminToken)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = call(http.MethodGet, "/admin/users/99", adminToken)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
