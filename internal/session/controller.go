package session

import (
	"context"
	"errors"
	"fmt"
	"osian_backend/internal/model"
	"osian_backend/pkg/logger"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type event struct {
	fn       func() error
	reply    chan error
	internal bool
}

// Controller 管理一次限时作答。所有状态只在 Run 的事件循环里读写，
// 公开方法把操作投递到循环并等待结果，可以并发调用。
type Controller struct {
	quizID string
	api    QuizAPI
	view   Presenter
	creds  Credentials
	clock  Clock
	log    *zap.Logger

	events   chan event
	done     chan struct{}
	finished chan struct{}
	running  atomic.Bool

	// 以下字段只由事件循环访问
	baseCtx  context.Context
	stopping bool
	inflight int
	ticker   Ticker
	tickC    <-chan time.Time
	outcome  Outcome
	closed   bool

	def        *model.QuizDefinition
	loading    bool
	phase      Phase
	current    int
	remaining  int
	violations int
	hidden     bool
	monitoring bool
	visited    map[int]bool
	mcq        map[int]int
	written    map[int]string
}

type Option func(*Controller)

func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) { c.log = log }
}

func WithCredentials(creds Credentials) Option {
	return func(c *Controller) { c.creds = creds }
}

func New(quizID string, api QuizAPI, view Presenter, opts ...Option) *Controller {
	c := &Controller{
		quizID:   quizID,
		api:      api,
		view:     view,
		clock:    realClock{},
		log:      logger.Log,
		events:   make(chan event),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		visited:  make(map[int]bool),
		mcq:      make(map[int]int),
		written:  make(map[int]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("quizId", quizID))
	return c
}

// Run 处理事件直到 ctx 结束。ctx 结束后仍会等待进行中的网络请求完成并处理其结果。
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	c.baseCtx = context.WithoutCancel(ctx)
	ctxDone := ctx.Done()

	for {
		if c.stopping && c.inflight == 0 {
			c.stopTicker()
			c.finish(Outcome{Phase: c.phase, Err: ErrStopped})
			return ctx.Err()
		}

		select {
		case <-ctxDone:
			ctxDone = nil
			c.stopping = true
			c.stopTicker()
		case e := <-c.events:
			if c.stopping && !e.internal {
				e.reply <- ErrStopped
				continue
			}
			err := e.fn()
			if e.reply != nil {
				e.reply <- err
			}
		case <-c.tickC:
			c.tick()
		}
	}
}

func (c *Controller) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.events <- event{fn: fn, reply: reply}:
	case <-c.done:
		return ErrStopped
	}
	return <-reply
}

// post 投递网络请求的完成事件
func (c *Controller) post(fn func()) {
	select {
	case c.events <- event{fn: func() error { fn(); return nil }, internal: true}:
	case <-c.done:
	}
}

func (c *Controller) finish(o Outcome) {
	if c.closed {
		return
	}
	c.closed = true
	c.outcome = o
	close(c.finished)
}

// Wait 等待作答结束（提交完成、失败、会话失效、加载失败或控制器停止）
func (c *Controller) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-c.finished:
		return c.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Load 拉取测验，阻塞调用方直到请求完成；期间事件循环照常处理其他事件
func (c *Controller) Load(ctx context.Context) error {
	var wait chan error
	err := c.do(func() error {
		if c.def != nil || c.loading || c.closed {
			return ErrAlreadyLoaded
		}
		c.loading = true
		c.inflight++
		wait = make(chan error, 1)
		go func() {
			def, err := c.api.FetchQuiz(c.baseCtx, c.quizID)
			c.post(func() {
				c.inflight--
				wait <- c.loaded(def, err)
			})
		}()
		return nil
	})
	if err != nil {
		return err
	}

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) loaded(def *model.QuizDefinition, err error) error {
	c.loading = false
	if err == nil {
		err = validateDefinition(def)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			c.expireSession(Outcome{})
			return ErrInvalidSession
		}
		c.log.Warn("quiz load failed", zap.Error(err))
		c.view.LoadFailed(userMessage(err))
		wrapped := fmt.Errorf("%w: %v", ErrLoadFailed, err)
		c.finish(Outcome{Phase: c.phase, Err: wrapped})
		return wrapped
	}

	c.def = def
	c.remaining = def.Duration * 60
	c.log.Info("quiz loaded", zap.Int("questions", len(def.Questions)), zap.Int("durationMinutes", def.Duration))
	c.view.QuizLoaded(def.Title, FormatClock(c.remaining))
	return nil
}

// userMessager 由携带服务端提示的错误实现
type userMessager interface {
	UserMessage() string
}

func userMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

func validateDefinition(def *model.QuizDefinition) error {
	if def == nil {
		return errors.New("empty quiz response")
	}
	if def.Duration <= 0 {
		return fmt.Errorf("invalid quiz duration %d", def.Duration)
	}
	if len(def.Questions) == 0 {
		return errors.New("quiz has no questions")
	}
	return nil
}

func (c *Controller) expireSession(out Outcome) {
	if c.creds != nil {
		if err := c.creds.Clear(); err != nil {
			c.log.Warn("clear credentials failed", zap.Error(err))
		}
	}
	c.log.Info("session expired", zap.Stringer("phase", c.phase))
	c.view.SessionExpired()
	out.Phase = c.phase
	out.Err = ErrInvalidSession
	c.finish(out)
}

func (c *Controller) Start() error {
	return c.do(func() error {
		if c.def == nil {
			c.view.Notice(MsgNotLoaded)
			return ErrNotLoaded
		}
		if c.phase != NotStarted {
			return ErrAlreadyStarted
		}

		c.phase = InProgress
		c.ticker = c.clock.NewTicker(time.Second)
		c.tickC = c.ticker.C()
		c.monitoring = true
		c.log.Info("quiz started", zap.Int("remainingSeconds", c.remaining))

		c.show(0)
		c.view.TimeLeft(FormatClock(c.remaining))
		return nil
	})
}

func (c *Controller) Navigate(dir Direction) error {
	return c.do(func() error {
		if c.phase != InProgress {
			return ErrNotInProgress
		}
		switch dir {
		case Prev:
			if c.current > 0 {
				c.show(c.current - 1)
			}
		case Next:
			if c.current < len(c.def.Questions)-1 {
				c.show(c.current + 1)
			}
		}
		return nil
	})
}

func (c *Controller) show(index int) {
	c.current = index
	c.visited[index] = true

	total := len(c.def.Questions)
	q := QuestionView{
		Index:         index,
		Total:         total,
		Question:      c.def.Questions[index],
		WrittenAnswer: c.written[index],
		CanPrev:       index > 0,
		CanNext:       index < total-1,
		CanSubmit:     index == total-1,
	}
	if opt, ok := c.mcq[index]; ok {
		q.SelectedOption = &opt
	}
	c.view.QuestionShown(q)
}

func (c *Controller) checkAnswer(questionIndex int, questionType string) error {
	if c.phase != InProgress {
		return ErrNotInProgress
	}
	if questionIndex < 0 || questionIndex >= len(c.def.Questions) {
		return ErrQuestionIndex
	}
	if !c.visited[questionIndex] {
		return ErrNotVisited
	}
	if c.def.Questions[questionIndex].QuestionType != questionType {
		return ErrQuestionType
	}
	return nil
}

// SelectOption 记录选择题答案，覆盖之前的选择
func (c *Controller) SelectOption(questionIndex, optionIndex int) error {
	return c.do(func() error {
		if err := c.checkAnswer(questionIndex, model.QuestionMCQ); err != nil {
			return err
		}
		if optionIndex < 0 || optionIndex >= len(c.def.Questions[questionIndex].Options) {
			return ErrOptionIndex
		}
		c.mcq[questionIndex] = optionIndex
		return nil
	})
}

// WriteAnswer 每次编辑都覆盖主观题答案
func (c *Controller) WriteAnswer(questionIndex int, text string) error {
	return c.do(func() error {
		if err := c.checkAnswer(questionIndex, model.QuestionWritten); err != nil {
			return err
		}
		c.written[questionIndex] = text
		return nil
	})
}

// VisibilityChanged 页面切出/切回。仅在作答中生效，连续的切出只计一次。
func (c *Controller) VisibilityChanged(hidden bool) error {
	return c.do(func() error {
		if !c.monitoring || c.phase != InProgress {
			return nil
		}
		if !hidden {
			if c.hidden {
				c.hidden = false
				c.view.ViolationCleared()
			}
			return nil
		}
		if c.hidden {
			return nil
		}

		c.hidden = true
		c.violations++
		c.log.Warn("violation recorded", zap.Int("count", c.violations), zap.Int("limit", MaxViolations))
		c.view.ViolationWarning(c.violations, MaxViolations)
		if c.violations >= MaxViolations {
			return c.submit(ReasonViolation, true)
		}
		return nil
	})
}

// ClipboardAttempt 作答中拒绝复制粘贴
func (c *Controller) ClipboardAttempt() error {
	return c.do(func() error {
		if c.phase != InProgress {
			return nil
		}
		c.view.Notice(MsgClipboardBlocked)
		return ErrClipboardBlocked
	})
}

// Submit 手动交卷；不在作答中时不做任何事并返回 ErrNotInProgress
func (c *Controller) Submit() error {
	return c.do(func() error {
		return c.submit(ReasonManual, false)
	})
}

func (c *Controller) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := c.do(func() error {
		s = Snapshot{
			Phase:            c.phase,
			CurrentIndex:     c.current,
			RemainingSeconds: c.remaining,
			Violations:       c.violations,
			Hidden:           c.hidden,
			MCQAnswers:       make(map[int]int, len(c.mcq)),
			WrittenAnswers:   make(map[int]string, len(c.written)),
		}
		if c.def != nil {
			s.Title = c.def.Title
			s.Total = len(c.def.Questions)
		}
		for k, v := range c.mcq {
			s.MCQAnswers[k] = v
		}
		for k, v := range c.written {
			s.WrittenAnswers[k] = v
		}
		return nil
	})
	return s, err
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.tickC = nil
}

// tick 先减一再判断，最后显示的是 0:00，下一次 tick 才交卷
func (c *Controller) tick() {
	if c.phase != InProgress {
		return
	}
	c.remaining--
	if c.remaining < 0 {
		c.log.Info("time is up")
		_ = c.submit(ReasonTimeout, true)
		return
	}
	c.view.TimeLeft(FormatClock(c.remaining))
}

func (c *Controller) buildPayload() model.AttemptPayload {
	answers := make([]model.AttemptAnswer, len(c.def.Questions))
	for i := range c.def.Questions {
		a := model.AttemptAnswer{QuestionIndex: i, WrittenAnswer: c.written[i]}
		if opt, ok := c.mcq[i]; ok {
			selected := opt
			a.SelectedAnswer = &selected
		}
		answers[i] = a
	}

	total := c.def.Duration * 60
	timeTaken := total - c.remaining
	if timeTaken > total {
		timeTaken = total
	}
	if timeTaken < 0 {
		timeTaken = 0
	}

	return model.AttemptPayload{
		QuizID:    c.quizID,
		Answers:   answers,
		TimeTaken: timeTaken,
	}
}

func (c *Controller) submit(reason SubmitReason, auto bool) error {
	if c.phase != InProgress {
		return ErrNotInProgress
	}

	c.stopTicker()
	c.monitoring = false
	c.phase = Submitting
	payload := c.buildPayload()

	c.log.Info("submitting quiz",
		zap.String("reason", string(reason)),
		zap.Bool("auto", auto),
		zap.Int("timeTaken", payload.TimeTaken),
		zap.Int("violations", c.violations),
	)
	c.view.Submitting(reason, auto)

	c.inflight++
	go func() {
		res, err := c.api.SubmitAttempt(c.baseCtx, payload)
		c.post(func() {
			c.inflight--
			c.submitted(reason, auto, &payload, res, err)
		})
	}()
	return nil
}

func (c *Controller) submitted(reason SubmitReason, auto bool, payload *model.AttemptPayload, res *model.SubmissionResult, err error) {
	out := Outcome{Reason: reason, Auto: auto, Payload: payload, Result: res}
	if err == nil && res == nil {
		err = errors.New("empty submission response")
	}

	var denied *AccessDeniedError
	switch {
	case err == nil:
		c.phase = Completed
		c.log.Info("quiz submitted", zap.String("status", res.Status))
		if res.Status == model.ResultPending {
			c.view.ResultsPending()
		} else {
			score, total := 0, len(c.def.Questions)
			if res.Score != nil {
				score = *res.Score
			}
			if res.TotalQuestions != nil {
				total = *res.TotalQuestions
			}
			c.view.ResultGraded(score, total)
		}
	case errors.Is(err, ErrInvalidSession):
		c.expireSession(out)
		return
	case errors.As(err, &denied):
		c.phase = Failed
		c.log.Warn("submission denied", zap.Error(err))
		c.view.SubmissionFailed(denied.Error())
		out.Err = err
	default:
		c.phase = Failed
		c.log.Error("submission failed", zap.Error(err))
		c.view.SubmissionFailed(MsgSubmitFailed)
		out.Err = fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	out.Phase = c.phase
	c.finish(out)
}
