package session

import (
	"context"
	"fmt"
	"osian_backend/internal/model"
	"time"
)

type Phase int

const (
	NotStarted Phase = iota
	InProgress
	Submitting
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "NotStarted"
	case InProgress:
		return "InProgress"
	case Submitting:
		return "Submitting"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type Direction int

const (
	Prev Direction = iota
	Next
)

type SubmitReason string

const (
	ReasonManual    SubmitReason = "manual"
	ReasonTimeout   SubmitReason = "timeout"
	ReasonViolation SubmitReason = "violation"
)

// MaxViolations 切出页面达到该次数后自动交卷
const MaxViolations = 2

// QuizAPI 答题端依赖的两个远程操作
type QuizAPI interface {
	FetchQuiz(ctx context.Context, quizID string) (*model.QuizDefinition, error)
	SubmitAttempt(ctx context.Context, payload model.AttemptPayload) (*model.SubmissionResult, error)
}

// Credentials 会话失效时清除本地保存的凭证
type Credentials interface {
	Clear() error
}

type QuestionView struct {
	Index          int
	Total          int
	Question       model.QuestionDefinition
	SelectedOption *int
	WrittenAnswer  string
	CanPrev        bool
	CanNext        bool
	CanSubmit      bool
}

// Presenter 由展示层实现，所有方法都在控制器的事件循环里同步调用，不能回调 Controller
type Presenter interface {
	QuizLoaded(title, clock string)
	LoadFailed(message string)
	SessionExpired()
	QuestionShown(q QuestionView)
	TimeLeft(clock string)
	ViolationWarning(count, limit int)
	ViolationCleared()
	Notice(message string)
	Submitting(reason SubmitReason, auto bool)
	ResultsPending()
	ResultGraded(score, total int)
	SubmissionFailed(message string)
}

// Outcome 一次作答的最终结果
type Outcome struct {
	Phase   Phase
	Reason  SubmitReason
	Auto    bool
	Payload *model.AttemptPayload
	Result  *model.SubmissionResult
	Err     error
}

type Snapshot struct {
	Phase            Phase
	Title            string
	Total            int
	CurrentIndex     int
	RemainingSeconds int
	Violations       int
	Hidden           bool
	MCQAnswers       map[int]int
	WrittenAnswers   map[int]string
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

func (t realTicker) C() <-chan time.Time { return t.t.C }
func (t realTicker) Stop()               { t.t.Stop() }

// FormatClock 格式化为 M:SS，负数按 0 处理
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
