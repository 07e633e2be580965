package session

import "errors"

// 展示给答题者的固定文案
const (
	MsgNotLoaded        = "Quiz data not loaded. Please refresh the page."
	MsgClipboardBlocked = "This action is disabled during the quiz."
	MsgAccessDenied     = "Access denied."
	MsgSubmitFailed     = "There was an error saving your results. Please contact support."
)

var (
	// ErrInvalidSession 凭证失效（拉取或提交返回 401，拉取返回 403），需要重新登录
	ErrInvalidSession = errors.New("session is no longer valid, please log in again")
	ErrAccessDenied   = errors.New("access denied")
	ErrLoadFailed     = errors.New("quiz load failed")
	ErrSubmitFailed   = errors.New("quiz submission failed")

	ErrNotLoaded        = errors.New("quiz not loaded")
	ErrAlreadyLoaded    = errors.New("quiz already loaded")
	ErrAlreadyStarted   = errors.New("quiz already started")
	ErrNotInProgress    = errors.New("quiz is not in progress")
	ErrQuestionIndex    = errors.New("question index out of range")
	ErrNotVisited       = errors.New("question has not been visited")
	ErrOptionIndex      = errors.New("option index out of range")
	ErrQuestionType     = errors.New("wrong question type")
	ErrClipboardBlocked = errors.New(MsgClipboardBlocked)
	ErrStopped          = errors.New("session controller stopped")
	ErrAlreadyRunning   = errors.New("session controller already running")
)

// AccessDeniedError 提交被服务端拒绝（403），Message 为服务端返回的提示
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string {
	if e.Message == "" {
		return MsgAccessDenied
	}
	return e.Message
}

func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}
