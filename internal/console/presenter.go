package console

import (
	"fmt"
	"io"
	"osian_backend/internal/model"
	"osian_backend/internal/session"
	"strings"
	"sync"
)

// Presenter 把控制器输出渲染为终端文本
type Presenter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPresenter(out io.Writer) *Presenter {
	return &Presenter{out: out}
}

func (p *Presenter) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *Presenter) QuizLoaded(title, clock string) {
	p.printf("%s\nTime allowed: %s\n", title, clock)
	p.printf("Switching away from the quiz counts as a violation. %d violations submit the quiz automatically.\n", session.MaxViolations)
	p.printf("Type \"start\" when you are ready.\n")
}

func (p *Presenter) LoadFailed(message string) {
	p.printf("Error: %s.\n", message)
}

func (p *Presenter) SessionExpired() {
	p.printf("Your session has expired. Please log in again with -login.\n")
}

func (p *Presenter) QuestionShown(q session.QuestionView) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\nQuestion %d of %d\n%s\n", q.Index+1, q.Total, q.Question.QuestionText)
	switch q.Question.QuestionType {
	case model.QuestionMCQ:
		for i, opt := range q.Question.Options {
			marker := " "
			if q.SelectedOption != nil && *q.SelectedOption == i {
				marker = "*"
			}
			fmt.Fprintf(p.out, " %s %s) %s\n", marker, OptionLabel(i), opt.Text)
		}
	case model.QuestionWritten:
		if q.WrittenAnswer != "" {
			fmt.Fprintf(p.out, "  Your answer: %s\n", q.WrittenAnswer)
		} else {
			fmt.Fprintf(p.out, "  (type w <text> to answer)\n")
		}
	}

	var controls []string
	if q.CanPrev {
		controls = append(controls, "prev")
	}
	if q.CanNext {
		controls = append(controls, "next")
	}
	if q.CanSubmit {
		controls = append(controls, "submit")
	}
	fmt.Fprintf(p.out, "  [%s]\n", strings.Join(controls, " | "))
}

func (p *Presenter) TimeLeft(clock string) {
	p.printf("\rTime left: %s ", clock)
}

func (p *Presenter) ViolationWarning(count, limit int) {
	p.printf("\nWarning! You left the quiz. Violations: %d / %d\n", count, limit)
}

func (p *Presenter) ViolationCleared() {
	p.printf("Welcome back.\n")
}

func (p *Presenter) Notice(message string) {
	p.printf("%s\n", message)
}

func (p *Presenter) Submitting(reason session.SubmitReason, auto bool) {
	if auto {
		switch reason {
		case session.ReasonTimeout:
			p.printf("\nTime's up! Your quiz is being submitted automatically.\n")
		default:
			p.printf("\nToo many violations. Your quiz is being submitted automatically.\n")
		}
		return
	}
	p.printf("\nSubmitting...\nPlease wait while we save your answers.\n")
}

func (p *Presenter) ResultsPending() {
	p.printf("Quiz Submitted!\nYour responses are saved. Results will be declared in 8-10 hours.\n")
}

func (p *Presenter) ResultGraded(score, total int) {
	p.printf("Quiz Submitted!\nYour score: %d / %d\n", score, total)
}

func (p *Presenter) SubmissionFailed(message string) {
	p.printf("Submission Failed\n%s\n", message)
}
