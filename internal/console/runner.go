package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"osian_backend/internal/session"
	"strings"
)

// ErrQuit 用户未交卷就退出
var ErrQuit = errors.New("quit without submitting")

// Run 读取终端命令驱动控制器，直到作答结束、用户退出或 ctx 结束
func Run(ctx context.Context, c *session.Controller, in io.Reader, p *Presenter) (session.Outcome, error) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	finished := make(chan session.Outcome, 1)
	go func() {
		if out, err := c.Wait(ctx); err == nil {
			finished <- out
		}
	}()

	input := lines
	for {
		select {
		case <-ctx.Done():
			return session.Outcome{}, ctx.Err()
		case out := <-finished:
			return out, nil
		case line, ok := <-input:
			if !ok {
				// 输入结束：提交中的作答继续等结果，否则视为退出
				input = nil
				snap, err := c.Snapshot()
				if err != nil || snap.Phase == session.NotStarted || snap.Phase == session.InProgress {
					return session.Outcome{Phase: snap.Phase}, ErrQuit
				}
				continue
			}

			cmd, err := ParseCommand(line)
			if errors.Is(err, ErrEmptyCommand) {
				continue
			}
			if err != nil {
				p.Notice(err.Error())
				continue
			}
			if cmd.Kind == CmdQuit {
				snap, _ := c.Snapshot()
				return session.Outcome{Phase: snap.Phase}, ErrQuit
			}
			if err := dispatch(c, p, cmd); err != nil {
				if msg := describe(err); msg != "" {
					p.Notice(msg)
				}
			}
		}
	}
}

func dispatch(c *session.Controller, p *Presenter, cmd Command) error {
	switch cmd.Kind {
	case CmdStart:
		return c.Start()
	case CmdNext:
		return c.Navigate(session.Next)
	case CmdPrev:
		return c.Navigate(session.Prev)
	case CmdAnswer:
		snap, err := c.Snapshot()
		if err != nil {
			return err
		}
		if err := c.SelectOption(snap.CurrentIndex, cmd.Option); err != nil {
			return err
		}
		p.Notice(fmt.Sprintf("Selected %s for question %d.", OptionLabel(cmd.Option), snap.CurrentIndex+1))
	case CmdWrite:
		snap, err := c.Snapshot()
		if err != nil {
			return err
		}
		if err := c.WriteAnswer(snap.CurrentIndex, cmd.Text); err != nil {
			return err
		}
		p.Notice(fmt.Sprintf("Saved answer for question %d.", snap.CurrentIndex+1))
	case CmdHide:
		return c.VisibilityChanged(true)
	case CmdShow:
		return c.VisibilityChanged(false)
	case CmdCopy:
		// 提示已经由控制器输出
		if err := c.ClipboardAttempt(); !errors.Is(err, session.ErrClipboardBlocked) {
			return err
		}
	case CmdSubmit:
		return c.Submit()
	case CmdStatus:
		snap, err := c.Snapshot()
		if err != nil {
			return err
		}
		p.Notice(formatStatus(snap))
	case CmdHelp:
		p.Notice(helpText)
	}
	return nil
}

func formatStatus(s session.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s", s.Title, s.Phase)
	if s.Total > 0 {
		fmt.Fprintf(&b, " | question %d of %d", s.CurrentIndex+1, s.Total)
	}
	fmt.Fprintf(&b, " | time left %s | answered %d | violations %d/%d",
		session.FormatClock(s.RemainingSeconds),
		len(s.MCQAnswers)+len(s.WrittenAnswers),
		s.Violations, session.MaxViolations,
	)
	return b.String()
}

func describe(err error) string {
	switch {
	case errors.Is(err, session.ErrNotInProgress):
		return "The quiz is not in progress."
	case errors.Is(err, session.ErrAlreadyStarted):
		return "The quiz has already started."
	case errors.Is(err, session.ErrNotLoaded):
		// 控制器已经提示过
		return ""
	case errors.Is(err, session.ErrOptionIndex):
		return "That option does not exist."
	case errors.Is(err, session.ErrQuestionType):
		return "That answer type does not fit this question."
	}
	return err.Error()
}
