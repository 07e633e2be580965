package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type CommandKind string

const (
	CmdStart  CommandKind = "start"
	CmdNext   CommandKind = "next"
	CmdPrev   CommandKind = "prev"
	CmdAnswer CommandKind = "answer"
	CmdWrite  CommandKind = "write"
	CmdHide   CommandKind = "hide"
	CmdShow   CommandKind = "show"
	CmdCopy   CommandKind = "copy"
	CmdSubmit CommandKind = "submit"
	CmdStatus CommandKind = "status"
	CmdHelp   CommandKind = "help"
	CmdQuit   CommandKind = "quit"
)

type Command struct {
	Kind   CommandKind
	Option int
	Text   string
}

var ErrEmptyCommand = errors.New("empty command")

const helpText = `commands:
  start            start the quiz
  next, n          next question
  prev, p          previous question
  a <A|1>          choose an option (letter or 1-based number)
  w <text>         write the answer for a written question
  hide / show      simulate leaving / returning to the quiz window
  copy, paste      try to use the clipboard
  submit           submit your answers
  status           show time left, answers and violations
  quit             leave without submitting`

// ParseCommand 解析一行输入
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmptyCommand
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "start":
		return Command{Kind: CmdStart}, nil
	case "next", "n":
		return Command{Kind: CmdNext}, nil
	case "prev", "p":
		return Command{Kind: CmdPrev}, nil
	case "a", "answer":
		opt, err := parseOption(rest)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdAnswer, Option: opt}, nil
	case "w", "write":
		return Command{Kind: CmdWrite, Text: rest}, nil
	case "hide":
		return Command{Kind: CmdHide}, nil
	case "show":
		return Command{Kind: CmdShow}, nil
	case "copy", "paste":
		return Command{Kind: CmdCopy}, nil
	case "submit":
		return Command{Kind: CmdSubmit}, nil
	case "status":
		return Command{Kind: CmdStatus}, nil
	case "help", "?":
		return Command{Kind: CmdHelp}, nil
	case "quit", "exit", "q":
		return Command{Kind: CmdQuit}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q, type help", name)
}

// parseOption 支持字母（A=0）和从 1 开始的数字
func parseOption(s string) (int, error) {
	if s == "" {
		return 0, errors.New("usage: a <letter|number>")
	}
	if len(s) == 1 && unicode.IsLetter(rune(s[0])) {
		return int(unicode.ToUpper(rune(s[0])) - 'A'), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid option %q", s)
	}
	return n - 1, nil
}

// OptionLabel 0 -> A
func OptionLabel(i int) string {
	return string(rune('A' + i))
}
