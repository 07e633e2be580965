package quizclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"osian_backend/internal/model"
	"osian_backend/internal/session"
	"osian_backend/pkg/tracing"
	"strings"
	"time"
)

// StatusError 非 2xx 响应
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Message)
}

// UserMessage 服务端返回的提示，缺省时退回完整错误
func (e *StatusError) UserMessage() string {
	if e.Message == "" {
		return e.Error()
	}
	return e.Message
}

// Client 访问测验后端，实现 session.QuizAPI
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Token   string
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	tracing.Inject(ctx, req.Header)
	return req, nil
}

// serverMessage 读取错误响应中的 message 字段
func serverMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(data))
}

// FetchQuiz 401/403 均视为会话失效
func (c *Client) FetchQuiz(ctx context.Context, quizID string) (*model.QuizDefinition, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/quizzes/"+url.PathEscape(quizID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("fetch quiz: %w", session.ErrInvalidSession)
	case resp.StatusCode/100 != 2:
		return nil, &StatusError{Op: "fetch quiz", StatusCode: resp.StatusCode, Message: serverMessage(resp)}
	}

	var def model.QuizDefinition
	if err := json.NewDecoder(resp.Body).Decode(&def); err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	return &def, nil
}

// SubmitAttempt 401 视为会话失效，403 返回服务端提示
func (c *Client) SubmitAttempt(ctx context.Context, payload model.AttemptPayload) (*model.SubmissionResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/results/submit", payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("submit attempt: %w", session.ErrInvalidSession)
	case resp.StatusCode == http.StatusForbidden:
		return nil, &session.AccessDeniedError{Message: serverMessage(resp)}
	case resp.StatusCode/100 != 2:
		return nil, &StatusError{Op: "submit attempt", StatusCode: resp.StatusCode, Message: serverMessage(resp)}
	}

	var out model.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode submission result: %w", err)
	}
	if out.Result.Status == "" {
		return nil, errors.New("submission result without status")
	}
	return &out.Result, nil
}

// Login 换取 JWT
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", &StatusError{Op: "login", StatusCode: resp.StatusCode, Message: serverMessage(resp)}
	}

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if body.Data.Token == "" {
		return "", errors.New("login response without token")
	}
	return body.Data.Token, nil
}
