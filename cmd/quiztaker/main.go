package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"osian_backend/internal/config"
	"osian_backend/internal/console"
	"osian_backend/internal/credential"
	"osian_backend/internal/quizclient"
	"osian_backend/internal/session"
	"osian_backend/pkg/logger"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	email := flag.String("login", "", "登录邮箱，登录成功后保存凭证")
	password := flag.String("password", "", "登录密码")
	quizID := flag.String("quiz", "", "要作答的测验 ID")
	baseURL := flag.String("api", "", "后端 API 地址，默认读取配置 client.base_url")
	logout := flag.Bool("logout", false, "清除本地凭证")
	flag.Parse()

	if err := run(*configDir, *email, *password, *quizID, *baseURL, *logout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configDir, email, password, quizID, baseURL string, logout bool) error {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// 答题时控制台留给题目，日志只写文件
	cfg.Log.Console = false
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	if baseURL == "" {
		baseURL = cfg.Client.BaseURL
	}
	store := credential.NewFileStore(cfg.Client.CredentialsFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case logout:
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	case email != "":
		client := quizclient.New(baseURL, "", cfg.Client.Timeout())
		token, err := client.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := store.Save(credential.Credential{Token: token, Email: email}); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
		fmt.Printf("Logged in as %s.\n", email)
		if quizID == "" {
			return nil
		}
	}

	if quizID == "" {
		flag.Usage()
		return errors.New("missing -quiz")
	}

	cred, err := store.Load()
	if errors.Is(err, credential.ErrNotLoggedIn) {
		return errors.New("not logged in, run with -login <email> -password <password> first")
	}
	if err != nil {
		return err
	}

	return takeQuiz(ctx, quizclient.New(baseURL, cred.Token, cfg.Client.Timeout()), store, quizID)
}

func takeQuiz(ctx context.Context, api session.QuizAPI, creds session.Credentials, quizID string) error {
	presenter := console.NewPresenter(os.Stdout)
	ctrl := session.New(quizID, api, presenter, session.WithCredentials(creds))

	runCtx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = ctrl.Run(runCtx)
	}()
	// 提交中的请求在 Run 内部等待完成
	defer func() {
		cancel()
		<-runDone
	}()

	if err := ctrl.Load(ctx); err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			return errors.New("session expired, please log in again")
		}
		return err
	}

	outcome, err := console.Run(ctx, ctrl, os.Stdin, presenter)
	if err != nil {
		if errors.Is(err, console.ErrQuit) {
			logger.Log.Info("quiz abandoned", zap.String("quizId", quizID), zap.Stringer("phase", outcome.Phase))
			return nil
		}
		return err
	}

	logger.Log.Info("quiz finished",
		zap.String("quizId", quizID),
		zap.Stringer("phase", outcome.Phase),
		zap.String("reason", string(outcome.Reason)),
		zap.Error(outcome.Err),
	)
	if outcome.Err != nil && !errors.Is(outcome.Err, session.ErrInvalidSession) {
		return outcome.Err
	}
	return nil
}
