package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"osian_backend/internal/config"
	"osian_backend/pkg/loadtest"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	urls := flag.StringSlice("url", nil, "目标地址，可重复；为空时使用配置 loadtest.targets")
	requests := flag.Int("requests", 200, "每个 -url 目标的请求数")
	concurrency := flag.Int("concurrency", -1, "并发上限，0 表示全部同时发出；默认读取配置")
	timeout := flag.Duration("timeout", 30*time.Second, "单个请求超时")
	flag.Parse()

	if *requests <= 0 {
		fmt.Fprintln(os.Stderr, "-requests must be positive")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	targets := make([]loadtest.Target, 0, len(*urls))
	for _, u := range *urls {
		targets = append(targets, loadtest.Target{URL: u, Requests: *requests})
	}
	if len(targets) == 0 {
		for _, t := range cfg.LoadTest.Targets {
			targets = append(targets, loadtest.Target{URL: t.URL, Requests: t.Requests})
		}
	}
	if *concurrency < 0 {
		*concurrency = cfg.LoadTest.Concurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := loadtest.NewRunner(*timeout, *concurrency)
	enc := json.NewEncoder(os.Stdout)
	for _, t := range targets {
		report, err := runner.Run(ctx, t)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load test:", err)
			os.Exit(1)
		}
		_ = enc.Encode(report)
	}
}
