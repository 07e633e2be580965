// @title OSIAN 后端 API
// @version 1.0
// @description OSIAN 测验平台的后端服务器。

// @host localhost:5000
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"log"
	"osian_backend/internal/app"
	"osian_backend/internal/config"
	"osian_backend/pkg/logger"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer logger.Log.Sync()

	if err := application.Run(); err != nil {
		logger.Log.Fatal("Server error", zap.Error(err))
	}
}
