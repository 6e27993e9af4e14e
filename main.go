package main

import (
	"github.com/joho/godotenv"

	"video-assembly-service/app"
	"video-assembly-service/pkg/observability"
)

func main() {
	// .env 不存在时忽略，环境变量仍然生效
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	stop := observability.StartProfiling(app.ServiceName, cfg.Profiling)
	defer stop()

	app.Run(cfg)
}
