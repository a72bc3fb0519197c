// @title 问卷收集服务 API
// @version 1.0
// @description 问卷提交流水线：规范化、按类型校验、评分并持久化。

// @contact.name API支持

// @host localhost:8080
// @BasePath /

package main

import (
	"flag"
	"log"

	"questionnaire_backend/internal/app"
	"questionnaire_backend/internal/config"
	"questionnaire_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置文件所在目录")
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.MigrateOnly = *migrateOnly

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	application.Run()
}
