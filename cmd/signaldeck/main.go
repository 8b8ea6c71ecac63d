package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Jamiexiao242/SignalDeck/internal/config"
	"github.com/Jamiexiao242/SignalDeck/internal/logger"
	"github.com/Jamiexiao242/SignalDeck/internal/render"
	"github.com/Jamiexiao242/SignalDeck/internal/research"
	"github.com/Jamiexiao242/SignalDeck/internal/storage"
)

func main() {
	var (
		flagconf string
		subject  string
		outPath  string
	)
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "配置文件路径")
	flag.StringVar(&subject, "subject", "", "研究主题，例如 \"research NVDA\"")
	flag.StringVar(&outPath, "out", "", "HTML 输出路径（覆盖配置中的 output.html_path）")
	flag.Parse()

	if subject == "" {
		log.Fatal("用法: signaldeck -subject \"research NVDA\" [-conf config.yaml]")
	}

	// 1. 加载配置
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动研究引擎...")

	ctx := context.Background()

	// 3. 初始化引擎（LLM + 搜索链 + 限流器）
	eng, err := research.NewEngine(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}

	// 4. 执行研究，进度回调打到日志
	out, err := eng.Run(ctx, subject, func(line string) {
		logger.Log.Info(line)
	})
	if err != nil {
		logger.Log.Fatalf("研究执行失败: %v", err)
	}

	logger.Log.Infof("识别标的: %v", out.Tickers)
	fmt.Println(out.Report)

	// 5. 持久化（配置了数据库才启用）
	if cfg.DB.Host != "" {
		store, err := storage.NewStorage(cfg.DB)
		if err != nil {
			logger.Log.Errorf("存储初始化失败: %v", err)
		} else {
			defer store.Close()
			if id, err := store.SaveRun(subject, out); err != nil {
				logger.Log.Errorf("保存研究结果失败: %v", err)
			} else {
				logger.Log.Infof("研究结果已保存 (run_id=%d)", id)
			}
		}
	}

	// 6. 渲染 HTML
	htmlPath := cfg.Output.HTMLPath
	if outPath != "" {
		htmlPath = outPath
	}
	if htmlPath != "" {
		data := render.PageData{
			Date:    time.Now().Format("2006-01-02"),
			Subject: subject,
			Output:  out,
		}
		if err := render.WritePage(htmlPath, data); err != nil {
			logger.Log.Fatalf("生成 HTML 失败: %v", err)
		}
		logger.Log.Infof("✅ 研究报告生成完毕: %s", htmlPath)
	}
}
