package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/go-kratos/kratos/v2"
	klog "github.com/go-kratos/kratos/v2/log"

	"github.com/Jamiexiao242/SignalDeck/internal/config"
	"github.com/Jamiexiao242/SignalDeck/internal/logger"
	"github.com/Jamiexiao242/SignalDeck/internal/research"
	"github.com/Jamiexiao242/SignalDeck/internal/server"
	"github.com/Jamiexiao242/SignalDeck/internal/storage"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "signaldeck"
	// Version 是服务的版本号
	Version string

	id, _ = os.Hostname()
)

func main() {
	var flagconf string
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.Parse()

	klogger := klog.With(klog.NewStdLogger(os.Stdout),
		"ts", klog.DefaultTimestamp,
		"caller", klog.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}

	ctx := context.Background()
	eng, err := research.NewEngine(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}

	var store *storage.Storage
	if cfg.DB.Host != "" {
		store, err = storage.NewStorage(cfg.DB)
		if err != nil {
			logger.Log.Fatalf("存储初始化失败: %v", err)
		}
		defer store.Close()
	}

	srv := server.NewHTTPServer(cfg.Server, eng, store)

	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Logger(klogger),
		kratos.Server(srv),
	)

	if err := app.Run(); err != nil {
		panic(err)
	}
}
