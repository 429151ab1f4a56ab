package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Otitodev/wa-assist/config"
	"github.com/Otitodev/wa-assist/internal/adminapi"
	"github.com/Otitodev/wa-assist/internal/app"
	"github.com/Otitodev/wa-assist/internal/gateway"
	"github.com/Otitodev/wa-assist/internal/ingest"
	"github.com/Otitodev/wa-assist/internal/llm"
	"github.com/Otitodev/wa-assist/internal/reply"
	"github.com/Otitodev/wa-assist/internal/webserver"
)

var (
	cfile     = flag.String("c", "wa-assist.yml", "config file")
	initdb    = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	debugMode = flag.Bool("x", false, "debug mode")
)

func main() {
	flag.Parse()

	cfg := config.LoadConfig(*cfile)
	if *debugMode {
		cfg.Database.Debug = true
		cfg.Logger.Mode = "development"
	}

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		fmt.Println("database initialized")
		return
	}

	gw := gateway.NewClient(time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second)

	providers, err := llm.NewRegistry(cfg.Llm)
	if err != nil {
		zap.S().Fatalf("llm setup failed: %v", err)
	}

	events := ingest.NewGormEventStore(application.DB())
	ledger := ingest.NewGormLedger(application.DB())
	sessions := ingest.NewGormSessionRegistry(application.DB())

	replier, err := reply.New(providers, gw, events, ledger, cfg.Llm.DefaultPrompt, cfg.Llm.MaxWorkers)
	if err != nil {
		zap.S().Fatalf("reply service setup failed: %v", err)
	}
	defer replier.Close()

	pipeline := ingest.NewPipeline(
		ingest.NewGormTenantResolver(application.DB()),
		ledger, events, sessions,
		replier,
		application.Bus(),
		time.Duration(cfg.Llm.TimeoutSeconds+cfg.Gateway.TimeoutSeconds)*time.Second,
	)

	server := webserver.Init(cfg, application.DB())
	adminapi.Init(&adminapi.Deps{
		Config:   cfg,
		Pipeline: pipeline,
		Sweeper:  application.Sweeper(),
		Sessions: sessions,
		Gateway:  gw,
		Bus:      application.Bus(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("server exited: %v", err)
		os.Exit(1)
	}
}
