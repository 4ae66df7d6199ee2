package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/in/grpc"
	journal_adapter "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/out/journal"
	memory_adapter "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/config"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-bank/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to a .yaml or .toml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. 載入設定
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	limits, err := cfg.Limits()
	if err != nil {
		return err
	}
	ttl, err := cfg.IdempotencyTTL()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// 引擎在 gRPC server 停止後才關閉，讓進行中的請求能完成
	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()

	// 2. 交易日誌 (可關閉)
	var j memory_adapter.Journal
	if cfg.Journal.Path != "" {
		journalFile, err := journal_adapter.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		// 程式結束時關閉 journal
		defer journalFile.Close()
		// 先稽核既有紀錄，內容不一致就不啟動
		audit, err := journalFile.Verify()
		if err != nil {
			return fmt.Errorf("verify journal %s: %w", cfg.Journal.Path, err)
		}
		j = journalFile
		log.Info("journal enabled",
			zap.String("path", cfg.Journal.Path),
			zap.Int("records", audit.Records),
			zap.Int("runs", audit.Runs),
		)
	}

	// 3. 選擇帳本引擎
	var usedLedger usecase.Ledger
	switch cfg.Ledger.Engine {
	case config.EngineMutex:
		mutexLedger, err := memory_adapter.NewMutexLedger(limits, j)
		if err != nil {
			return fmt.Errorf("init MutexLedger: %w", err)
		}
		usedLedger = mutexLedger
	case config.EngineLMAX:
		lmaxLedger, err := memory_adapter.NewLMAXLedger(limits, j)
		if err != nil {
			return fmt.Errorf("init LMAXLedger: %w", err)
		}
		lmaxLedger.Start(engineCtx)
		usedLedger = lmaxLedger
	default:
		return fmt.Errorf("invalid ledger engine: %s", cfg.Ledger.Engine)
	}
	log.Info("ledger ready",
		zap.String("engine", cfg.Ledger.Engine),
		zap.String("max_deposit", limits.MaxDeposit.String()),
		zap.String("max_withdraw", limits.MaxWithdraw.String()),
		zap.String("max_outstanding", limits.MaxOutstanding.String()),
	)

	// 4. 初始化 UseCase
	coreUseCase, err := usecase.NewCoreUseCase(usedLedger,
		usecase.WithLogger(log.Named("core")),
		usecase.WithIdempotencyTTL(ttl),
	)
	if err != nil {
		return err
	}

	// 5. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpc_adapter.RecoveryInterceptor(log.Named("grpc")),
		grpc_adapter.LoggingInterceptor(log.Named("grpc")),
		grpc_adapter.RateLimitInterceptor(rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)),
	))
	grpc_adapter.NewGrpcServer(coreUseCase).Register(s)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting gRPC server", zap.String("addr", cfg.Server.Addr))
		serveErr <- s.Serve(lis)
	}()

	// Graceful Shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	}

	s.GracefulStop()
	stopEngine()
	if lmaxLedger, ok := usedLedger.(*memory_adapter.LMAXLedger); ok {
		<-lmaxLedger.Done()
	}
	log.Info("server exited")
	return nil
}
