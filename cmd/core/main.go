package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	rest_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/rest"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// LedgerMode 設定使用哪種帳本實作
const (
	LedgerModeMySQL  = "mysql"
	LedgerModeMemory = "memory"
)

type Config struct {
	Ledger struct {
		// Mode: "mysql" (正式) 或 "memory" (單機開發，WAL 持久化)
		Mode string `yaml:"mode"`
		// WALPath: memory 模式的 WAL 檔案路徑
		WALPath string         `yaml:"wal_path"`
		Posting usecase.Config `yaml:"posting"`
	} `yaml:"ledger"`
	Server struct {
		// Addr: 核心 API 監聽位址
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	MySQL   mysql.Config   `yaml:"mysql"`
	Logging logging.Config `yaml:"logging"`
	Metrics struct {
		// Addr: Prometheus /metrics 監聽位址
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

func main() {
	// 1. 載入設定
	cfg := loadConfig()

	// 2. 初始化 Logger
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 3. 初始化 MySQL Client (Base Infrastructure)
	dbClient, err := mysql.NewClient(cfg.MySQL, logger)
	if err != nil {
		logger.Fatal("failed to connect to mysql", zap.Error(err))
	}
	defer dbClient.Close()
	logger.Info("connected to mysql")

	ledgerRepo := mysql_adapter.NewMySQLLedger(dbClient)

	// 4. 選擇帳本實作
	var usedLedger usecase.Ledger
	switch cfg.Ledger.Mode {
	case LedgerModeMySQL, "":
		usedLedger = ledgerRepo
	case LedgerModeMemory:
		// memory 模式: 從 MySQL 載入初始帳戶，之後的過帳走記憶體 + WAL
		accounts, err := ledgerRepo.LoadAllAccounts(context.Background())
		if err != nil {
			logger.Fatal("failed to load accounts", zap.Error(err))
		}
		logger.Info("loaded accounts", zap.Int("count", len(accounts)))

		walFile, err := wal.Open(cfg.Ledger.WALPath)
		if err != nil {
			logger.Fatal("failed to open wal", zap.Error(err))
		}
		defer walFile.Close()

		memoryLedger, err := memory_adapter.NewMemoryLedger(accounts, walFile)
		if err != nil {
			logger.Fatal("failed to init memory ledger", zap.Error(err))
		}
		usedLedger = memoryLedger
	default:
		logger.Fatal("invalid ledger mode", zap.String("mode", cfg.Ledger.Mode))
	}

	// 5. 初始化 Metrics 與 UseCase
	m := metrics.New(prometheus.DefaultRegisterer)
	ledgerUseCase := usecase.NewLedgerUseCase(usedLedger, logger, m, cfg.Ledger.Posting)
	statementUseCase := usecase.NewStatementUseCase(usedLedger, logger, m)

	// 6. 初始化 REST Adapter (Driving Adapter)
	// 身分驗證 / 授權 / 限流由外部 gateway 處理，這裡只掛核心端點
	restServer := rest_adapter.NewServer(ledgerUseCase, statementUseCase, logger)
	apiServer := &http.Server{Addr: cfg.Server.Addr, Handler: restServer.Routes()}

	// 7. 啟動 Metrics / Health endpoint
	opsMux := http.NewServeMux()
	opsMux.Handle("/metrics", promhttp.Handler())
	opsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	opsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: opsMux}

	go func() {
		logger.Info("api server listening", zap.String("addr", cfg.Server.Addr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", cfg.Metrics.Addr))
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics endpoint failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown", zap.Error(err))
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics endpoint shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

func loadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfgData, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// 補全預設配置 (如果 yaml 沒寫)
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Ledger.WALPath == "" {
		cfg.Ledger.WALPath = "wal.log"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	return cfg
}
