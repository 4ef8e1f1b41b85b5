package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"marginledger/config"
	"marginledger/internal/adapters/binanceclient"
	"marginledger/internal/adapters/logger"
	"marginledger/internal/adapters/memstore"
	"marginledger/internal/adapters/notify"
	"marginledger/internal/adapters/sqlite"
	"marginledger/internal/ledger"
	"marginledger/internal/ports"
	"marginledger/internal/risk"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Position Store. The backing mode is a startup-time
	// decision: durable sqlite normally, the volatile store for dry runs.
	var store ports.PositionStore
	if cfg.DryRun {
		store = memstore.NewStore()
		appLogger.Info(context.Background(), "Using in-memory position store (dry run)")
	} else {
		sqliteStore, err := sqlite.NewStore(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position store")
			log.Fatalf("FATAL: Failed to initialize position store: %v", err)
		}
		store = sqliteStore
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing position store")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	exchange, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 5. Initialize Ledger Service
	service, err := ledger.New(
		ledger.Config{
			Exchange:      cfg.Exchange,
			StakeCurrency: cfg.StakeCurrency,
			FeeOpen:       cfg.FeeOpen,
			FeeClose:      cfg.FeeClose,
			InterestRate:  cfg.InterestRate,
			InterestMode:  cfg.InterestMode,
			Stoploss:      cfg.Stoploss,
		},
		appLogger,
		store,
		notify.NewLogNotifier(appLogger),
		risk.NewManager(risk.Config{
			MaxLeverage:    cfg.MaxLeverage,
			MaxStakeAmount: cfg.MaxStakeAmount,
			MaxOpenTrades:  cfg.MaxOpenTrades,
		}),
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize ledger service")
		log.Fatalf("FATAL: Failed to initialize ledger service: %v", err)
	}
	appLogger.Info(context.Background(), "Ledger service initialized")

	if err := run(cfg, appLogger, exchange, service); err != nil {
		appLogger.Error(context.Background(), err, "Ledger exited with error")
		log.Fatalf("FATAL: Ledger exited with error: %v", err)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}

// run polls the ticker and feeds prices into the stop-loss manager until a
// shutdown signal arrives. Order placement for stopped trades stays with the
// external execution collaborator; hits are only surfaced here.
func run(cfg *config.Config, appLogger ports.Logger, exchange ports.ExchangeClient, service *ledger.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLogger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	if err := exchange.Ping(ctx); err != nil {
		appLogger.Warn(ctx, "Exchange not reachable at startup; continuing", map[string]interface{}{"reason": err.Error()})
	}

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rate, err := exchange.GetCurrentRate(ctx, cfg.Pair)
			if err != nil {
				appLogger.Warn(ctx, "Failed to fetch current rate", map[string]interface{}{"pair": cfg.Pair, "reason": err.Error()})
				continue
			}
			stopped, err := service.OnPriceTick(ctx, cfg.Pair, rate)
			if err != nil {
				appLogger.Error(ctx, err, "Price tick processing failed", map[string]interface{}{"pair": cfg.Pair})
				continue
			}
			for _, trade := range stopped {
				appLogger.Warn(ctx, "Trade hit its stop-loss; exit order required", map[string]interface{}{
					"tradeID": trade.ID, "pair": trade.Pair, "stopLoss": trade.StopLoss, "rate": rate,
				})
			}
		}
	}
}
