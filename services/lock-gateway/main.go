package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vaultlock/config"
	"vaultlock/native/lockup"
	"vaultlock/observability/logging"
	"vaultlock/observability/metrics"
	"vaultlock/observability/otel"
	"vaultlock/sdk/lockclient"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "lock-gateway.yaml", "path to the gateway configuration")
	flag.Parse()

	gwCfg, err := LoadGatewayConfig(*configPath)
	if err != nil {
		log.Fatalf("load gateway config: %v", err)
	}
	engineCfg, err := config.Load(gwCfg.EngineConfigPath)
	if err != nil {
		log.Fatalf("load engine config: %v", err)
	}

	logger := logging.Setup(logging.Options{
		Service:     "lock-gateway",
		Environment: gwCfg.Environment,
		FilePath:    gwCfg.LogFile,
	})

	ctx := context.Background()
	if gwCfg.Telemetry.Traces || gwCfg.Telemetry.Metrics {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "lock-gateway",
			Environment: gwCfg.Environment,
			Endpoint:    gwCfg.Telemetry.Endpoint,
			Insecure:    gwCfg.Telemetry.Insecure,
			Headers:     gwCfg.Telemetry.Headers,
			Traces:      gwCfg.Telemetry.Traces,
			Metrics:     gwCfg.Telemetry.Metrics,
		})
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", "error", err.Error())
			}
		}()
	}

	authToken := gwCfg.NodeAuthToken()
	clientOpts := []lockclient.Option{
		lockclient.WithTimeout(engineCfg.Timeout()),
		lockclient.WithQueryRate(engineCfg.QueryRatePerSec),
	}
	serviceClient := lockclient.NewServiceClient(engineCfg.ServiceRPCURL, authToken, clientOpts...)
	ledgerClient := lockclient.NewLedgerClient(engineCfg.LedgerRPCURL, authToken, clientOpts...)

	engine := lockup.NewEngine(lockup.Config{
		ServicePrincipal: engineCfg.Service(),
		FeeLedgerID:      engineCfg.FeeLedger(),
		FeeLedgerFee:     engineCfg.FeeLedgerFeeAmount(),
		FeeSymbol:        engineCfg.FeeSymbol,
	}, ledgerClient, serviceClient)

	progress := newProgressStore(0)
	engine.SetEmitter(fanoutEmitter{progress, metricsEmitter{lockup: metrics.Lockup()}})

	server := NewServer(engine, serviceClient, progress, logger)
	srv := &http.Server{
		Addr:              gwCfg.ListenAddress,
		Handler:           otelhttp.NewHandler(server.Router(), "lock-gateway"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("lock gateway listening", "listen", gwCfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down lock gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err.Error())
	}
}
