/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oxapay-wallet-go/internal/api"
	"oxapay-wallet-go/internal/common"
	"oxapay-wallet-go/internal/config"
	"oxapay-wallet-go/internal/listener"

	"go.uber.org/zap"
)

func main() {
	noApi := flag.Bool("no-api", false, "Do not start the provider callback API")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting OxaPay settlement listener")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	l := listener.NewSettlementListener(listener.SettlementListenerConfig{
		Orders:          services.OrderService,
		PollingInterval: cfg.Listener.PollingInterval,
		CleanupInterval: cfg.Listener.CleanupInterval,
		OrderRetention:  cfg.Listener.OrderRetention,
		MaxConcurrency:  cfg.Listener.MaxConcurrency,
	})
	if err := l.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start settlement listener", zap.Error(err))
	}

	var server *api.Server
	if cfg.Api.Enabled && !*noApi {
		server = api.NewServer(services.WalletService, cfg.Api, cfg.OxaPay.MerchantKey)
		go func() {
			if err := server.Start(); err != nil {
				zap.L().Error("Callback API stopped", zap.Error(err))
				cancel()
			}
		}()
	}

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Callback API shutdown failed", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Settlement listener stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
