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

package common

import (
	"context"
	"log"
	"strings"

	"oxapay-wallet-go/internal/api"
	"oxapay-wallet-go/internal/database"
	"oxapay-wallet-go/internal/ledger"
	"oxapay-wallet-go/internal/models"
	"oxapay-wallet-go/internal/orders"
	"oxapay-wallet-go/internal/oxapay"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService     *database.Service
	Engine        *ledger.Engine
	OrderService  *orders.Service
	WalletService *api.WalletService
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Loading invoice profile", zap.String("file", cfg.Listener.InvoiceFile))
	profile, err := LoadInvoiceProfile(cfg.Listener.InvoiceFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	zap.L().Info("Creating OxaPay client", zap.String("base_url", cfg.OxaPay.BaseURL))
	provider, err := oxapay.NewClient(cfg.OxaPay)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	engine := ledger.NewEngine(dbService)
	orderService := orders.NewService(engine, dbService, provider, orders.Config{
		Profile:     profile,
		CallbackURL: cfg.OxaPay.CallbackURL,
		Retention:   cfg.Listener.OrderRetention,
	})

	return &Services{
		DbService:     dbService,
		Engine:        engine,
		OrderService:  orderService,
		WalletService: api.NewWalletService(engine, orderService, dbService),
	}, nil
}

// InitializeDatabaseOnly initializes just the database service without the provider client
// Useful for ledger-only operations like balance reports and transfers
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	return database.NewService(ctx, cfg.Database)
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
