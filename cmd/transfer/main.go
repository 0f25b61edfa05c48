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
	"errors"
	"flag"
	"fmt"

	"oxapay-wallet-go/internal/common"
	"oxapay-wallet-go/internal/config"
	"oxapay-wallet-go/internal/ledger"
	"oxapay-wallet-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	fromFlag := flag.String("from", "", "Sending user id (required)")
	toFlag := flag.String("to", "", "Receiving user id (required)")
	amountFlag := flag.Int64("amount", 0, "Amount in whole units (required)")
	flag.Parse()

	if *fromFlag == "" || *toFlag == "" {
		flag.Usage()
		logger.Fatal("Both -from and -to are required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	engine := ledger.NewEngine(dbService)
	result, err := engine.Transfer(ctx, *fromFlag, *toFlag, *amountFlag)
	switch {
	case errors.Is(err, store.ErrInsufficientBalance):
		fmt.Println("Insufficient balance")
		return
	case errors.Is(err, store.ErrSelfTransfer):
		fmt.Println("Cannot transfer to yourself")
		return
	case errors.Is(err, store.ErrInvalidAmount):
		fmt.Println("Amount must be a positive whole number")
		return
	case err != nil:
		logger.Fatal("Transfer failed", zap.Error(err))
	}

	fmt.Printf("Successfully transferred %s to %s\n", common.FormatAmount(*amountFlag), *toFlag)
	fmt.Printf("  %s balance: %s\n", *fromFlag, common.FormatAmount(result.FromBalance))
	fmt.Printf("  %s balance: %s\n", *toFlag, common.FormatAmount(result.ToBalance))
}
