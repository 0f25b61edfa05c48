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
	"fmt"

	"oxapay-wallet-go/internal/common"
	"oxapay-wallet-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User id to deposit for (required)")
	amountFlag := flag.Int64("amount", 0, "Amount in whole units (required)")
	flag.Parse()

	if *userFlag == "" || *amountFlag <= 0 {
		flag.Usage()
		logger.Fatal("Both -user and a positive -amount are required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	deposit, err := services.WalletService.RequestDeposit(ctx, *userFlag, *amountFlag)
	if err != nil {
		logger.Fatal("Failed to create deposit", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("PAYMENT FOR ORDER #%s", deposit.Order.OrderId), common.DefaultWidth)
	fmt.Printf("TrackID:    %s\n", deposit.Order.OrderId)
	fmt.Printf("Amount:     %s\n", common.FormatAmount(deposit.Order.Amount))
	fmt.Printf("Status:     Pending\n")
	fmt.Printf("Pay link:   %s\n", deposit.PayLink)
	common.PrintFooter("Run the status tool or the listener to credit the payment", common.DefaultWidth)
}
