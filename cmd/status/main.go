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

	userFlag := flag.String("user", "", "User id that opened the order (required)")
	orderFlag := flag.String("order", "", "Order track id (required)")
	flag.Parse()

	if *userFlag == "" || *orderFlag == "" {
		flag.Usage()
		logger.Fatal("Both -user and -order are required")
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

	status, err := services.WalletService.CheckDeposit(ctx, *userFlag, *orderFlag)
	if err != nil {
		logger.Fatal("Failed to check order status", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("PAYMENT FOR ORDER #%s", status.Order.OrderId), common.DefaultWidth)
	fmt.Printf("TrackID:    %s\n", status.Order.OrderId)
	fmt.Printf("Amount:     %s\n", common.FormatAmount(status.Order.Amount))
	fmt.Printf("Status:     %s\n", status.Status)

	if s := status.Settlement; s != nil && s.Credited() {
		common.PrintFooter(fmt.Sprintf("+%s added to wallet, new balance %s",
			common.FormatAmount(s.Amount), common.FormatAmount(s.NewBalance)), common.DefaultWidth)
		return
	}
	common.PrintFooter("No balance change", common.DefaultWidth)
}
