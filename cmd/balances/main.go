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
	"oxapay-wallet-go/internal/ledger"
	"oxapay-wallet-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalAccounts    int
	fundedAccounts   int
	totalBalance     int64
	mismatchAccounts int
}

func printAccountHeader(account models.Account, history models.TransactionPage) {
	fmt.Printf("\n┌─ User: %s\n", account.UserId)
	fmt.Printf("│  Balance: %s (v%d, updated: %s)\n",
		common.FormatAmount(account.Balance),
		account.Version,
		account.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("│  Transactions: %d (page %d/%d)\n", history.Total, history.Page, history.TotalPages)
	common.PrintBoxSeparator(78)
}

func printEntries(entries []models.TransactionEntry) {
	for i, entry := range entries {
		isLast := i == len(entries)-1
		fmt.Printf("%s %s\n", common.BoxPrefix(isLast), common.FormatEntry(entry))
	}
}

func processAccount(ctx context.Context, account models.Account, engine *ledger.Engine, page int, logger *zap.Logger) (bool, error) {
	history, err := engine.GetTransactionPage(ctx, account.UserId, page, ledger.DefaultPageSize)
	if err != nil {
		return false, fmt.Errorf("failed to get history: %w", err)
	}

	printAccountHeader(account, history)
	printEntries(history.Entries)

	if err := engine.Reconcile(ctx, account.UserId); err != nil {
		fmt.Printf("└  RECONCILIATION FAILED: %v\n", err)
		logger.Warn("Account does not reconcile", zap.String("user_id", account.UserId), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func processAccountsAndGenerateReport(ctx context.Context, accounts []models.Account, engine *ledger.Engine, page int, logger *zap.Logger) balanceStats {
	stats := balanceStats{}

	for _, account := range accounts {
		stats.totalAccounts++
		stats.totalBalance += account.Balance
		if account.Balance > 0 {
			stats.fundedAccounts++
		}

		reconciled, err := processAccount(ctx, account, engine, page, logger)
		if err != nil {
			logger.Error("Failed to process account",
				zap.String("user_id", account.UserId),
				zap.Error(err))
			continue
		}
		if !reconciled {
			stats.mismatchAccounts++
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	userFlag := flag.String("user", "", "Filter by specific user id (optional)")
	pageFlag := flag.Int("page", 1, "History page to show for each account")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only report, the provider client is not needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	accounts, err := common.InitializeAccounts(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize accounts", zap.Error(err))
	}

	common.PrintHeader("WALLET BALANCE REPORT", common.DefaultWidth)

	stats := processAccountsAndGenerateReport(ctx, accounts, ledger.NewEngine(dbService), *pageFlag, logger)

	summary := fmt.Sprintf("SUMMARY: %d accounts, %d funded, %s held, %d failing reconciliation",
		stats.totalAccounts, stats.fundedAccounts, common.FormatAmount(stats.totalBalance), stats.mismatchAccounts)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("accounts_queried", stats.totalAccounts),
		zap.Int("funded_accounts", stats.fundedAccounts),
		zap.Int("mismatch_accounts", stats.mismatchAccounts))
}
