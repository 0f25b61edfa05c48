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

package database

const (
	// Account queries
	queryInsertAccount = `
		INSERT OR IGNORE INTO accounts (user_id, balance, version, created_at, updated_at)
		VALUES (?, 0, 1, ?, ?)`

	queryGetAccount = `
		SELECT user_id, balance, version, created_at, updated_at
		FROM accounts
		WHERE user_id = ?`

	queryListAccounts = `
		SELECT user_id, balance, version, created_at, updated_at
		FROM accounts
		ORDER BY created_at, user_id`

	queryGetAccountBalance = `
		SELECT balance, version
		FROM accounts
		WHERE user_id = ?`

	queryUpdateAccountBalance = `
		UPDATE accounts
		SET balance = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO account_transactions (
			id, user_id, transaction_type, amount, order_id, counterparty,
			balance_before, balance_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactions = `
		SELECT id, user_id, transaction_type, amount, order_id, counterparty,
		       balance_before, balance_after, created_at
		FROM account_transactions
		WHERE user_id = ?
		ORDER BY seq ASC`

	queryGetTransactionPage = `
		SELECT id, user_id, transaction_type, amount, order_id, counterparty,
		       balance_before, balance_after, created_at
		FROM account_transactions
		WHERE user_id = ?
		ORDER BY seq ASC
		LIMIT ? OFFSET ?`

	queryCountTransactions = `
		SELECT COUNT(*) FROM account_transactions WHERE user_id = ?`

	queryReconcileBalance = `
		SELECT COALESCE(SUM(CASE
			WHEN transaction_type IN ('add', 'transfer-in') THEN amount
			ELSE -amount
		END), 0) AS calculated_balance
		FROM account_transactions
		WHERE user_id = ?`

	// Order queries
	queryInsertOrder = `
		INSERT INTO orders (order_id, user_id, amount, is_paid, created_at)
		VALUES (?, ?, ?, 0, ?)`

	queryGetOrder = `
		SELECT order_id, user_id, amount, is_paid, created_at, paid_at, expired_at
		FROM orders
		WHERE order_id = ?`

	queryMarkOrderPaid = `
		UPDATE orders
		SET is_paid = 1, paid_at = ?
		WHERE order_id = ? AND user_id = ? AND is_paid = 0`

	queryMarkOrderExpired = `
		UPDATE orders
		SET expired_at = ?
		WHERE order_id = ? AND is_paid = 0 AND expired_at IS NULL`

	queryListPendingOrders = `
		SELECT order_id, user_id, amount, is_paid, created_at, paid_at, expired_at
		FROM orders
		WHERE is_paid = 0 AND expired_at IS NULL
		ORDER BY created_at ASC, order_id ASC
		LIMIT ?`

	queryPurgeExpiredOrders = `
		DELETE FROM orders
		WHERE is_paid = 0 AND created_at < ?`
)
