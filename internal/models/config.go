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

package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Listener ListenerConfig
	OxaPay   OxaPayConfig
	Api      ApiConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// ListenerConfig holds settlement listener settings
type ListenerConfig struct {
	PollingInterval time.Duration
	CleanupInterval time.Duration
	OrderRetention  time.Duration
	MaxConcurrency  int
	InvoiceFile     string
}

// OxaPayConfig holds invoice provider settings
type OxaPayConfig struct {
	BaseURL     string
	MerchantKey string
	CallbackURL string
	Timeout     time.Duration
}

// ApiConfig holds callback API settings
type ApiConfig struct {
	ListenAddr string
	Enabled    bool
}
