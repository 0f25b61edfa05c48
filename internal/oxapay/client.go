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

// Package oxapay is a thin client for the OxaPay merchant invoice API.
package oxapay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"oxapay-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	pathRequest = "/merchants/request"
	pathInquiry = "/merchants/inquiry"

	resultSuccess = 100
	// resultInvalidTrack is returned for expired or unknown invoices.
	resultInvalidTrack = 116
)

var ErrProviderRejected = errors.New("invoice provider rejected request")

type Client struct {
	baseURL     string
	merchantKey string
	httpClient  http.Client
}

func NewClient(cfg models.OxaPayConfig) (*Client, error) {
	if cfg.MerchantKey == "" {
		return nil, fmt.Errorf("missing required OxaPay credentials: OXAPAY_MERCHANT_KEY")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("OxaPay base url cannot be empty")
	}

	httpClient, err := createCustomHttpClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create http client: %w", err)
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		merchantKey: cfg.MerchantKey,
		httpClient:  httpClient,
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type invoiceRequest struct {
	Merchant       string `json:"merchant"`
	Amount         int64  `json:"amount"`
	LifeTime       int    `json:"lifeTime,omitempty"`
	FeePaidByPayer int    `json:"feePaidByPayer"`
	CallbackURL    string `json:"callbackUrl,omitempty"`
	Description    string `json:"description,omitempty"`
}

type invoiceResponse struct {
	Result  int    `json:"result"`
	Message string `json:"message"`
	TrackId string `json:"trackId"`
	PayLink string `json:"payLink"`
}

type inquiryRequest struct {
	Merchant string `json:"merchant"`
	TrackId  string `json:"trackId"`
}

type inquiryResponse struct {
	Result  int              `json:"result"`
	Message string           `json:"message"`
	TrackId string           `json:"trackId"`
	Status  string           `json:"status"`
	Amount  *decimal.Decimal `json:"amount"`
}

// CreateInvoice opens a payment invoice and returns its track id and pay link.
func (c *Client) CreateInvoice(ctx context.Context, req models.InvoiceRequest) (*models.Invoice, error) {
	body := invoiceRequest{
		Merchant:    c.merchantKey,
		Amount:      req.Amount,
		LifeTime:    req.LifeTime,
		CallbackURL: req.CallbackURL,
		Description: req.Description,
	}
	if req.FeePaidByPayer {
		body.FeePaidByPayer = 1
	}

	var response invoiceResponse
	if err := c.post(ctx, pathRequest, body, &response); err != nil {
		return nil, fmt.Errorf("unable to create invoice: %w", err)
	}
	if response.Result != resultSuccess {
		return nil, fmt.Errorf("%w: result %d: %s", ErrProviderRejected, response.Result, response.Message)
	}
	if response.TrackId == "" {
		return nil, fmt.Errorf("%w: response has no track id", ErrProviderRejected)
	}

	zap.L().Info("Invoice created",
		zap.String("track_id", response.TrackId),
		zap.Int64("amount", req.Amount))

	return &models.Invoice{TrackId: response.TrackId, PayLink: response.PayLink}, nil
}

// PaymentInfo returns the invoice's payment status. An invalid or expired track
// id is reported as an expired invoice; any other failure result is an error.
func (c *Client) PaymentInfo(ctx context.Context, trackId string) (*models.PaymentInfo, error) {
	var response inquiryResponse
	if err := c.post(ctx, pathInquiry, inquiryRequest{Merchant: c.merchantKey, TrackId: trackId}, &response); err != nil {
		return nil, fmt.Errorf("unable to query payment %s: %w", trackId, err)
	}

	switch response.Result {
	case resultSuccess:
	case resultInvalidTrack:
		return &models.PaymentInfo{TrackId: trackId, Status: models.PaymentExpired}, nil
	default:
		zap.L().Warn("Unexpected inquiry result",
			zap.String("track_id", trackId),
			zap.Int("result", response.Result),
			zap.String("message", response.Message))
		return nil, fmt.Errorf("%w: result %d: %s", ErrProviderRejected, response.Result, response.Message)
	}

	info := &models.PaymentInfo{
		TrackId: trackId,
		Status:  ParseStatus(response.Status),
	}
	if response.Amount != nil {
		info.Amount = WholeUnits(*response.Amount)
	}

	zap.L().Debug("Payment info retrieved",
		zap.String("track_id", trackId),
		zap.String("status", response.Status),
		zap.Int64("amount", info.Amount))
	return info, nil
}

// ParseStatus maps a provider status string onto the order state machine.
func ParseStatus(status string) models.PaymentStatus {
	switch strings.ToLower(status) {
	case "paid":
		return models.PaymentPaid
	case "expired", "canceled", "cancelled":
		return models.PaymentExpired
	default:
		return models.PaymentPending
	}
}

// WholeUnits truncates a provider amount to whole currency units.
func WholeUnits(amount decimal.Decimal) int64 {
	return amount.Floor().IntPart()
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("unable to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("unable to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unable to decode response: %w", err)
	}
	return nil
}
