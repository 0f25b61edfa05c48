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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"oxapay-wallet-go/internal/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// DefaultInvoiceProfile matches the invoices the deposit flow has always
// created: two hour lifetime with the fee paid by the payer.
func DefaultInvoiceProfile() models.InvoiceProfile {
	return models.InvoiceProfile{
		LifeTime:       120,
		FeePaidByPayer: true,
		Description:    "Wallet deposit",
		MinAmount:      1,
	}
}

type invoiceFile struct {
	Invoice models.InvoiceProfile `yaml:"invoice"`
}

// LoadInvoiceProfile reads the invoice profile from a YAML file. A missing
// file yields the default profile.
func LoadInvoiceProfile(invoiceFilePath string) (models.InvoiceProfile, error) {
	path := invoiceFilePath
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return models.InvoiceProfile{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, path)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("Invoice profile not found, using defaults", zap.String("file", invoiceFilePath))
		return DefaultInvoiceProfile(), nil
	}
	if err != nil {
		return models.InvoiceProfile{}, fmt.Errorf("unable to read %s: %w", invoiceFilePath, err)
	}

	file := invoiceFile{Invoice: DefaultInvoiceProfile()}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return models.InvoiceProfile{}, fmt.Errorf("unable to parse %s: %w", invoiceFilePath, err)
	}

	if err := validator.New().Struct(file.Invoice); err != nil {
		return models.InvoiceProfile{}, fmt.Errorf("invalid invoice profile in %s: %w", invoiceFilePath, err)
	}

	return file.Invoice, nil
}
