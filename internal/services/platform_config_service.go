package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tokensim/backend/internal/logger"
	"github.com/tokensim/backend/internal/models"
	"github.com/tokensim/backend/internal/storage"
)

var maxFeePercentage = decimal.NewFromInt(100)

// UpdatePlatformConfigRequest patches the platform settings. Absent fields are
// left unchanged; a null RPC URL clears it.
type UpdatePlatformConfigRequest struct {
	TransactionFeePercentage *decimal.Decimal      `json:"transaction_fee_percentage,omitempty"`
	DefaultTokenSupply       *decimal.Decimal      `json:"default_token_supply,omitempty"`
	DefaultTokenPrice        *decimal.Decimal      `json:"default_token_price,omitempty"`
	EthereumRPCURL           models.NullableString `json:"ethereum_rpc_url" validate:"omitempty,url"`
	MainnetRPCURL            models.NullableString `json:"mainnet_rpc_url" validate:"omitempty,url"`
}

func (r UpdatePlatformConfigRequest) validate() error {
	if fee := r.TransactionFeePercentage; fee != nil {
		if fee.IsNegative() || fee.GreaterThan(maxFeePercentage) || !models.FitsScale(*fee) {
			return fmt.Errorf("%w: transaction_fee_percentage must be between 0 and 100", ErrInvalidRequest)
		}
	}
	if supply := r.DefaultTokenSupply; supply != nil && (!supply.IsPositive() || !models.FitsPrecision(*supply)) {
		return fmt.Errorf("%w: default_token_supply must be positive", ErrInvalidRequest)
	}
	if price := r.DefaultTokenPrice; price != nil && (!price.IsPositive() || !models.FitsPrecision(*price)) {
		return fmt.Errorf("%w: default_token_price must be positive", ErrInvalidRequest)
	}
	return nil
}

type PlatformConfigService struct {
	store storage.ConfigStore
}

func NewPlatformConfigService(store storage.ConfigStore) *PlatformConfigService {
	return &PlatformConfigService{store: store}
}

func (s *PlatformConfigService) GetPlatformConfig(ctx context.Context) (*models.PlatformConfig, error) {
	cfg, err := s.store.GetPlatformConfig(ctx)
	if err != nil {
		return nil, lookupError(err, ErrConfigNotFound)
	}
	return cfg, nil
}

// UpdatePlatformConfig creates the settings row with defaults if it is missing, then applies req.
func (s *PlatformConfigService) UpdatePlatformConfig(ctx context.Context, req UpdatePlatformConfigRequest) (*models.PlatformConfig, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	// A concurrent first save wins the single row; apply req on top of it.
	var cfg *models.PlatformConfig
	for attempt := 0; ; attempt++ {
		var err error
		cfg, err = s.store.GetPlatformConfig(ctx)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			cfg = &models.PlatformConfig{
				TransactionFeePercentage: models.DefaultTransactionFeePercentage,
				DefaultTokenSupply:       models.DefaultTokenSupply,
				DefaultTokenPrice:        models.DefaultConfigTokenPrice,
			}
		case err != nil:
			return nil, storageError(err)
		}

		req.applyTo(cfg)

		err = s.store.SavePlatformConfig(ctx, cfg)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrDuplicate) && cfg.ID == 0 && attempt == 0 {
			continue
		}
		return nil, storageError(err)
	}

	logger.Infof("[CONFIG] Platform configuration saved (fee=%s%%, supply=%s, price=%s)",
		cfg.TransactionFeePercentage, cfg.DefaultTokenSupply, cfg.DefaultTokenPrice)
	return cfg, nil
}

func (r UpdatePlatformConfigRequest) applyTo(cfg *models.PlatformConfig) {
	if r.TransactionFeePercentage != nil {
		cfg.TransactionFeePercentage = *r.TransactionFeePercentage
	}
	if r.DefaultTokenSupply != nil {
		cfg.DefaultTokenSupply = *r.DefaultTokenSupply
	}
	if r.DefaultTokenPrice != nil {
		cfg.DefaultTokenPrice = *r.DefaultTokenPrice
	}
	if r.EthereumRPCURL.Set {
		cfg.EthereumRPCURL = r.EthereumRPCURL.Ptr()
	}
	if r.MainnetRPCURL.Set {
		cfg.MainnetRPCURL = r.MainnetRPCURL.Ptr()
	}
}
