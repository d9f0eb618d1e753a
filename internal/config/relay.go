package config

import (
	"errors"
	"fmt"

	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/gagliardetto/solana-go"
)

const RELAY_CONFIG_KEY = "relay-config"

// RelayConfig names the priority-inclusion relay's HTTP endpoints
// (internal/adapters/relay) and the tip account bundles pay into.
type RelayConfig struct {
	BundleEndpoint   string
	TipFloorEndpoint string
	TipAccount       solana.PublicKey
}

func (r *RelayConfig) Key() string {
	return RELAY_CONFIG_KEY
}

func (r *RelayConfig) Load() error {
	r.BundleEndpoint = common.GetEnvOrDefault("RELAY_BUNDLE_ENDPOINT", "")
	r.TipFloorEndpoint = common.GetEnvOrDefault("RELAY_TIP_FLOOR_ENDPOINT", "")

	tipAccount := common.GetEnvOrDefault("RELAY_TIP_ACCOUNT", "")
	if tipAccount != "" {
		key, err := solana.PublicKeyFromBase58(tipAccount)
		if err != nil {
			return fmt.Errorf("parse RELAY_TIP_ACCOUNT: %w", err)
		}
		r.TipAccount = key
	}

	return r.Validate()
}

func (r *RelayConfig) Validate() error {
	if r.BundleEndpoint == "" || r.TipFloorEndpoint == "" {
		return errors.New("relay: both RELAY_BUNDLE_ENDPOINT and RELAY_TIP_FLOOR_ENDPOINT are required")
	}
	if r.TipAccount.IsZero() {
		return errors.New("relay: RELAY_TIP_ACCOUNT is required")
	}
	return nil
}
