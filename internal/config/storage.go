package config

import "github.com/andrew-solarstorm/go-packages/common"

// StorageConfig names the intelligence store's Postgres DSN (optional —
// empty means local-file-only mode) and the on-disk paths for the
// intelligence store's local mirror and the bundle-outcome ledger.
type StorageConfig struct {
	PostgresDSN    string
	IntelstorePath string
	LedgerPath     string
}

func (s *StorageConfig) Key() string {
	return DATABASE_CONFIG_KEY
}

func (s *StorageConfig) Load() error {
	s.PostgresDSN = common.GetEnvOrDefault("POSTGRES_DSN", "")
	s.IntelstorePath = common.GetEnvOrDefault("INTELSTORE_PATH", "./data/intelstore.db")
	s.LedgerPath = common.GetEnvOrDefault("LEDGER_PATH", "./data/ledger.db")
	return nil
}

func (s *StorageConfig) Validate() error {
	return nil
}
