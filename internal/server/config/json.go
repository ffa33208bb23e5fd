package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/brainy/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Pointer fields
// distinguish "absent" from zero values so only present keys override.
type JsonConfig struct {
	HTTPAddr        *string         `json:"http_addr"`
	DatabaseDSN     *string         `json:"database_dsn"`
	SecretKey       *string         `json:"secret_key"`
	AccessTokenTTL  *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL *timex.Duration `json:"refresh_token_ttl"`
	ResetTokenTTL   *timex.Duration `json:"reset_token_ttl"`
	Debug           *bool           `json:"debug"`
	BcryptCost      *int            `json:"bcrypt_cost"`
	SweepInterval   *timex.Duration `json:"sweep_interval"`
	RunMigrations   *bool           `json:"run_migrations"`
}

// parseJSON overlays values from the JSON file at path. An empty path
// means no file was requested.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	if c.HTTPAddr != nil {
		config.HTTPAddr = *c.HTTPAddr
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.SecretKey != nil {
		config.SecretKey = *c.SecretKey
	}
	if c.AccessTokenTTL != nil {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL != nil {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.ResetTokenTTL != nil {
		config.ResetTokenTTL = c.ResetTokenTTL.Duration
	}
	if c.Debug != nil {
		config.Debug = *c.Debug
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.RunMigrations != nil {
		config.RunMigrations = *c.RunMigrations
	}
	return nil
}
