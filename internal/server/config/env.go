package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables understood by parseEnv.
const (
	EnvHTTPAddr        = "HTTP_ADDR"
	EnvDatabaseDSN     = "DATABASE_DSN"
	EnvSecretKey       = "JWT_SECRET"
	EnvDebugMode       = "DEBUG_MODE"
	EnvAccessTokenTTL  = "ACCESS_TOKEN_TTL"
	EnvRefreshTokenTTL = "REFRESH_TOKEN_TTL"
	EnvResetTokenTTL   = "RESET_TOKEN_TTL"
	EnvBcryptCost      = "BCRYPT_COST"
)

// parseEnv overlays values from the dotenv file at path and from the process
// environment. Process variables win over the file. A missing file is not an
// error. lookup is os.LookupEnv outside tests.
func parseEnv(cfg *Config, path string, lookup func(string) (string, bool)) error {
	file := map[string]string{}
	if path != "" {
		m, err := godotenv.Read(path)
		switch {
		case err == nil:
			file = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}

	if v, ok := get(EnvHTTPAddr); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := get(EnvDatabaseDSN); ok {
		cfg.DatabaseDSN = v
	}
	if v, ok := get(EnvSecretKey); ok {
		cfg.SecretKey = v
	}
	if v, ok := get(EnvDebugMode); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebugMode, err)
		}
		cfg.Debug = b
	}
	if v, ok := get(EnvBcryptCost); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBcryptCost, err)
		}
		cfg.BcryptCost = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvAccessTokenTTL, &cfg.AccessTokenTTL},
		{EnvRefreshTokenTTL, &cfg.RefreshTokenTTL},
		{EnvResetTokenTTL, &cfg.ResetTokenTTL},
	}
	for _, d := range durations {
		v, ok := get(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}
