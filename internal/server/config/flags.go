package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/brainy/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string       HTTP bind address (e.g., ":8080")
//	-d string       PostgreSQL DSN
//	-s string       access token HMAC secret
//	-t duration     access token ttl
//	-r duration     refresh token ttl
//	-x duration     password reset token ttl
//	-debug          debug posture
//	-bcrypt-cost    bcrypt work factor
//	-sweep duration expired-token sweep interval (0 disables)
//	-migrate        apply migrations on startup
//
// args are filtered with flagx.FilterArgs first, so flags owned by other
// loaders (-c, -env) do not cause parse errors.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{
		"-a", "-d", "-s", "-t", "-r", "-x", "-debug", "-bcrypt-cost", "-sweep", "-migrate",
	})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "access token signing secret")
	fs.DurationVar(&config.AccessTokenTTL, "t", config.AccessTokenTTL, "access token ttl")
	fs.DurationVar(&config.RefreshTokenTTL, "r", config.RefreshTokenTTL, "refresh token ttl")
	fs.DurationVar(&config.ResetTokenTTL, "x", config.ResetTokenTTL, "password reset token ttl")
	fs.BoolVar(&config.Debug, "debug", config.Debug, "debug posture")
	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost")
	fs.DurationVar(&config.SweepInterval, "sweep", config.SweepInterval, "expired token sweep interval")
	fs.BoolVar(&config.RunMigrations, "migrate", config.RunMigrations, "run migrations on startup")

	return fs.Parse(args)
}
