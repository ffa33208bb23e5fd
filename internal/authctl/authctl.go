// Package authctl implements the operator command line for the auth
// tables: applying migrations, purging expired tokens and setting a
// user's password from a terminal prompt.
package authctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/brainy/internal/server"
	"github.com/dmitrijs2005/brainy/internal/server/config"
)

const usage = `usage: authctl <command> [flags]

commands:
  migrate                  apply database migrations
  sweep                    delete expired refresh and reset tokens
  set-password <username>  set a password and revoke the user's sessions
`

var errUsage = errors.New("invalid usage")

// Operator is the part of services.AuthService used by authctl.
type Operator interface {
	SetPassword(ctx context.Context, username, newPassword string) error
	SweepExpired(ctx context.Context) (refresh, resets int64, err error)
}

type Runner struct {
	out     io.Writer
	migrate func(ctx context.Context) error
	open    func(ctx context.Context) (Operator, func() error, error)
}

// NewRunner returns a Runner that works against the database in cfg.
func NewRunner(cfg *config.Config, out io.Writer) *Runner {
	return &Runner{
		out: out,
		migrate: func(ctx context.Context) error {
			return server.Migrate(ctx, cfg)
		},
		open: func(ctx context.Context) (Operator, func() error, error) {
			cfg.RunMigrations = false
			cfg.SweepInterval = 0
			app, err := server.NewApp(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return app.AuthService(), app.Close, nil
		},
	}
}

// valueFlags take a separate value argument and are skipped with it when
// looking for the command words.
var valueFlags = map[string]struct{}{
	"-a": {}, "-d": {}, "-s": {}, "-t": {}, "-r": {}, "-x": {},
	"-bcrypt-cost": {}, "-sweep": {}, "-c": {}, "-config": {}, "-env": {},
}

// Positional returns the arguments that are neither flags nor flag values.
func Positional(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			out = append(out, a)
			continue
		}
		name := strings.TrimPrefix(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if _, ok := valueFlags["-"+strings.TrimPrefix(name, "-")]; ok {
			i++
		}
	}
	return out
}

// Run executes the command named by the positional arguments in args.
func (r *Runner) Run(ctx context.Context, args []string) error {
	words := Positional(args)
	if len(words) == 0 {
		fmt.Fprint(r.out, usage)
		return errUsage
	}

	switch words[0] {
	case "migrate":
		if err := r.migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(r.out, "migrations applied")
		return nil

	case "sweep":
		return r.withOperator(ctx, func(op Operator) error {
			refresh, resets, err := op.SweepExpired(ctx)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(r.out, "deleted %d expired refresh tokens and %d expired reset tokens\n", refresh, resets)
			return nil
		})

	case "set-password":
		if len(words) != 2 {
			fmt.Fprint(r.out, usage)
			return errUsage
		}
		username := words[1]
		return r.withOperator(ctx, func(op Operator) error {
			pw, err := getNewPassword(r.out)
			if err != nil {
				return err
			}
			if err := op.SetPassword(ctx, username, pw); err != nil {
				return fmt.Errorf("set password: %w", err)
			}
			fmt.Fprintf(r.out, "password updated for %s, all sessions revoked\n", username)
			return nil
		})

	case "help":
		fmt.Fprint(r.out, usage)
		return nil

	default:
		fmt.Fprint(r.out, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, words[0])
	}
}

func (r *Runner) withOperator(ctx context.Context, fn func(Operator) error) error {
	op, closeFn, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(op)
}
