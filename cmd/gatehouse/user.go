// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/holomush/gatehouse/internal/auth"
	"github.com/holomush/gatehouse/internal/auth/postgres"
	"github.com/holomush/gatehouse/internal/store"
)

// readPassword reads a line from the terminal without echo. Tests replace it.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// NewUserCmd creates the user command group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		Long: `Register a user with the same checks as the HTTP registration endpoint.
The password is prompted for twice unless --password-stdin is given, in which
case the first line of standard input is used for both.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.Store.Backend != backendPostgres {
				return oops.Code("CONFIG_INVALID").
					With("key", "store.backend").
					Errorf("user create needs the postgres store, got %q", cfg.Store.Backend)
			}
			if cfg.Store.DatabaseURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable or --database-url is required")
			}

			in, err := readRegistration(cmd)
			if err != nil {
				return err
			}

			pool, err := store.Connect(cmd.Context(), cfg.Store.DatabaseURL, store.ConnectOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			return createUser(cmd.Context(), cmd.OutOrStdout(), postgres.NewUserRepository(pool), cfg, in)
		},
	}

	f := cmd.Flags()
	f.String("name", "", "display name")
	f.String("email", "", "email address")
	f.String("location", "", "location (default: "+auth.DefaultLocation+")")
	f.Bool("password-stdin", false, "read the password from standard input")
	f.String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
	f.Int("hash-cost", auth.DefaultBcryptCost, "bcrypt work factor")
	return cmd
}

func readRegistration(cmd *cobra.Command) (auth.RegistrationInput, error) {
	f := cmd.Flags()
	var in auth.RegistrationInput
	var err error
	if in.Name, err = f.GetString("name"); err != nil {
		return in, oops.Wrap(err)
	}
	if in.Email, err = f.GetString("email"); err != nil {
		return in, oops.Wrap(err)
	}
	if in.Location, err = f.GetString("location"); err != nil {
		return in, oops.Wrap(err)
	}
	fromStdin, err := f.GetBool("password-stdin")
	if err != nil {
		return in, oops.Wrap(err)
	}

	if fromStdin {
		pw, err := readPasswordLine(cmd.InOrStdin())
		if err != nil {
			return in, err
		}
		in.Password, in.Confirm = pw, pw
		return in, nil
	}

	out := cmd.ErrOrStderr()
	if in.Password, err = promptPassword(out, "Password: "); err != nil {
		return in, err
	}
	if in.Confirm, err = promptPassword(out, "Confirm password: "); err != nil {
		return in, err
	}
	return in, nil
}

func promptPassword(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt) //nolint:errcheck // prompt is best-effort
	pw, err := readPassword()
	fmt.Fprintln(w) //nolint:errcheck // prompt is best-effort
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return string(pw), nil
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// createUser runs the registration command against users and reports the
// outcome. Every outcome other than success is an error.
func createUser(ctx context.Context, out io.Writer, users auth.UserRepository, cfg *Config, in auth.RegistrationInput) error {
	hasher, err := auth.NewBcryptHasher(cfg.Hasher.Cost)
	if err != nil {
		return err
	}
	pool, err := auth.NewHashPool(hasher, 1)
	if err != nil {
		return err
	}
	register, err := auth.NewRegisterCommand(users, pool, cfg.Store.Timeout)
	if err != nil {
		return err
	}

	res := register.Execute(ctx, in)
	if !res.OK() {
		e := oops.Code("USER_CREATE_REJECTED").With("outcome", res.Outcome.String())
		if res.Err != nil {
			return e.Wrapf(res.Err, "%s", res.Message)
		}
		return e.Errorf("%s", res.Message)
	}

	fmt.Fprintf(out, "Created user %s <%s> in %s (id %s)\n", //nolint:errcheck // best-effort report
		res.User.Name, res.User.Email, res.User.Location, res.User.ID)
	return nil
}
