package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	httpx "github.com/Camiloez/postboard/internal/http"
	"github.com/Camiloez/postboard/internal/stack"
	"github.com/Camiloez/postboard/pkg/jwt"
)

func configCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved stack descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.loadStack()
			if err != nil {
				return err
			}
			data, err := st.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func validateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the stack descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.loadStack()
			var invalid *stack.InvalidError
			if errors.As(err, &invalid) {
				for _, p := range invalid.Problems {
					printf(cmd.ErrOrStderr(), "- %s\n", p)
				}
				return fmt.Errorf("%s: %d problem(s)", a.file, len(invalid.Problems))
			}
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "OK\n")
			return nil
		},
	}
}

func tokenCmd(a *app) *cobra.Command {
	var subject, secret string
	var ttl time.Duration

	c := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API write routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("no signing secret: set API_AUTH_SECRET or pass --secret")
			}
			issuer, err := jwt.NewIssuer(secret, ttl)
			if err != nil {
				return err
			}
			token, err := issuer.Mint(subject, httpx.ScopeWrite)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", token)
			return nil
		},
	}

	c.Flags().StringVar(&subject, "subject", "devstack", "token subject")
	c.Flags().StringVar(&secret, "secret", a.cfg.AuthSecret, "signing secret")
	c.Flags().DurationVar(&ttl, "ttl", a.cfg.TokenTTL, "token lifetime")
	return c
}
