package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

func tokenCmd() *cobra.Command {
	var (
		secretEnv string
		subject   string
		contract  string
		functions []string
		issuer    string
		audience  string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer capability token for the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := strings.TrimSpace(os.Getenv(secretEnv))
			if secret == "" {
				return fmt.Errorf("%s must hold the gateway JWT secret", secretEnv)
			}
			grant, err := buildGrant(subject, contract, functions)
			if err != nil {
				return err
			}
			tv := auth.NewTokenVerifier(auth.TokenConfig{HMACSecret: secret, Issuer: issuer, Audience: audience})
			token, err := tv.Issue(grant, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secretEnv, "secret-env", "SINKD_JWT_SECRET", "Environment variable holding the HMAC secret")
	cmd.Flags().StringVar(&subject, "subject", "", "Account address the token authorizes")
	cmd.Flags().StringVar(&contract, "contract", "", "Restrict the grant to one contract")
	cmd.Flags().StringSliceVar(&functions, "functions", []string{"*"}, "Contract functions covered by the grant")
	cmd.Flags().StringVar(&issuer, "issuer", "", "iss claim, must match the gateway")
	cmd.Flags().StringVar(&audience, "audience", "", "aud claim, must match the gateway")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func buildGrant(subject, contract string, functions []string) (auth.Grant, error) {
	sub, err := crypto.DecodeAddress(subject)
	if err != nil {
		return auth.Grant{}, fmt.Errorf("--subject: %w", err)
	}
	grant := auth.Grant{Subject: sub}
	if strings.TrimSpace(contract) != "" {
		if grant.Contract, err = crypto.DecodeAddress(contract); err != nil {
			return auth.Grant{}, fmt.Errorf("--contract: %w", err)
		}
	}
	for _, fn := range functions {
		if fn = strings.TrimSpace(fn); fn != "" {
			grant.Functions = append(grant.Functions, fn)
		}
	}
	if len(grant.Functions) == 0 {
		return auth.Grant{}, fmt.Errorf("--functions must name at least one function")
	}
	return grant, nil
}
