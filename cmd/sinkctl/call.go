package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func callCmd() *cobra.Command {
	var (
		token          string
		tokenEnv       string
		idempotencyKey string
	)
	cmd := &cobra.Command{
		Use:   "call <method> [params-json|@file|-]",
		Short: "Send one JSON-RPC request to sinkd and print the result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params json.RawMessage
			if len(args) == 2 {
				raw, err := readParams(cmd, args[1])
				if err != nil {
					return err
				}
				if !json.Valid(raw) {
					return fmt.Errorf("params are not valid JSON")
				}
				params = raw
			}
			if token == "" && tokenEnv != "" {
				token = os.Getenv(tokenEnv)
			}
			endpoint, _ := cmd.Flags().GetString("endpoint")
			client := newRPCClient(endpoint, token)
			client.idempotencyKey = idempotencyKey

			var result json.RawMessage
			if err := client.call(cmd.Context(), args[0], params, &result); err != nil {
				return err
			}
			var pretty interface{}
			if err := json.Unmarshal(result, &pretty); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pretty)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer capability token")
	cmd.Flags().StringVar(&tokenEnv, "token-env", "SINKCTL_TOKEN", "Environment variable holding the bearer token")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header for mutating calls")
	return cmd
}

func readParams(cmd *cobra.Command, arg string) ([]byte, error) {
	switch {
	case arg == "-":
		var raw json.RawMessage
		if err := json.NewDecoder(cmd.InOrStdin()).Decode(&raw); err != nil {
			return nil, fmt.Errorf("read params from stdin: %w", err)
		}
		return raw, nil
	case len(arg) > 1 && arg[0] == '@':
		return os.ReadFile(arg[1:])
	default:
		return []byte(arg), nil
	}
}
