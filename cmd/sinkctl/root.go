package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const (
	defaultEndpoint = "http://localhost:8545"
	defaultPassEnv  = "SINKCTL_PASS"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sinkctl",
		Short:         "Operate a sorocarbon sink node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("endpoint", defaultEndpoint, "sinkd JSON-RPC base URL")

	root.AddCommand(keysCmd())
	root.AddCommand(approveCmd())
	root.AddCommand(callCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(exportCmd())
	return root
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
