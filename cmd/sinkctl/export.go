package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/indexer"
)

func exportCmd() *cobra.Command {
	var (
		dsn    string
		out    string
		filter indexer.Filter
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write indexed retirements to a parquet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := indexer.Open(dsn, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			totals, err := store.Totals(cmd.Context(), filter)
			if err != nil {
				return err
			}
			n, err := store.ExportParquet(cmd.Context(), out, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d retirements (%s t) to %s\n",
				n, totals.Tonnes.StringFixed(events.AssetDecimals), out)
			att, err := store.Attest(cmd.Context(), filter)
			switch {
			case errors.Is(err, indexer.ErrNoRetirements):
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merkle root %s\n", att.Root)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Indexer DSN (sqlite path or postgres:// URL)")
	cmd.Flags().StringVar(&out, "out", "retirements.parquet", "Output file")
	cmd.Flags().StringVar(&filter.Contract, "contract", "", "Only this sink contract")
	cmd.Flags().StringVar(&filter.Funder, "funder", "", "Only this funder")
	cmd.Flags().StringVar(&filter.Recipient, "recipient", "", "Only this recipient")
	cmd.Flags().StringVar(&filter.ProjectID, "project", "", "Only this project")
	cmd.Flags().Uint32Var(&filter.FromLedger, "from-ledger", 0, "First ledger (inclusive)")
	cmd.Flags().Uint32Var(&filter.ToLedger, "to-ledger", 0, "Last ledger (inclusive)")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}
