package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/native/sink"
)

const defaultLedgerWindow = 120

type approvalFlags struct {
	keystore   string
	passEnv    string
	contract   string
	nonce      uint64
	expiration uint32
	window     uint32
}

func (f *approvalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.keystore, "keystore", "", "Keystore of the signing account")
	cmd.Flags().StringVar(&f.passEnv, "pass-env", defaultPassEnv, "Environment variable holding the keystore passphrase")
	cmd.Flags().StringVar(&f.contract, "contract", "", "Sink contract address")
	cmd.Flags().Uint64Var(&f.nonce, "nonce", 0, "Approval nonce (random when zero)")
	cmd.Flags().Uint32Var(&f.expiration, "expiration", 0, "Last ledger the approval is valid for (current ledger + window when zero)")
	cmd.Flags().Uint32Var(&f.window, "ledger-window", defaultLedgerWindow, "Ledgers the approval stays valid when --expiration is unset")
	_ = cmd.MarkFlagRequired("keystore")
	_ = cmd.MarkFlagRequired("contract")
}

// resolve fills nonce and expiration, asking the node for its ledger when
// needed.
func (f *approvalFlags) resolve(ctx context.Context, endpoint string) (crypto.Address, error) {
	contract, err := crypto.DecodeAddress(f.contract)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("--contract: %w", err)
	}
	if !contract.IsContract() {
		return crypto.Address{}, fmt.Errorf("--contract: %s is not a contract address", contract)
	}
	if f.nonce == 0 {
		if f.nonce, err = randomNonce(); err != nil {
			return crypto.Address{}, err
		}
	}
	if f.expiration == 0 {
		var ledger uint32
		if err := newRPCClient(endpoint, "").call(ctx, "sink_ledger", nil, &ledger); err != nil {
			return crypto.Address{}, fmt.Errorf("fetch current ledger: %w", err)
		}
		f.expiration = ledger + f.window
	}
	return contract, nil
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]) | 1, nil
}

func approveCmd() *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "approve",
		Short: "Sign invocations and print ready-to-send JSON-RPC params",
	}
	subCmd.AddCommand(approveSinkCmd())
	subCmd.AddCommand(approveAdminCmd())
	return subCmd
}

type sinkOrder struct {
	Recipient string
	Tonnes    string
	Amount    int64
	ProjectID string
	MemoText  string
	Email     string
}

func (o sinkOrder) request(funder crypto.Address) (sink.SinkRequest, error) {
	recipient := funder
	if strings.TrimSpace(o.Recipient) != "" {
		var err error
		if recipient, err = crypto.DecodeAddress(o.Recipient); err != nil {
			return sink.SinkRequest{}, fmt.Errorf("--recipient: %w", err)
		}
	}
	amount := o.Amount
	if o.Tonnes != "" {
		if amount != 0 {
			return sink.SinkRequest{}, fmt.Errorf("--tonnes and --amount are mutually exclusive")
		}
		var err error
		if amount, err = events.ParseTonnes(o.Tonnes); err != nil {
			return sink.SinkRequest{}, fmt.Errorf("--tonnes: %w", err)
		}
	}
	if amount <= 0 {
		return sink.SinkRequest{}, fmt.Errorf("an amount is required")
	}
	return sink.SinkRequest{
		Funder:    funder,
		Recipient: recipient,
		Amount:    amount,
		ProjectID: o.ProjectID,
		MemoText:  o.MemoText,
		Email:     o.Email,
	}, nil
}

// sinkParams signs req and returns the sink_sinkCarbon params object.
func sinkParams(key *crypto.PrivateKey, contract crypto.Address, req sink.SinkRequest, nonce uint64, expiration uint32) (map[string]interface{}, error) {
	approval, err := auth.Sign(key, sink.SinkInvocation(contract, req), nonce, expiration)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"funder":    req.Funder.String(),
		"recipient": req.Recipient.String(),
		"amount":    req.Amount,
		"projectId": req.ProjectID,
		"memoText":  req.MemoText,
		"email":     req.Email,
		"approvals": []auth.Approval{approval},
	}, nil
}

func approveSinkCmd() *cobra.Command {
	var (
		flags approvalFlags
		order sinkOrder
	)
	cmd := &cobra.Command{
		Use:   "sink",
		Short: "Approve a retirement funded by the keystore account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := loadKey(flags.keystore, flags.passEnv)
			if err != nil {
				return err
			}
			req, err := order.request(key.PubKey().Address())
			if err != nil {
				return err
			}
			endpoint, _ := cmd.Flags().GetString("endpoint")
			contract, err := flags.resolve(cmd.Context(), endpoint)
			if err != nil {
				return err
			}
			params, err := sinkParams(key, contract, req, flags.nonce, flags.expiration)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), params)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&order.Recipient, "recipient", "", "Certificate recipient (defaults to the funder)")
	cmd.Flags().StringVar(&order.Tonnes, "tonnes", "", "Amount to retire in tonnes, e.g. 1.25")
	cmd.Flags().Int64Var(&order.Amount, "amount", 0, "Amount to retire in asset units (7 decimals)")
	cmd.Flags().StringVar(&order.ProjectID, "project", "", "Carbon project identifier")
	cmd.Flags().StringVar(&order.MemoText, "memo", "", "Memo recorded with the retirement")
	cmd.Flags().StringVar(&order.Email, "email", "", "Contact e-mail recorded with the retirement")
	return cmd
}

// adminInvocation maps a JSON-RPC admin method onto the invocation it needs
// and the params object carrying its arguments.
func adminInvocation(contract crypto.Address, method, amount, successor string) (auth.Invocation, map[string]interface{}, error) {
	params := map[string]interface{}{}
	switch method {
	case "sink_setMinimumSinkAmount":
		if strings.TrimSpace(amount) == "" {
			return auth.Invocation{}, nil, fmt.Errorf("--tonnes is required for %s", method)
		}
		units, err := events.ParseTonnes(amount)
		if err != nil {
			return auth.Invocation{}, nil, fmt.Errorf("--tonnes: %w", err)
		}
		params["amount"] = units
		return sink.SetMinimumInvocation(contract, units), params, nil
	case "sink_setSuccessor":
		addr, err := crypto.DecodeAddress(successor)
		if err != nil {
			return auth.Invocation{}, nil, fmt.Errorf("--successor: %w", err)
		}
		params["successor"] = addr.String()
		return sink.SetSuccessorInvocation(contract, addr), params, nil
	case "sink_activate":
		return sink.AdminInvocation(contract, sink.FnActivate), params, nil
	case "sink_deactivate":
		return sink.AdminInvocation(contract, sink.FnDeactivate), params, nil
	case "sink_resetAdmin":
		return sink.AdminInvocation(contract, sink.FnResetAdmin), params, nil
	default:
		return auth.Invocation{}, nil, fmt.Errorf("%s is not an admin method", method)
	}
}

func approveAdminCmd() *cobra.Command {
	var (
		flags     approvalFlags
		tonnes    string
		successor string
	)
	cmd := &cobra.Command{
		Use:   "admin <method>",
		Short: "Approve an admin call (sink_setMinimumSinkAmount, sink_activate, sink_deactivate, sink_resetAdmin, sink_setSuccessor)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(flags.keystore, flags.passEnv)
			if err != nil {
				return err
			}
			endpoint, _ := cmd.Flags().GetString("endpoint")
			contract, err := flags.resolve(cmd.Context(), endpoint)
			if err != nil {
				return err
			}
			inv, params, err := adminInvocation(contract, args[0], tonnes, successor)
			if err != nil {
				return err
			}
			approval, err := auth.Sign(key, inv, flags.nonce, flags.expiration)
			if err != nil {
				return err
			}
			params["approvals"] = []auth.Approval{approval}
			return printJSON(cmd.OutOrStdout(), params)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&tonnes, "tonnes", "", "New minimum in tonnes (sink_setMinimumSinkAmount)")
	cmd.Flags().StringVar(&successor, "successor", "", "Successor contract address (sink_setSuccessor)")
	return cmd
}
