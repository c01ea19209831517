package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/indexer"
	"github.com/stellarcarbon/sorocarbon/native/asset"
	"github.com/stellarcarbon/sorocarbon/native/sink"
)

func (s *Server) routes() map[string]method {
	return map[string]method{
		"sink_sinkCarbon":           {handler: s.handleSinkCarbon, mutating: true},
		"sink_getMinimumSinkAmount": {handler: s.handleGetMinimum},
		"sink_isActive":             {handler: s.handleIsActive},
		"sink_getSuccessor":         {handler: s.handleGetSuccessor},
		"sink_getAdmin":             {handler: s.handleGetAdmin},
		"sink_setMinimumSinkAmount": {handler: s.handleSetMinimum, mutating: true},
		"sink_activate":             {handler: s.handleActivate, mutating: true},
		"sink_deactivate":           {handler: s.handleDeactivate, mutating: true},
		"sink_resetAdmin":           {handler: s.handleResetAdmin, mutating: true},
		"sink_setSuccessor":         {handler: s.handleSetSuccessor, mutating: true},
		"sink_resolveSuccessor":     {handler: s.handleResolveSuccessor},
		"sink_listRetirements":      {handler: s.handleListRetirements},
		"sink_retirementTotals":     {handler: s.handleRetirementTotals},
		"sink_attestRetirements":    {handler: s.handleAttestRetirements},
		"sink_proveRetirement":      {handler: s.handleProveRetirement},
		"sink_ledger":               {handler: s.handleLedger},
		"asset_balance":             {handler: s.handleAssetBalance},
		"asset_authorized":          {handler: s.handleAssetAuthorized},
	}
}

type credentialParams struct {
	Approvals []auth.Approval `json:"approvals,omitempty"`
}

type sinkCarbonParams struct {
	Funder    string `json:"funder"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	ProjectID string `json:"projectId"`
	MemoText  string `json:"memoText"`
	Email     string `json:"email"`
	credentialParams
}

// SinkCarbonResult describes an accepted retirement.
type SinkCarbonResult struct {
	Funder    string `json:"funder"`
	Recipient string `json:"recipient"`
	Requested int64  `json:"requested"`
	Retired   int64  `json:"retired"`
	Tonnes    string `json:"tonnes"`
	Ledger    uint32 `json:"ledger"`
}

func parseAddress(field, value string) (crypto.Address, *RPCError) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, invalidAddress(field, err)
	}
	return addr, nil
}

func parseContractAddress(field, value string) (crypto.Address, *RPCError) {
	addr, rpcErr := parseAddress(field, value)
	if rpcErr != nil {
		return addr, rpcErr
	}
	if !addr.IsContract() {
		return crypto.Address{}, invalidAddress(field, crypto.ErrInvalidAddress)
	}
	return addr, nil
}

func (s *Server) handleSinkCarbon(ctx context.Context, r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p sinkCarbonParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	funder, rpcErr := parseAddress("funder", p.Funder)
	if rpcErr != nil {
		return nil, rpcErr
	}
	recipient, rpcErr := parseAddress("recipient", p.Recipient)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ac, rpcErr := s.credentials(r, p.Approvals)
	if rpcErr != nil {
		return nil, rpcErr
	}
	req := sink.SinkRequest{
		Funder:    funder,
		Recipient: recipient,
		Amount:    p.Amount,
		ProjectID: p.ProjectID,
		MemoText:  p.MemoText,
		Email:     p.Email,
	}
	ledger, err := s.sink.Sink(ctx, ac, req)
	if err != nil {
		return nil, contractError(err)
	}
	retired := sink.Quantize(p.Amount)
	return SinkCarbonResult{
		Funder:    funder.String(),
		Recipient: recipient.String(),
		Requested: p.Amount,
		Retired:   retired,
		Tonnes:    events.Tonnes(retired).StringFixed(events.AssetDecimals),
		Ledger:    ledger,
	}, nil
}

func (s *Server) handleGetMinimum(ctx context.Context, _ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	minimum, err := s.sink.GetMinimum(ctx)
	if err != nil {
		return nil, contractError(err)
	}
	return minimum, nil
}

func (s *Server) handleIsActive(ctx context.Context, _ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	active, err := s.sink.IsActive(ctx)
	if err != nil {
		return nil, contractError(err)
	}
	return active, nil
}

func (s *Server) handleGetSuccessor(ctx context.Context, _ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	successor, err := s.sink.GetSuccessor(ctx)
	if err != nil {
		return nil, contractError(err)
	}
	return successor.String(), nil
}

func (s *Server) handleGetAdmin(ctx context.Context, _ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	admin, err := s.sink.GetAdmin(ctx)
	if err != nil {
		return nil, contractError(err)
	}
	return admin.String(), nil
}

func (s *Server) handleSetMinimum(ctx context.Context, r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Amount *int64 `json:"amount"`
		credentialParams
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Amount == nil {
		return nil, invalidParams("amount required")
	}
	ac, rpcErr := s.credentials(r, p.Approvals)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.sink.SetMinimum(ctx, ac, *p.Amount); err != nil {
		return nil, contractError(err)
	}
	return *p.Amount, nil
}

func (s *Server) adminCall(r *http.Request, params []json.RawMessage, call func(auth.Context) error) *RPCError {
	var p credentialParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return rpcErr
	}
	ac, rpcErr := s.credentials(r, p.Approvals)
	if rpcErr != nil {
		return rpcErr
	}
	return contractError(call(ac))
}

func (s *Server) handleActivate(ctx context.Context, r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := s.adminCall(r, params, func(ac auth.Context) error { return s.sink.Activate(ctx, ac) }); rpcErr != nil {
		return nil, rpcErr
	}
	return true, nil
}

func (s *Server) handleDeactivate(ctx context.Context, r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := s.adminCall(r, params, func(ac auth.Context) error { return s.sink.Deactivate(ctx, ac) }); rpcErr != nil {
		return nil, rpcErr
	}
	return false, nil
}

func (s *Server) handleResetAdmin(ctx context.Context, r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var admin crypto.Address
	rpcErr := s.adminCall(r, params, func(ac auth.Context) error {
		var err error
		admin, err = s.sink.ResetAdmin(ctx, ac)
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return admin.String(), nil
}

func (s *Server) handleSetSuccessor(ctx context.Context, r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Successor string `json:"successor"`
		credentialParams
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	successor, rpcErr := parseContractAddress("successor", p.Successor)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ac, rpcErr := s.credentials(r, p.Approvals)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.sink.SetSuccessor(ctx, ac, successor); err != nil {
		return nil, contractError(err)
	}
	return successor.String(), nil
}

func (s *Server) handleResolveSuccessor(ctx context.Context, _ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		MaxHops int `json:"maxHops"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	path, err := s.sink.ResolveSuccessor(ctx, p.MaxHops)
	if err != nil {
		return nil, contractError(err)
	}
	out := make([]string, len(path))
	for i, addr := range path {
		out[i] = addr.String()
	}
	return out, nil
}

type retirementFilterParams struct {
	Funder     string `json:"funder"`
	Recipient  string `json:"recipient"`
	ProjectID  string `json:"projectId"`
	FromLedger uint32 `json:"fromLedger"`
	ToLedger   uint32 `json:"toLedger"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

const maxListLimit = 500

func (p retirementFilterParams) filter(contract crypto.Address) (indexer.Filter, *RPCError) {
	for field, value := range map[string]string{"funder": p.Funder, "recipient": p.Recipient} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, rpcErr := parseAddress(field, value); rpcErr != nil {
			return indexer.Filter{}, rpcErr
		}
	}
	if p.Limit < 0 || p.Offset < 0 {
		return indexer.Filter{}, invalidParams("limit and offset must not be negative")
	}
	limit := p.Limit
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return indexer.Filter{
		Contract:   contract.String(),
		Funder:     strings.TrimSpace(p.Funder),
		Recipient:  strings.TrimSpace(p.Recipient),
		ProjectID:  strings.TrimSpace(p.ProjectID),
		FromLedger: p.FromLedger,
		ToLedger:   p.ToLedger,
		Limit:      limit,
		Offset:     p.Offset,
	}, nil
}

// RetirementResult is one indexed retirement. Memo and email stay private to
// the index.
type RetirementResult struct {
	ReceiptID string    `json:"receiptId"`
	Funder    string    `json:"funder"`
	Recipient string    `json:"recipient"`
	Requested int64     `json:"requested"`
	Amount    int64     `json:"amount"`
	Tonnes    string    `json:"tonnes"`
	ProjectID string    `json:"projectId"`
	Ledger    uint32    `json:"ledger"`
	IndexedAt time.Time `json:"indexedAt"`
}

func (s *Server) indexUnavailable() *RPCError {
	return newError(http.StatusServiceUnavailable, codeUnavailable, "retirement index disabled", nil)
}

func (s *Server) handleListRetirements(ctx context.Context, _ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if s.index == nil {
		return nil, s.indexUnavailable()
	}
	var p retirementFilterParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	filter, rpcErr := p.filter(s.sink.Contract())
	if rpcErr != nil {
		return nil, rpcErr
	}
	rows, err := s.index.List(ctx, filter)
	if err != nil {
		return nil, newError(http.StatusInternalServerError, codeServerError, "list retirements", err.Error())
	}
	out := make([]RetirementResult, len(rows))
	for i, row := range rows {
		out[i] = RetirementResult{
			ReceiptID: row.ReceiptID,
			Funder:    row.Funder,
			Recipient: row.Recipient,
			Requested: row.Requested,
			Amount:    row.Amount,
			Tonnes:    events.Tonnes(row.Amount).StringFixed(events.AssetDecimals),
			ProjectID: row.ProjectID,
			Ledger:    row.Ledger,
			IndexedAt: row.CreatedAt.UTC(),
		}
	}
	return out, nil
}

func (s *Server) handleRetirementTotals(ctx context.Context, _ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if s.index == nil {
		return nil, s.indexUnavailable()
	}
	var p retirementFilterParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	filter, rpcErr := p.filter(s.sink.Contract())
	if rpcErr != nil {
		return nil, rpcErr
	}
	totals, err := s.index.Totals(ctx, filter)
	if err != nil {
		return nil, newError(http.StatusInternalServerError, codeServerError, "retirement totals", err.Error())
	}
	return totals, nil
}

func (s *Server) handleLedger(context.Context, *http.Request, []json.RawMessage) (interface{}, *RPCError) {
	return s.sink.Node().Ledger(), nil
}

type assetParams struct {
	Asset  string `json:"asset"`
	Holder string `json:"holder"`
}

func (s *Server) withAsset(ctx context.Context, params []json.RawMessage, fn func(env *core.Env, c *asset.Contract, holder crypto.Address) error) *RPCError {
	var p assetParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return rpcErr
	}
	id, rpcErr := parseContractAddress("asset", p.Asset)
	if rpcErr != nil {
		return rpcErr
	}
	holder, rpcErr := parseAddress("holder", p.Holder)
	if rpcErr != nil {
		return rpcErr
	}
	inv := auth.Invocation{Contract: id, Function: "balance", Args: []string{holder.String()}}
	err := s.sink.Node().Invoke(ctx, inv, auth.None{}, func(env *core.Env) error {
		c, err := asset.Load(env, id)
		if err != nil {
			return err
		}
		return fn(env, c, holder)
	})
	return contractError(err)
}

func (s *Server) handleAssetBalance(ctx context.Context, _ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var balance int64
	rpcErr := s.withAsset(ctx, params, func(env *core.Env, c *asset.Contract, holder crypto.Address) error {
		var err error
		balance, err = c.Balance(env, holder)
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return balance, nil
}

func (s *Server) handleAssetAuthorized(ctx context.Context, _ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var authorized bool
	rpcErr := s.withAsset(ctx, params, func(env *core.Env, c *asset.Contract, holder crypto.Address) error {
		var err error
		authorized, err = c.Authorized(env, holder)
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return authorized, nil
}

func attestationError(err error) *RPCError {
	if errors.Is(err, indexer.ErrNoRetirements) || errors.Is(err, indexer.ErrReceiptNotFound) {
		return newError(http.StatusNotFound, codeInvalidParams, err.Error(), nil)
	}
	return newError(http.StatusInternalServerError, codeServerError, "attest retirements", err.Error())
}

func (s *Server) handleAttestRetirements(ctx context.Context, _ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if s.index == nil {
		return nil, s.indexUnavailable()
	}
	var p retirementFilterParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	filter, rpcErr := p.filter(s.sink.Contract())
	if rpcErr != nil {
		return nil, rpcErr
	}
	att, err := s.index.Attest(ctx, filter)
	if err != nil {
		return nil, attestationError(err)
	}
	return att, nil
}

func (s *Server) handleProveRetirement(ctx context.Context, _ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if s.index == nil {
		return nil, s.indexUnavailable()
	}
	var p struct {
		ReceiptID string `json:"receiptId"`
		retirementFilterParams
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if strings.TrimSpace(p.ReceiptID) == "" {
		return nil, invalidParams("receiptId required")
	}
	filter, rpcErr := p.filter(s.sink.Contract())
	if rpcErr != nil {
		return nil, rpcErr
	}
	proof, err := s.index.Prove(ctx, filter, strings.TrimSpace(p.ReceiptID))
	if err != nil {
		return nil, attestationError(err)
	}
	return proof, nil
}
